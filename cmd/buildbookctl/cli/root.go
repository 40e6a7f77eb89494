// Package cli implements the buildbookctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/buildbook/buildbook/internal/aging"
	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/jobs"
)

// JobsBackend is the queue surface used by the jobs commands.
type JobsBackend interface {
	Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (jobs.QueueStats, error)
	Close() error
}

// AgingReporter builds receivables aging reports.
type AgingReporter interface {
	Report(ctx context.Context, companyID int64, asOf time.Time) (aging.Report, error)
	Today() time.Time
}

// SchemaMigrator applies schema migrations. *db.Migrator satisfies it.
type SchemaMigrator interface {
	Up() (bool, error)
	Down(steps int) (bool, error)
	Version() (uint, bool, error)
	Close() error
}

// Deps opens backends lazily so --help never touches Redis or Postgres.
type Deps struct {
	Jobs     func() (JobsBackend, error)
	Aging    func(ctx context.Context) (AgingReporter, func(), error)
	Migrator func() (SchemaMigrator, error)
}

// NewRootCmd assembles the command tree.
func NewRootCmd(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "buildbookctl",
		Short:         "Operator tooling for the buildbook API and worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newJobsCmd(deps), newAgingCmd(deps), newDBCmd(deps))
	return root
}

func newJobsCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Inspect and trigger background jobs"}

	var opts TriggerOptions
	trigger := &cobra.Command{
		Use:   "trigger <task>",
		Short: "Enqueue a job now",
		Long: fmt.Sprintf("Enqueue one of %s, %s or %s on the default queue.",
			jobs.TaskAgingWarmup, jobs.TaskIdempotencyCleanup, jobs.TaskInvoiceSend),
		Example: `  buildbookctl jobs trigger aging:warmup --concurrency 8
  buildbookctl jobs trigger invoice:send --company 1 --invoice 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := deps.Jobs()
			if err != nil {
				return err
			}
			defer backend.Close()
			info, err := backend.Trigger(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	trigger.Flags().Int64Var(&opts.CompanyID, "company", 0, "company id (invoice:send)")
	trigger.Flags().Int64Var(&opts.InvoiceID, "invoice", 0, "invoice id (invoice:send)")
	trigger.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "parallel companies (aging:warmup)")
	trigger.Flags().IntVar(&opts.RetentionHours, "retention-hours", 0, "key retention override (idempotency:cleanup)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print default queue counters as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := deps.Jobs()
			if err != nil {
				return err
			}
			defer backend.Close()
			s, err := backend.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}

	cmd.AddCommand(trigger, stats)
	return cmd
}

func newAgingCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "aging", Short: "Receivables aging reports"}

	var (
		companyID int64
		asOfRaw   string
		byInvoice bool
	)
	export := &cobra.Command{
		Use:     "export",
		Short:   "Write the aging report as CSV to stdout",
		Example: `  buildbookctl aging export --company 1 --as-of 2026-03-31 > aging.csv`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if companyID <= 0 {
				return fmt.Errorf("--company is required")
			}
			reporter, closeFn, err := deps.Aging(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			asOf := reporter.Today()
			if asOfRaw != "" {
				asOf, err = time.ParseInLocation(money.DateLayout, asOfRaw, asOf.Location())
				if err != nil {
					return fmt.Errorf("invalid --as-of, use YYYY-MM-DD: %w", err)
				}
			}
			report, err := reporter.Report(cmd.Context(), companyID, asOf)
			if err != nil {
				return err
			}
			if byInvoice {
				return aging.WriteInvoicesCSV(cmd.OutOrStdout(), report)
			}
			return aging.WriteClientsCSV(cmd.OutOrStdout(), report)
		},
	}
	export.Flags().Int64Var(&companyID, "company", 0, "company id")
	export.Flags().StringVar(&asOfRaw, "as-of", "", "report date (default today)")
	export.Flags().BoolVar(&byInvoice, "invoices", false, "one row per invoice instead of per client")

	cmd.AddCommand(export)
	return cmd
}

func newDBCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "db", Short: "Database schema management"}

	withMigrator := func(run func(cmd *cobra.Command, m SchemaMigrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			m, err := deps.Migrator()
			if err != nil {
				return err
			}
			defer m.Close()
			return run(cmd, m, args)
		}
	}
	report := func(cmd *cobra.Command, m SchemaMigrator, changed bool) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		state := "unchanged"
		if changed {
			state = "migrated"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s version=%d dirty=%t\n", state, v, dirty)
		return nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m SchemaMigrator, _ []string) error {
			changed, err := m.Up()
			if err != nil {
				return err
			}
			return report(cmd, m, changed)
		}),
	}
	down := &cobra.Command{
		Use:   "down <steps>",
		Short: "Roll back the given number of migrations",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m SchemaMigrator, args []string) error {
			steps, err := strconv.Atoi(args[0])
			if err != nil || steps <= 0 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			changed, err := m.Down(steps)
			if err != nil {
				return err
			}
			return report(cmd, m, changed)
		}),
	}
	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m SchemaMigrator, _ []string) error {
			return report(cmd, m, false)
		}),
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
