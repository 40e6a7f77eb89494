package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/buildbook/buildbook/internal/aging"
	"github.com/buildbook/buildbook/internal/expenses"
	"github.com/buildbook/buildbook/internal/invoices"
	"github.com/buildbook/buildbook/internal/observability"
	"github.com/buildbook/buildbook/internal/quotes"
	"github.com/buildbook/buildbook/internal/timesheets"
	"github.com/buildbook/buildbook/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InvoicesHandler   *invoices.Handler
	AgingHandler      *aging.Handler
	ExpensesHandler   *expenses.Handler
	QuotesHandler     *quotes.Handler
	TimesheetsHandler *timesheets.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/companies/{companyID}", func(r chi.Router) {
		if params.InvoicesHandler != nil {
			r.Route("/invoices", params.InvoicesHandler.MountRoutes)
		}
		if params.AgingHandler != nil {
			r.Route("/aging", params.AgingHandler.MountRoutes)
		}
		if params.ExpensesHandler != nil {
			r.Route("/expenses", params.ExpensesHandler.MountRoutes)
		}
		if params.QuotesHandler != nil {
			r.Route("/quotes", params.QuotesHandler.MountRoutes)
		}
		if params.TimesheetsHandler != nil {
			r.Route("/timesheets", params.TimesheetsHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
