package jobmetrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("aging:warmup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("aging:warmup").End(boom), boom)
	m.AddItems("aging:warmup", 4)
	m.AddItems("aging:warmup", 0)

	expected := `
# HELP buildbook_jobs_total Total job executions partitioned by job name and status.
# TYPE buildbook_jobs_total counter
buildbook_jobs_total{job="aging:warmup",status="failure"} 1
buildbook_jobs_total{job="aging:warmup",status="success"} 1
# HELP buildbook_jobs_failures_total Total failures observed for background jobs.
# TYPE buildbook_jobs_failures_total counter
buildbook_jobs_failures_total{job="aging:warmup"} 1
# HELP buildbook_job_items_total Units of work processed by background jobs.
# TYPE buildbook_job_items_total counter
buildbook_job_items_total{job="aging:warmup"} 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"buildbook_jobs_total", "buildbook_jobs_failures_total", "buildbook_job_items_total"))
	count, err := testutil.GatherAndCount(reg, "buildbook_job_last_success_timestamp_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("invoice:send").End(nil))
	m.AddItems("invoice:send", 1)
}
