package aging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/buildbook/buildbook/internal/platform/cache"
)

type fakeSource struct {
	mu        sync.Mutex
	calls     map[int64]int
	data      map[int64][]Receivable
	companies []int64
	err       error
}

func (f *fakeSource) Receivables(_ context.Context, companyID int64, _ time.Time) ([]Receivable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[int64]int{}
	}
	f.calls[companyID]++
	if f.err != nil {
		return nil, f.err
	}
	return f.data[companyID], nil
}

func (f *fakeSource) CompaniesWithReceivables(context.Context) ([]int64, error) {
	return f.companies, nil
}

func (f *fakeSource) callCount(companyID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[companyID]
}

type countingRecorder struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (r *countingRecorder) CacheLookup(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
		return
	}
	r.misses++
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, src Source, rec CacheRecorder) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(src, cache.NewCache(client, time.Hour), rec, time.UTC)
	svc.WithNow(func() time.Time { return today })
	return svc
}

func TestReportIsCachedUntilInvalidated(t *testing.T) {
	src := &fakeSource{data: map[int64][]Receivable{
		1: {receivable(1, 7, "1000", 10), receivable(2, 7, "500", 130)},
	}}
	rec := &countingRecorder{}
	svc := newTestService(t, src, rec)
	ctx := context.Background()

	first, err := svc.Report(ctx, 1, time.Time{})
	require.NoError(t, err)
	require.Equal(t, "1500.00", first.TotalOutstanding.StringFixed(2))

	second, err := svc.Report(ctx, 1, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, src.callCount(1))
	require.Len(t, second.Clients, 1)
	require.Equal(t, RiskHigh, second.Clients[0].Risk)
	require.True(t, first.Clients[0].TotalOutstanding.Equal(second.Clients[0].TotalOutstanding))
	require.Equal(t, 1, rec.hits)
	require.Equal(t, 1, rec.misses)

	require.NoError(t, svc.Invalidate(ctx, 1))
	_, err = svc.Report(ctx, 1, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, src.callCount(1))
}

func TestReportCacheIsPerCompanyAndDate(t *testing.T) {
	src := &fakeSource{data: map[int64][]Receivable{}}
	svc := newTestService(t, src, nil)
	ctx := context.Background()

	_, err := svc.Report(ctx, 1, today)
	require.NoError(t, err)
	_, err = svc.Report(ctx, 2, today)
	require.NoError(t, err)
	_, err = svc.Report(ctx, 1, today.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx, 2))
	_, err = svc.Report(ctx, 1, today)
	require.NoError(t, err)

	require.Equal(t, 2, src.callCount(1))
	require.Equal(t, 1, src.callCount(2))
}

func TestReportPropagatesSourceErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	svc := newTestService(t, src, nil)
	_, err := svc.Report(context.Background(), 1, today)
	require.ErrorContains(t, err, "db down")
}

func TestWarmUpBuildsEveryCompany(t *testing.T) {
	src := &fakeSource{
		companies: []int64{1, 2, 3},
		data:      map[int64][]Receivable{1: {receivable(1, 1, "10", 1)}},
	}
	svc := newTestService(t, src, nil)

	n, err := svc.WarmUp(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	for _, id := range src.companies {
		require.Equal(t, 1, src.callCount(id))
	}

	_, err = svc.Report(context.Background(), 1, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, src.callCount(1))
}

func TestHandlerExportsCSV(t *testing.T) {
	src := &fakeSource{data: map[int64][]Receivable{
		9: {receivable(1, 7, "1000", 10)},
	}}
	svc := newTestService(t, src, nil)
	h := NewHandler(discardLogger(), svc)

	r := chi.NewRouter()
	r.Route("/companies/{companyID}/aging", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/companies/9/aging/export.csv?as_of=2026-05-01", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "aging-clients-2026-05-01.csv")
	lines := strings.Split(strings.TrimSuffix(rr.Body.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, `"Client 7","low",1,10,1000.00,0.00,0.00,0.00,1000.00,"Monitor; no action required"`, lines[1])

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/companies/9/aging?as_of=05-01-2026", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
