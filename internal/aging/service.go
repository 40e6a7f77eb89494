package aging

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/platform/cache"
)

const cacheName = "aging"

// Source loads outstanding receivables.
type Source interface {
	Receivables(ctx context.Context, companyID int64, asOf time.Time) ([]Receivable, error)
	CompaniesWithReceivables(ctx context.Context) ([]int64, error)
}

// CacheRecorder observes cache hits and misses.
type CacheRecorder interface {
	CacheLookup(cache string, hit bool)
}

// Service builds and caches aging reports.
type Service struct {
	source   Source
	cache    *cache.Cache
	recorder CacheRecorder
	loc      *time.Location
	now      func() time.Time
	group    singleflight.Group
}

// NewService constructs the aging service. cache and recorder may be nil.
func NewService(source Source, c *cache.Cache, recorder CacheRecorder, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{source: source, cache: c, recorder: recorder, loc: loc, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Today returns the current date in the service location.
func (s *Service) Today() time.Time {
	return money.StartOfDay(s.now().In(s.loc))
}

func namespace(companyID int64) string {
	return cacheName + ":" + strconv.FormatInt(companyID, 10)
}

// Report returns the aging report of a company as of asOf (today when zero).
// Concurrent requests for the same report share one build.
func (s *Service) Report(ctx context.Context, companyID int64, asOf time.Time) (Report, error) {
	if asOf.IsZero() {
		asOf = s.Today()
	}
	asOf = money.StartOfDay(asOf.In(s.loc))
	date := asOf.Format(money.DateLayout)

	key, err := s.cache.BuildKey(ctx, namespace(companyID), date)
	if err != nil {
		return Report{}, fmt.Errorf("aging: build cache key: %w", err)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var report Report
		hit, err := s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
			receivables, err := s.source.Receivables(ctx, companyID, asOf)
			if err != nil {
				return nil, err
			}
			return Classify(receivables, asOf), nil
		})
		if err != nil {
			return Report{}, err
		}
		if s.recorder != nil {
			s.recorder.CacheLookup(cacheName, hit)
		}
		return report, nil
	})
	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Report{}, res.Err
		}
		return res.Val.(Report), nil
	}
}

// Invalidate drops every cached report of the company.
func (s *Service) Invalidate(ctx context.Context, companyID int64) error {
	return s.cache.Bump(ctx, namespace(companyID))
}

// WarmUp builds today's report for every company with receivables, at most
// concurrency at a time, and returns how many were built.
func (s *Service) WarmUp(ctx context.Context, concurrency int) (int, error) {
	companies, err := s.source.CompaniesWithReceivables(ctx)
	if err != nil {
		return 0, err
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	today := s.Today()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, companyID := range companies {
		g.Go(func() error {
			if _, err := s.Report(gctx, companyID, today); err != nil {
				return fmt.Errorf("company %d: %w", companyID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(companies), nil
}
