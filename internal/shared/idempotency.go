package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildbook/buildbook/internal/platform/db"
)

// ErrIdempotencyConflict indicates the request key was already claimed.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore claims request keys so retried mutations run once.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool, now: time.Now}
}

// CheckAndInsert claims key within module. A second claim returns
// ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" || module == "" {
		return fmt.Errorf("%w: idempotency key and module required", ErrValidation)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`,
		key, module, s.now())
	if db.IsUniqueViolation(err, "") {
		return ErrIdempotencyConflict
	}
	return err
}

// Delete releases a key after the guarded work failed.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return fmt.Errorf("%w: idempotency key required", ErrValidation)
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	return err
}

// Cleanup removes keys older than retention and reports how many were dropped.
func (s *IdempotencyStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
