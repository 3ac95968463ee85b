package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

// ReferenceCounterRepository hands out monotonic per-scope counters.
type ReferenceCounterRepository interface {
	Next(ctx context.Context, scope string) (int64, error)
}

type referenceCounterRepository struct {
	pool *pgxpool.Pool
}

// NewReferenceCounterRepository builds repository.
func NewReferenceCounterRepository(pool *pgxpool.Pool) ReferenceCounterRepository {
	return &referenceCounterRepository{pool: pool}
}

func (r *referenceCounterRepository) Next(ctx context.Context, scope string) (int64, error) {
	const query = `
        INSERT INTO reference_counters (scope, value, updated_at) VALUES ($1, 1, NOW())
        ON CONFLICT (scope) DO UPDATE SET value = reference_counters.value + 1, updated_at = NOW()
        RETURNING value`
	var value int64
	if err := r.pool.QueryRow(ctx, query, scope).Scan(&value); err != nil {
		return 0, &domain.PersistenceError{Op: "next reference counter", Err: err}
	}
	return value, nil
}
