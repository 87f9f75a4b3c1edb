package queue

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-queue/internal/store"
)

type PgRepository struct {
	*store.Store
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{Store: store.New(pool)}
}

func (r *PgRepository) WithinTx(ctx context.Context, fn func(Repository) error) error {
	return r.Store.WithinTx(ctx, func(tx *store.Store) error {
		return fn(&PgRepository{Store: tx})
	})
}
