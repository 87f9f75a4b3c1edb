// Package store holds the Postgres queries shared by the availability, queue
// and appointment repositories.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-queue/internal/db"
)

type Store struct {
	pool *pgxpool.Pool
	q    db.DBTX
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

// WithinTx runs fn against a Store bound to a serializable transaction.
// Calls on a Store that is already transactional reuse the open transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(*Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return db.RunSerializable(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{q: tx})
	})
}

func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
