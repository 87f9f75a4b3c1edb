package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NextSequence returns the next value of the (scope, doctor, day) counter,
// starting at 1. day is reduced to its calendar date as given.
func (s *Store) NextSequence(ctx context.Context, scope string, doctorID uuid.UUID, day time.Time) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `
		INSERT INTO day_counters (scope, doctor_id, day, value)
		VALUES ($1, $2, $3::date, 1)
		ON CONFLICT (scope, doctor_id, day)
		DO UPDATE SET value = day_counters.value + 1
		RETURNING value
	`, scope, doctorID, day.Format(time.DateOnly)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", scope, err)
	}
	return n, nil
}
