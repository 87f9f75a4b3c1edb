package store

import (
	"context"
	"fmt"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

func (s *Store) InsertEvent(ctx context.Context, ev clinic.EventLog) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.EntityID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
