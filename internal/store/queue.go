package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-queue/internal/clinic"
	"github.com/hackgods/clinic-queue/internal/db"
)

const queueSelect = `
	SELECT q.id, q.queue_number, q.doctor_id, q.patient_id, p.name, q.appointment_id, a.scheduled_at,
	       q.entry_type, q.priority, q.status, q.notes, q.created_at, q.started_at, q.completed_at
	FROM queue_entries q
	JOIN patients p ON p.id = q.patient_id
	LEFT JOIN appointments a ON a.id = q.appointment_id
`

// Partial unique indexes declared in schema.sql.
const (
	constraintOneActivePerPatient = "queue_entries_one_active_per_patient"
	constraintOneWithDoctor       = "queue_entries_one_with_doctor"
)

func scanQueueEntry(row pgx.Row) (*clinic.QueueEntry, error) {
	var e clinic.QueueEntry
	err := row.Scan(
		&e.ID,
		&e.Number,
		&e.DoctorID,
		&e.PatientID,
		&e.PatientName,
		&e.AppointmentID,
		&e.AppointmentAt,
		&e.Type,
		&e.Priority,
		&e.Status,
		&e.Notes,
		&e.CreatedAt,
		&e.StartedAt,
		&e.CompletedAt,
	)
	if err != nil {
		return nil, notFound(err, clinic.ErrQueueEntryNotFound)
	}
	return &e, nil
}

func collectQueueEntries(rows pgx.Rows) ([]clinic.QueueEntry, error) {
	defer rows.Close()
	var out []clinic.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// queueConstraintError turns a backstop index violation into the domain error
// the service would have produced had it seen the conflicting row first.
func queueConstraintError(err error) error {
	name, ok := db.UniqueViolation(err)
	if !ok {
		return err
	}
	switch name {
	case constraintOneActivePerPatient:
		return fmt.Errorf("%w: patient already has an active entry for this doctor", clinic.ErrDuplicateActive)
	case constraintOneWithDoctor:
		return clinic.ErrDoctorBusy
	}
	return err
}

func (s *Store) GetQueueEntry(ctx context.Context, id uuid.UUID) (*clinic.QueueEntry, error) {
	return scanQueueEntry(s.q.QueryRow(ctx, queueSelect+`WHERE q.id = $1`, id))
}

// ListQueueEntries returns every entry for doctorID created in [from, to).
func (s *Store) ListQueueEntries(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]clinic.QueueEntry, error) {
	rows, err := s.q.Query(ctx, queueSelect+`
		WHERE q.doctor_id = $1
		  AND q.created_at >= $2
		  AND q.created_at < $3
	`, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	return collectQueueEntries(rows)
}

// ListQueueEntriesForDay returns every doctor's entries created in [from, to).
func (s *Store) ListQueueEntriesForDay(ctx context.Context, from, to time.Time) ([]clinic.QueueEntry, error) {
	rows, err := s.q.Query(ctx, queueSelect+`
		WHERE q.created_at >= $1
		  AND q.created_at < $2
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list queue entries for day: %w", err)
	}
	return collectQueueEntries(rows)
}

// ListStaleActiveEntries returns WAITING and WITH_DOCTOR entries created before cutoff.
func (s *Store) ListStaleActiveEntries(ctx context.Context, cutoff time.Time) ([]clinic.QueueEntry, error) {
	rows, err := s.q.Query(ctx, queueSelect+`
		WHERE q.status IN ('WAITING', 'WITH_DOCTOR')
		  AND q.created_at < $1
		ORDER BY q.created_at
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale queue entries: %w", err)
	}
	return collectQueueEntries(rows)
}

func (s *Store) CountActiveQueue(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `
		SELECT count(*)
		FROM queue_entries
		WHERE doctor_id = $1
		  AND status IN ('WAITING', 'WITH_DOCTOR')
		  AND created_at >= $2
		  AND created_at < $3
	`, doctorID, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active queue: %w", err)
	}
	return n, nil
}

func (s *Store) InsertQueueEntry(ctx context.Context, e clinic.QueueEntry) (*clinic.QueueEntry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO queue_entries (id, queue_number, doctor_id, patient_id, appointment_id, entry_type,
		                           priority, status, notes, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()), $11, $12)
	`, e.ID, e.Number, e.DoctorID, e.PatientID, e.AppointmentID, e.Type,
		e.Priority, e.Status, e.Notes, nullableTime(e.CreatedAt), e.StartedAt, e.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("insert queue entry: %w", queueConstraintError(err))
	}
	return s.GetQueueEntry(ctx, e.ID)
}

// UpdateQueueEntry persists e's status and timestamps provided the stored row
// is still in from.
func (s *Store) UpdateQueueEntry(ctx context.Context, e clinic.QueueEntry, from clinic.QueueStatus) (*clinic.QueueEntry, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE queue_entries
		SET status = $2,
		    started_at = $3,
		    completed_at = $4,
		    notes = $5
		WHERE id = $1
		  AND status = $6
	`, e.ID, e.Status, e.StartedAt, e.CompletedAt, e.Notes, from)
	if err != nil {
		return nil, fmt.Errorf("update queue entry: %w", queueConstraintError(err))
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: queue entry %s is no longer %s", clinic.ErrInvalidTransition, e.Number, from)
	}
	return s.GetQueueEntry(ctx, e.ID)
}

func (s *Store) DeleteQueueEntry(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM queue_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return clinic.ErrQueueEntryNotFound
	}
	return nil
}
