package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

const appointmentSelect = `
	SELECT a.id, a.appointment_number, a.doctor_id, a.patient_id, p.name, a.scheduled_at,
	       a.duration_minutes, a.status, a.notes, a.created_at, a.updated_at
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
`

func scanAppointment(row pgx.Row) (*clinic.Appointment, error) {
	var a clinic.Appointment
	err := row.Scan(
		&a.ID,
		&a.Number,
		&a.DoctorID,
		&a.PatientID,
		&a.PatientName,
		&a.ScheduledAt,
		&a.DurationMinutes,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, clinic.ErrAppointmentNotFound)
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]clinic.Appointment, error) {
	defer rows.Close()
	var out []clinic.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	return scanAppointment(s.q.QueryRow(ctx, appointmentSelect+`WHERE a.id = $1`, id))
}

// ListAppointments returns the doctor's appointments scheduled in [from, to)
// whose status occupies a slot.
func (s *Store) ListAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]clinic.Appointment, error) {
	rows, err := s.q.Query(ctx, appointmentSelect+`
		WHERE a.doctor_id = $1
		  AND a.scheduled_at >= $2
		  AND a.scheduled_at < $3
		  AND a.status IN ('BOOKED', 'SCHEDULED', 'IN_QUEUE', 'RESCHEDULED')
		ORDER BY a.scheduled_at
	`, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

// ListNoShowCandidates returns appointments that still occupy their slot,
// ended before cutoff and were never admitted to a queue.
func (s *Store) ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]clinic.Appointment, error) {
	rows, err := s.q.Query(ctx, appointmentSelect+`
		WHERE a.status IN ('BOOKED', 'SCHEDULED', 'RESCHEDULED')
		  AND a.scheduled_at + a.duration_minutes * interval '1 minute' < $1
		  AND NOT EXISTS (SELECT 1 FROM queue_entries q WHERE q.appointment_id = a.id)
		ORDER BY a.scheduled_at
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list no-show candidates: %w", err)
	}
	return collectAppointments(rows)
}

func (s *Store) InsertAppointment(ctx context.Context, a clinic.Appointment) (*clinic.Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO appointments (id, appointment_number, doctor_id, patient_id, scheduled_at,
		                          duration_minutes, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), now())
	`, a.ID, a.Number, a.DoctorID, a.PatientID, a.ScheduledAt, a.DurationMinutes, a.Status, a.Notes, nullableTime(a.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return s.GetAppointment(ctx, a.ID)
}

// UpdateAppointmentStatus moves id from one status to another. It fails with
// clinic.ErrInvalidTransition when the row is no longer in from.
func (s *Store) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to clinic.AppointmentStatus) (*clinic.Appointment, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
	`, id, to, from)
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: appointment %s is no longer %s", clinic.ErrInvalidTransition, id, from)
	}
	return s.GetAppointment(ctx, id)
}

// RescheduleAppointment moves id to a new start time and marks it RESCHEDULED.
func (s *Store) RescheduleAppointment(ctx context.Context, id uuid.UUID, from clinic.AppointmentStatus, at time.Time) (*clinic.Appointment, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE appointments
		SET scheduled_at = $2,
		    status = 'RESCHEDULED',
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
	`, id, at, from)
	if err != nil {
		return nil, fmt.Errorf("reschedule appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: appointment %s is no longer %s", clinic.ErrInvalidTransition, id, from)
	}
	return s.GetAppointment(ctx, id)
}
