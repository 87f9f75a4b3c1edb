package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

func scanDoctor(row pgx.Row) (*clinic.Doctor, error) {
	var d clinic.Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialization,
		&d.ConsultationDuration,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, clinic.ErrDoctorNotFound)
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*clinic.Patient, error) {
	var p clinic.Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, clinic.ErrPatientNotFound)
	}
	return &p, nil
}

func (s *Store) GetDoctor(ctx context.Context, id uuid.UUID) (*clinic.Doctor, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, name, specialization, consultation_duration, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (s *Store) ListDoctors(ctx context.Context) ([]clinic.Doctor, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, name, specialization, consultation_duration, created_at, updated_at
		FROM doctors
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var out []clinic.Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *Store) CreateDoctor(ctx context.Context, d clinic.Doctor) (*clinic.Doctor, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	row := s.q.QueryRow(ctx, `
		INSERT INTO doctors (id, name, specialization, consultation_duration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, name, specialization, consultation_duration, created_at, updated_at
	`, d.ID, d.Name, d.Specialization, d.ConsultationDuration)
	return scanDoctor(row)
}

func (s *Store) GetPatient(ctx context.Context, id uuid.UUID) (*clinic.Patient, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, name, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (s *Store) CreatePatient(ctx context.Context, p clinic.Patient) (*clinic.Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.q.QueryRow(ctx, `
		INSERT INTO patients (id, name, phone, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, name, phone, created_at, updated_at
	`, p.ID, p.Name, p.Phone)
	return scanPatient(row)
}

// ListPatientIDs returns up to limit patient ids, oldest first.
func (s *Store) ListPatientIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := s.q.Query(ctx, `SELECT id FROM patients ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (s *Store) ListSchedule(ctx context.Context, doctorID uuid.UUID) ([]clinic.WeeklyScheduleEntry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, doctor_id, day_of_week, start_time::text, end_time::text, is_working
		FROM doctor_schedules
		WHERE doctor_id = $1
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list schedule: %w", err)
	}
	defer rows.Close()

	var out []clinic.WeeklyScheduleEntry
	for rows.Next() {
		var (
			e          clinic.WeeklyScheduleEntry
			start, end string
		)
		if err := rows.Scan(&e.ID, &e.DoctorID, &e.DayOfWeek, &start, &end, &e.IsWorking); err != nil {
			return nil, err
		}
		if e.StartTime, err = clinic.ParseClock(start); err != nil {
			return nil, err
		}
		if e.EndTime, err = clinic.ParseClock(end); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertSchedule replaces the doctor's entry for e.DayOfWeek.
func (s *Store) UpsertSchedule(ctx context.Context, e clinic.WeeklyScheduleEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO doctor_schedules (id, doctor_id, day_of_week, start_time, end_time, is_working)
		VALUES ($1, $2, $3, $4::time, $5::time, $6)
		ON CONFLICT (doctor_id, day_of_week)
		DO UPDATE SET start_time = EXCLUDED.start_time,
		              end_time = EXCLUDED.end_time,
		              is_working = EXCLUDED.is_working
	`, e.ID, e.DoctorID, e.DayOfWeek, e.StartTime.String(), e.EndTime.String(), e.IsWorking)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

func (s *Store) ListBreaks(ctx context.Context, doctorID uuid.UUID) ([]clinic.BreakEntry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, doctor_id, day_of_week, start_time::text, end_time::text, break_type
		FROM doctor_breaks
		WHERE doctor_id = $1
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list breaks: %w", err)
	}
	defer rows.Close()

	var out []clinic.BreakEntry
	for rows.Next() {
		var (
			b          clinic.BreakEntry
			start, end string
		)
		if err := rows.Scan(&b.ID, &b.DoctorID, &b.DayOfWeek, &start, &end, &b.Kind); err != nil {
			return nil, err
		}
		if b.StartTime, err = clinic.ParseClock(start); err != nil {
			return nil, err
		}
		if b.EndTime, err = clinic.ParseClock(end); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) CreateBreak(ctx context.Context, b clinic.BreakEntry) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO doctor_breaks (id, doctor_id, day_of_week, start_time, end_time, break_type)
		VALUES ($1, $2, $3, $4::time, $5::time, $6)
	`, b.ID, b.DoctorID, b.DayOfWeek, b.StartTime.String(), b.EndTime.String(), b.Kind)
	if err != nil {
		return fmt.Errorf("create break: %w", err)
	}
	return nil
}
