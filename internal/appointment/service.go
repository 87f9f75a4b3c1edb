package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/availability"
	"github.com/hackgods/clinic-queue/internal/clinic"
	redisclient "github.com/hackgods/clinic-queue/internal/redis"
)

type Service struct {
	repo        Repository
	locker      redisclient.Locker
	cache       availability.SnapshotCache
	policy      availability.Policy
	noShowGrace time.Duration
	now         func() time.Time
	log         *zap.Logger
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the booking service. noShowGrace is how long after an
// appointment ends MarkNoShows waits before flagging it.
func NewService(repo Repository, locker redisclient.Locker, cache availability.SnapshotCache,
	policy availability.Policy, noShowGrace time.Duration, log *zap.Logger, opts ...Option) *Service {
	if cache == nil {
		cache = availability.NopCache
	}
	s := &Service{
		repo:        repo,
		locker:      locker,
		cache:       cache,
		policy:      policy,
		noShowGrace: noShowGrace,
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}

// Book reserves [ScheduledAt, ScheduledAt+duration) with the doctor. The
// window must fall in working hours, lie in the future and overlap no break
// and no other occupying appointment. Bookings for one doctor are serialized,
// so two requests for the same window cannot both succeed.
func (s *Service) Book(ctx context.Context, req BookRequest) (*clinic.Appointment, error) {
	if req.DurationMinutes < 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %d", clinic.ErrValidation, req.DurationMinutes)
	}
	if req.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduled time is required", clinic.ErrValidation)
	}
	if _, err := s.repo.GetPatient(ctx, req.PatientID); err != nil {
		return nil, err
	}
	doctor, err := s.repo.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	minutes := req.DurationMinutes
	if minutes == 0 {
		if minutes, err = s.policy.ConsultationMinutes(*doctor); err != nil {
			return nil, err
		}
	}

	var created *clinic.Appointment
	err = s.locker.WithDoctorLock(ctx, req.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(tx Repository) error {
			if err := s.checkWindow(lockCtx, tx, req.DoctorID, req.ScheduledAt, minutes, uuid.Nil); err != nil {
				return err
			}

			day, _ := s.policy.DayBounds(req.ScheduledAt)
			seq, err := tx.NextSequence(lockCtx, clinic.SequenceAppointment, req.DoctorID, day)
			if err != nil {
				return err
			}

			created, err = tx.InsertAppointment(lockCtx, clinic.Appointment{
				ID:              uuid.New(),
				Number:          clinic.FormatAppointmentNumber(day, seq),
				DoctorID:        req.DoctorID,
				PatientID:       req.PatientID,
				ScheduledAt:     req.ScheduledAt,
				DurationMinutes: minutes,
				Status:          clinic.AppointmentBooked,
				Notes:           req.Notes,
				CreatedAt:       s.now(),
			})
			if err != nil {
				return err
			}

			return s.logEvent(lockCtx, tx, created.ID, EventAppointmentBooked, map[string]any{
				"appointment_number": created.Number,
				"doctor_id":          created.DoctorID.String(),
				"patient_id":         created.PatientID.String(),
				"scheduled_at":       created.ScheduledAt,
				"duration_minutes":   created.DurationMinutes,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, created.DoctorID, created.ScheduledAt)
	s.log.Info("appointment booked",
		zap.String("appointment_number", created.Number),
		zap.String("doctor_id", created.DoctorID.String()),
		zap.Time("scheduled_at", created.ScheduledAt),
	)
	return created, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	return s.transition(ctx, id, clinic.AppointmentCancelled, EventAppointmentCancelled)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	return s.transition(ctx, id, clinic.AppointmentCompleted, EventAppointmentCompleted)
}

// transition closes an appointment that is not driven by a queue entry.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to clinic.AppointmentStatus, event string) (*clinic.Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *clinic.Appointment
	err = s.locker.WithDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(tx Repository) error {
			current, err := tx.GetAppointment(lockCtx, id)
			if err != nil {
				return err
			}
			if err := checkMutable(*current); err != nil {
				return err
			}
			if updated, err = tx.UpdateAppointmentStatus(lockCtx, id, current.Status, to); err != nil {
				return err
			}
			return s.logEvent(lockCtx, tx, id, event, map[string]any{
				"appointment_number": current.Number,
				"from":               current.Status,
				"to":                 to,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated.DoctorID, updated.ScheduledAt)
	s.log.Info("appointment updated", zap.String("appointment_number", updated.Number), zap.String("status", string(to)))
	return updated, nil
}

// Reschedule moves an appointment to a new start time, keeping its duration.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, at time.Time) (*clinic.Appointment, error) {
	if at.IsZero() {
		return nil, fmt.Errorf("%w: scheduled time is required", clinic.ErrValidation)
	}
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *clinic.Appointment
	err = s.locker.WithDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(tx Repository) error {
			current, err := tx.GetAppointment(lockCtx, id)
			if err != nil {
				return err
			}
			if err := checkMutable(*current); err != nil {
				return err
			}
			if err := s.checkWindow(lockCtx, tx, current.DoctorID, at, current.DurationMinutes, current.ID); err != nil {
				return err
			}
			if updated, err = tx.RescheduleAppointment(lockCtx, id, current.Status, at); err != nil {
				return err
			}
			return s.logEvent(lockCtx, tx, id, EventAppointmentRescheduled, map[string]any{
				"appointment_number": current.Number,
				"from":               current.ScheduledAt,
				"to":                 at,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, appt.DoctorID, appt.ScheduledAt)
	s.invalidate(ctx, updated.DoctorID, updated.ScheduledAt)
	return updated, nil
}

// MarkNoShows flags appointments whose window ended more than the grace
// period ago without the patient reaching the queue. It is called by the
// queue sweeper and returns the number of appointments flagged.
func (s *Service) MarkNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.noShowGrace)
	candidates, err := s.repo.ListNoShowCandidates(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find no-show appointments: %w", err)
	}

	marked := 0
	for _, appt := range candidates {
		err := s.locker.WithDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
			return s.repo.WithinTx(lockCtx, func(tx Repository) error {
				if _, err := tx.UpdateAppointmentStatus(lockCtx, appt.ID, appt.Status, clinic.AppointmentNoShow); err != nil {
					return err
				}
				return s.logEvent(lockCtx, tx, appt.ID, EventAppointmentNoShow, map[string]any{
					"appointment_number": appt.Number,
					"reason":             "worker",
				})
			})
		})
		switch {
		case err == nil:
			marked++
			s.invalidate(ctx, appt.DoctorID, appt.ScheduledAt)
		case errors.Is(err, clinic.ErrInvalidTransition):
			// changed since it was listed
		default:
			s.log.Warn("mark no-show", zap.String("appointment_number", appt.Number), zap.Error(err))
		}
	}
	return marked, nil
}

// checkMutable rejects changes to closed appointments and to appointments
// whose fate is decided by their queue entry.
func checkMutable(a clinic.Appointment) error {
	if a.Status.Closed() {
		return fmt.Errorf("%w: appointment %s is %s", clinic.ErrAppointmentClosed, a.Number, a.Status)
	}
	if a.Status == clinic.AppointmentInQueue {
		return fmt.Errorf("%w: appointment %s is in the queue, update its queue entry instead",
			clinic.ErrInvalidTransition, a.Number)
	}
	return nil
}

func (s *Service) checkWindow(ctx context.Context, tx Repository, doctorID uuid.UUID, start time.Time, minutes int, exclude uuid.UUID) error {
	snap, err := availability.LoadSnapshot(ctx, tx, doctorID, start, s.policy)
	if err != nil {
		return err
	}
	in := snap.Input(start, s.now(), 0)
	return availability.CheckWindow(in, start, minutes, exclude, s.policy)
}

func (s *Service) logEvent(ctx context.Context, tx Repository, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}
	id := appointmentID
	return tx.InsertEvent(ctx, clinic.EventLog{
		EventType: eventType,
		EntityID:  &id,
		Payload:   data,
		CreatedAt: s.now(),
	})
}

func (s *Service) invalidate(ctx context.Context, doctorID uuid.UUID, at time.Time) {
	day, _ := s.policy.DayBounds(at)
	if err := s.cache.Invalidate(ctx, doctorID, day); err != nil {
		s.log.Warn("invalidate availability cache", zap.String("doctor_id", doctorID.String()), zap.Error(err))
	}
}
