package queue

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/availability"
	"github.com/hackgods/clinic-queue/internal/clinic"
	redisclient "github.com/hackgods/clinic-queue/internal/redis"
)

const (
	EventQueueAdmitted      = "QUEUE_ENTRY_ADMITTED"
	EventQueueStatusChanged = "QUEUE_ENTRY_STATUS_CHANGED"
	EventQueueRemoved       = "QUEUE_ENTRY_REMOVED"
	EventQueueSwept         = "QUEUE_ENTRY_SWEPT"
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cache  availability.SnapshotCache
	policy availability.Policy
	now    func() time.Time
	log    *zap.Logger
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, locker redisclient.Locker, cache availability.SnapshotCache,
	policy availability.Policy, log *zap.Logger, opts ...Option) *Service {
	if cache == nil {
		cache = availability.NopCache
	}
	s := &Service{
		repo:   repo,
		locker: locker,
		cache:  cache,
		policy: policy,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppointmentAdmissionRequest names the appointment to move into the queue.
type AppointmentAdmissionRequest struct {
	DoctorID      uuid.UUID
	AppointmentID uuid.UUID
	Notes         *string
}

// AdmitWalkIn registers a walk-in patient in the doctor's queue for today.
// Concurrent registrations of one patient with one doctor yield exactly one
// entry; the others fail with clinic.ErrDuplicateActive.
func (s *Service) AdmitWalkIn(ctx context.Context, req WalkInRequest) (*clinic.QueueEntry, error) {
	if _, err := s.repo.GetDoctor(ctx, req.DoctorID); err != nil {
		return nil, err
	}
	patient, err := s.repo.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	var created *clinic.QueueEntry
	err = s.locker.WithDoctorLock(ctx, req.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(tx Repository) error {
			now := s.now()
			current, err := s.today(lockCtx, tx, req.DoctorID, now)
			if err != nil {
				return err
			}
			planned, err := PlanWalkIn(req, *patient, current, now)
			if err != nil {
				return err
			}
			created, err = s.insert(lockCtx, tx, planned, now)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("walk-in admitted",
		zap.String("doctor_id", req.DoctorID.String()),
		zap.String("queue_number", created.Number),
		zap.String("priority", string(created.Priority)),
	)
	return created, nil
}

// AdmitAppointment moves a booked appointment into the doctor's queue and
// marks it IN_QUEUE.
func (s *Service) AdmitAppointment(ctx context.Context, req AppointmentAdmissionRequest) (*clinic.QueueEntry, error) {
	if _, err := s.repo.GetDoctor(ctx, req.DoctorID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetAppointment(ctx, req.AppointmentID); err != nil {
		return nil, err
	}

	var (
		created *clinic.QueueEntry
		appt    *clinic.Appointment
	)
	err := s.locker.WithDoctorLock(ctx, req.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(tx Repository) error {
			var err error
			appt, err = tx.GetAppointment(lockCtx, req.AppointmentID)
			if err != nil {
				return err
			}
			patient, err := tx.GetPatient(lockCtx, appt.PatientID)
			if err != nil {
				return err
			}

			now := s.now()
			current, err := s.today(lockCtx, tx, req.DoctorID, now)
			if err != nil {
				return err
			}
			planned, err := PlanAppointmentAdmission(AppointmentAdmission{
				DoctorID:    req.DoctorID,
				Appointment: *appt,
				Notes:       req.Notes,
			}, *patient, current, now)
			if err != nil {
				return err
			}

			if created, err = s.insert(lockCtx, tx, planned, now); err != nil {
				return err
			}
			if appt.Status != clinic.AppointmentInQueue {
				_, err = tx.UpdateAppointmentStatus(lockCtx, appt.ID, appt.Status, clinic.AppointmentInQueue)
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, appt.DoctorID, appt.ScheduledAt)
	s.log.Info("appointment admitted",
		zap.String("doctor_id", req.DoctorID.String()),
		zap.String("appointment_number", appt.Number),
		zap.String("queue_number", created.Number),
	)
	return created, nil
}

// CallNext moves the first WAITING entry of today's queue to WITH_DOCTOR.
func (s *Service) CallNext(ctx context.Context, doctorID uuid.UUID) (*clinic.QueueEntry, error) {
	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	var called *clinic.QueueEntry
	err := s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(tx Repository) error {
			now := s.now()
			current, err := s.today(lockCtx, tx, doctorID, now)
			if err != nil {
				return err
			}
			tr, err := CallNext(current, now)
			if err != nil {
				return err
			}
			called, err = s.apply(lockCtx, tx, tr)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("patient called",
		zap.String("doctor_id", doctorID.String()),
		zap.String("queue_number", called.Number),
	)
	return called, nil
}

// UpdateStatus applies a front-desk status change to one entry. Completing or
// cancelling an entry linked to an appointment carries the change over to the
// appointment.
func (s *Service) UpdateStatus(ctx context.Context, entryID uuid.UUID, to clinic.QueueStatus) (*clinic.QueueEntry, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown queue status %q", clinic.ErrValidation, to)
	}
	entry, err := s.repo.GetQueueEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	var updated *clinic.QueueEntry
	err = s.locker.WithDoctorLock(ctx, entry.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(tx Repository) error {
			current, err := tx.GetQueueEntry(lockCtx, entryID)
			if err != nil {
				return err
			}
			now := s.now()
			if to == clinic.QueueWithDoctor {
				entries, err := s.today(lockCtx, tx, current.DoctorID, now)
				if err != nil {
					return err
				}
				if err := CheckDoctorFree(entries); err != nil {
					return err
				}
			}
			tr, err := Advance(*current, to, now)
			if err != nil {
				return err
			}
			if updated, err = s.apply(lockCtx, tx, tr); err != nil {
				return err
			}
			return s.followAppointment(lockCtx, tx, *updated)
		})
	})
	if err != nil {
		return nil, err
	}

	if updated.AppointmentID != nil && updated.AppointmentAt != nil {
		s.invalidate(ctx, updated.DoctorID, *updated.AppointmentAt)
	}
	return updated, nil
}

// followAppointment mirrors a terminal queue status onto the linked appointment.
func (s *Service) followAppointment(ctx context.Context, tx Repository, e clinic.QueueEntry) error {
	if e.AppointmentID == nil {
		return nil
	}
	var to clinic.AppointmentStatus
	switch e.Status {
	case clinic.QueueCompleted:
		to = clinic.AppointmentCompleted
	case clinic.QueueCancelled:
		to = clinic.AppointmentCancelled
	default:
		return nil
	}

	appt, err := tx.GetAppointment(ctx, *e.AppointmentID)
	if err != nil {
		return err
	}
	if appt.Status != clinic.AppointmentInQueue {
		return nil
	}
	_, err = tx.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
	return err
}

// Remove deletes an entry that has not been completed. A linked appointment
// still IN_QUEUE goes back to BOOKED so it can be admitted again.
func (s *Service) Remove(ctx context.Context, entryID uuid.UUID) error {
	entry, err := s.repo.GetQueueEntry(ctx, entryID)
	if err != nil {
		return err
	}

	err = s.locker.WithDoctorLock(ctx, entry.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithinTx(lockCtx, func(tx Repository) error {
			current, err := tx.GetQueueEntry(lockCtx, entryID)
			if err != nil {
				return err
			}
			if current.Status == clinic.QueueCompleted {
				return fmt.Errorf("%w: queue entry %s is completed", clinic.ErrInvalidTransition, current.Number)
			}
			if err := tx.DeleteQueueEntry(lockCtx, current.ID); err != nil {
				return err
			}
			if current.AppointmentID != nil {
				appt, err := tx.GetAppointment(lockCtx, *current.AppointmentID)
				if err != nil {
					return err
				}
				if appt.Status == clinic.AppointmentInQueue {
					if _, err := tx.UpdateAppointmentStatus(lockCtx, appt.ID, appt.Status, clinic.AppointmentBooked); err != nil {
						return err
					}
				}
			}
			return s.logEvent(lockCtx, tx, current.ID, EventQueueRemoved, map[string]any{
				"queue_number": current.Number,
				"status":       current.Status,
			})
		})
	})
	if err != nil {
		return err
	}

	if entry.AppointmentAt != nil {
		s.invalidate(ctx, entry.DoctorID, *entry.AppointmentAt)
	}
	s.log.Info("queue entry removed", zap.String("queue_number", entry.Number))
	return nil
}

// DoctorQueue returns one doctor's ordered queue for date (YYYY-MM-DD, empty
// means today). A non-empty status keeps only entries in that status;
// WaitingCount always covers the whole day.
func (s *Service) DoctorQueue(ctx context.Context, doctorID uuid.UUID, date string, status clinic.QueueStatus) (*DoctorQueue, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown queue status %q", clinic.ErrValidation, status)
	}
	day, err := s.policy.ResolveDate(date, s.now())
	if err != nil {
		return nil, err
	}
	doctor, err := s.repo.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	from, to := s.policy.DayBounds(day)
	entries, err := s.repo.ListQueueEntries(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}

	q := GroupByDoctor(entries, []clinic.Doctor{*doctor})[doctorID]
	if status != "" {
		q.Entries = slices.DeleteFunc(q.Entries, func(e clinic.QueueEntry) bool { return e.Status != status })
	}
	return &q, nil
}

// Board groups every doctor's queue for date, doctors ordered by name.
func (s *Service) Board(ctx context.Context, date string) ([]DoctorQueue, error) {
	day, err := s.policy.ResolveDate(date, s.now())
	if err != nil {
		return nil, err
	}
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, err
	}
	from, to := s.policy.DayBounds(day)
	entries, err := s.repo.ListQueueEntriesForDay(ctx, from, to)
	if err != nil {
		return nil, err
	}

	grouped := GroupByDoctor(entries, doctors)
	out := make([]DoctorQueue, 0, len(grouped))
	for _, q := range grouped {
		out = append(out, q)
	}
	slices.SortFunc(out, func(a, b DoctorQueue) int {
		if c := cmp.Compare(a.Doctor.Name, b.Doctor.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Doctor.ID.String(), b.Doctor.ID.String())
	})
	return out, nil
}

// SweepStale cancels WAITING and WITH_DOCTOR entries left over from earlier
// days. It returns the number of entries cancelled.
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	cutoff, _ := s.policy.DayBounds(s.now())
	stale, err := s.repo.ListStaleActiveEntries(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale queue entries: %w", err)
	}

	swept := 0
	for _, e := range stale {
		err := s.locker.WithDoctorLock(ctx, e.DoctorID, func(lockCtx context.Context) error {
			return s.repo.WithinTx(lockCtx, func(tx Repository) error {
				current, err := tx.GetQueueEntry(lockCtx, e.ID)
				if err != nil {
					return err
				}
				tr, err := Advance(*current, clinic.QueueCancelled, s.now())
				if err != nil {
					return err
				}
				tr.Entry.Notes = appendNote(tr.Entry.Notes, "cancelled by end of day sweep")
				if _, err := tx.UpdateQueueEntry(lockCtx, tr.Entry, tr.From); err != nil {
					return err
				}
				return s.logEvent(lockCtx, tx, e.ID, EventQueueSwept, map[string]any{
					"queue_number": e.Number,
					"from":         tr.From,
				})
			})
		})
		switch {
		case err == nil:
			swept++
		case errors.Is(err, clinic.ErrNotFound), errors.Is(err, clinic.ErrInvalidTransition):
			// resolved by someone else in the meantime
		default:
			s.log.Warn("sweep queue entry", zap.String("queue_number", e.Number), zap.Error(err))
		}
	}
	return swept, nil
}

func appendNote(notes *string, note string) *string {
	if notes == nil || *notes == "" {
		return &note
	}
	joined := *notes + "; " + note
	return &joined
}

func (s *Service) today(ctx context.Context, tx Repository, doctorID uuid.UUID, now time.Time) ([]clinic.QueueEntry, error) {
	from, to := s.policy.DayBounds(now)
	return tx.ListQueueEntries(ctx, doctorID, from, to)
}

// insert numbers and stores a planned entry.
func (s *Service) insert(ctx context.Context, tx Repository, planned clinic.QueueEntry, now time.Time) (*clinic.QueueEntry, error) {
	day, _ := s.policy.DayBounds(now)
	seq, err := tx.NextSequence(ctx, clinic.SequenceQueue, planned.DoctorID, day)
	if err != nil {
		return nil, err
	}
	planned.ID = uuid.New()
	planned.Number = clinic.FormatQueueNumber(day, seq)

	created, err := tx.InsertQueueEntry(ctx, planned)
	if err != nil {
		return nil, err
	}
	err = s.logEvent(ctx, tx, created.ID, EventQueueAdmitted, map[string]any{
		"queue_number": created.Number,
		"doctor_id":    created.DoctorID.String(),
		"patient_id":   created.PatientID.String(),
		"type":         created.Type,
		"priority":     created.Priority,
	})
	return created, err
}

// apply persists a transition computed from the entry as read in tx.
func (s *Service) apply(ctx context.Context, tx Repository, tr Transition) (*clinic.QueueEntry, error) {
	updated, err := tx.UpdateQueueEntry(ctx, tr.Entry, tr.From)
	if err != nil {
		return nil, err
	}
	err = s.logEvent(ctx, tx, updated.ID, EventQueueStatusChanged, map[string]any{
		"queue_number": updated.Number,
		"from":         tr.From,
		"to":           tr.To,
	})
	return updated, err
}

func (s *Service) logEvent(ctx context.Context, tx Repository, entityID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}
	id := entityID
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
