package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*clinic.Doctor, error)
	ListDoctors(ctx context.Context) ([]clinic.Doctor, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*clinic.Patient, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to clinic.AppointmentStatus) (*clinic.Appointment, error)

	// Entries created in [from, to).
	ListQueueEntries(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]clinic.QueueEntry, error)
	ListQueueEntriesForDay(ctx context.Context, from, to time.Time) ([]clinic.QueueEntry, error)
	ListStaleActiveEntries(ctx context.Context, cutoff time.Time) ([]clinic.QueueEntry, error)
	GetQueueEntry(ctx context.Context, id uuid.UUID) (*clinic.QueueEntry, error)

	// InsertQueueEntry and UpdateQueueEntry enforce the storage backstop:
	// they fail with clinic.ErrDuplicateActive or clinic.ErrDoctorBusy.
	InsertQueueEntry(ctx context.Context, e clinic.QueueEntry) (*clinic.QueueEntry, error)
	UpdateQueueEntry(ctx context.Context, e clinic.QueueEntry, from clinic.QueueStatus) (*clinic.QueueEntry, error)
	DeleteQueueEntry(ctx context.Context, id uuid.UUID) error

	NextSequence(ctx context.Context, scope string, doctorID uuid.UUID, day time.Time) (int, error)
	InsertEvent(ctx context.Context, ev clinic.EventLog) error

	// WithinTx runs fn atomically against a transactional Repository.
	WithinTx(ctx context.Context, fn func(Repository) error) error
}
