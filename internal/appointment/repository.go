package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/availability"
	"github.com/hackgods/clinic-queue/internal/clinic"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	availability.SnapshotReader

	GetPatient(ctx context.Context, id uuid.UUID) (*clinic.Patient, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)

	// Creation and updates
	InsertAppointment(ctx context.Context, a clinic.Appointment) (*clinic.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to clinic.AppointmentStatus) (*clinic.Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, from clinic.AppointmentStatus, at time.Time) (*clinic.Appointment, error)
	NextSequence(ctx context.Context, scope string, doctorID uuid.UUID, day time.Time) (int, error)

	// No-show worker
	ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]clinic.Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev clinic.EventLog) error

	WithinTx(ctx context.Context, fn func(Repository) error) error
}
