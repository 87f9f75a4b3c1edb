package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

// SnapshotReader loads the calendar inputs of one doctor.
type SnapshotReader interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*clinic.Doctor, error)
	ListSchedule(ctx context.Context, doctorID uuid.UUID) ([]clinic.WeeklyScheduleEntry, error)
	ListBreaks(ctx context.Context, doctorID uuid.UUID) ([]clinic.BreakEntry, error)
	// ListAppointments returns occupying appointments scheduled in [from, to).
	ListAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]clinic.Appointment, error)
}

type Repository interface {
	SnapshotReader
	CountActiveQueue(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int, error)
}

// SnapshotCache keeps DaySnapshots keyed by doctor, calendar day and
// generation. Invalidate advances the generation, so a snapshot loaded under
// an older one is never served again. Get reports a miss as (nil, nil).
type SnapshotCache interface {
	Generation(ctx context.Context, doctorID uuid.UUID, day time.Time) (int64, error)
	Get(ctx context.Context, doctorID uuid.UUID, day time.Time, gen int64) (*DaySnapshot, error)
	Set(ctx context.Context, doctorID uuid.UUID, day time.Time, gen int64, snap *DaySnapshot) error
	Invalidate(ctx context.Context, doctorID uuid.UUID, day time.Time) error
}

// DaySnapshot is the stored state Compute reads for one doctor and day.
type DaySnapshot struct {
	Doctor       clinic.Doctor
	Schedule     []clinic.WeeklyScheduleEntry
	Breaks       []clinic.BreakEntry
	Appointments []clinic.Appointment
}

// Input combines the snapshot with the volatile values of a request.
func (s DaySnapshot) Input(date, now time.Time, queueWaiting int) Input {
	return Input{
		Doctor:            s.Doctor,
		Schedule:          s.Schedule,
		Breaks:            s.Breaks,
		Appointments:      s.Appointments,
		Date:              date,
		Now:               now,
		QueueWaitingCount: queueWaiting,
	}
}

// LoadSnapshot reads doctorID's calendar for the day containing date.
func LoadSnapshot(ctx context.Context, r SnapshotReader, doctorID uuid.UUID, date time.Time, p Policy) (*DaySnapshot, error) {
	doctor, err := r.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	schedule, err := r.ListSchedule(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	breaks, err := r.ListBreaks(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	from, to := p.DayBounds(date)
	appts, err := r.ListAppointments(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return &DaySnapshot{
		Doctor:       *doctor,
		Schedule:     schedule,
		Breaks:       breaks,
		Appointments: appts,
	}, nil
}

type nopCache struct{}

// NopCache never stores anything.
var NopCache SnapshotCache = nopCache{}

func (nopCache) Generation(context.Context, uuid.UUID, time.Time) (int64, error) { return 0, nil }

func (nopCache) Get(context.Context, uuid.UUID, time.Time, int64) (*DaySnapshot, error) {
	return nil, nil
}

func (nopCache) Set(context.Context, uuid.UUID, time.Time, int64, *DaySnapshot) error { return nil }

func (nopCache) Invalidate(context.Context, uuid.UUID, time.Time) error { return nil }
