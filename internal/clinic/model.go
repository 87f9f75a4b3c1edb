package clinic

import (
	"time"

	"github.com/google/uuid"
)

type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

var weekdays = [...]DayOfWeek{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// DayOf returns the day of week of t in t's own location.
func DayOf(t time.Time) DayOfWeek {
	return weekdays[t.Weekday()]
}

func (d DayOfWeek) Valid() bool {
	for _, w := range weekdays {
		if d == w {
			return true
		}
	}
	return false
}

type BreakKind string

const (
	BreakLunch   BreakKind = "LUNCH"
	BreakShort   BreakKind = "BREAK"
	BreakMeeting BreakKind = "MEETING"
)

func (k BreakKind) Valid() bool {
	switch k {
	case BreakLunch, BreakShort, BreakMeeting:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	AppointmentBooked      AppointmentStatus = "BOOKED"
	AppointmentScheduled   AppointmentStatus = "SCHEDULED"
	AppointmentInQueue     AppointmentStatus = "IN_QUEUE"
	AppointmentCompleted   AppointmentStatus = "COMPLETED"
	AppointmentCancelled   AppointmentStatus = "CANCELLED"
	AppointmentRescheduled AppointmentStatus = "RESCHEDULED"
	AppointmentNoShow      AppointmentStatus = "NO_SHOW"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentBooked, AppointmentScheduled, AppointmentInQueue, AppointmentCompleted,
		AppointmentCancelled, AppointmentRescheduled, AppointmentNoShow:
		return true
	}
	return false
}

// OccupiesSlot reports whether an appointment in this status blocks its time window.
func (s AppointmentStatus) OccupiesSlot() bool {
	switch s {
	case AppointmentBooked, AppointmentScheduled, AppointmentInQueue, AppointmentRescheduled:
		return true
	case AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return false
	}
	return false
}

// Closed statuses accept no further transitions.
func (s AppointmentStatus) Closed() bool {
	return s == AppointmentCompleted || s == AppointmentCancelled
}

type QueueStatus string

const (
	QueueWaiting    QueueStatus = "WAITING"
	QueueWithDoctor QueueStatus = "WITH_DOCTOR"
	QueueCompleted  QueueStatus = "COMPLETED"
	QueueCancelled  QueueStatus = "CANCELLED"
)

func (s QueueStatus) Valid() bool {
	switch s {
	case QueueWaiting, QueueWithDoctor, QueueCompleted, QueueCancelled:
		return true
	}
	return false
}

// Active is true for WAITING and WITH_DOCTOR.
func (s QueueStatus) Active() bool {
	return s == QueueWaiting || s == QueueWithDoctor
}

func (s QueueStatus) Terminal() bool {
	return s == QueueCompleted || s == QueueCancelled
}

type QueueType string

const (
	QueueWalkIn      QueueType = "WALK_IN"
	QueueAppointment QueueType = "APPOINTMENT"
)

func (t QueueType) Valid() bool {
	return t == QueueWalkIn || t == QueueAppointment
}

type Priority string

const (
	PriorityNormal Priority = "NORMAL"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityUrgent
}

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization *string
	// ConsultationDuration is in minutes; nil means the clinic default.
	ConsultationDuration *int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type WeeklyScheduleEntry struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	DayOfWeek DayOfWeek
	StartTime Clock
	EndTime   Clock
	IsWorking bool
}

type BreakEntry struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	DayOfWeek DayOfWeek
	StartTime Clock
	EndTime   Clock
	Kind      BreakKind
}

type Appointment struct {
	ID              uuid.UUID
	Number          string
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	PatientName     string
	ScheduledAt     time.Time
	DurationMinutes int
	Status          AppointmentStatus
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

type QueueEntry struct {
	ID          uuid.UUID
	Number      string
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	PatientName string
	// AppointmentAt mirrors the linked appointment's scheduled time for ordering.
	AppointmentID *uuid.UUID
	AppointmentAt *time.Time
	Type          QueueType
	Priority      Priority
	Status        QueueStatus
	Notes         *string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

type EventLog struct {
	ID        int64
	EventType string
	EntityID  *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
