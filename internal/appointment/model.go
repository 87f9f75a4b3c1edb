package appointment

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
)

type BookRequest struct {
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	ScheduledAt time.Time
	// DurationMinutes of zero means the doctor's consultation duration.
	DurationMinutes int
	Notes           *string
}
