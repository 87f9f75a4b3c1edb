package clinic

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the availability, queue and appointment
// packages that the caller can act on wraps exactly one of these.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrDuplicateActive = errors.New("duplicate active queue entry")
	ErrValidation      = errors.New("validation error")
	ErrEmptyQueue      = errors.New("queue empty")
)

var (
	ErrDoctorNotFound      = fmt.Errorf("%w: doctor", ErrNotFound)
	ErrPatientNotFound     = fmt.Errorf("%w: patient", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("%w: appointment", ErrNotFound)
	ErrQueueEntryNotFound  = fmt.Errorf("%w: queue entry", ErrNotFound)

	ErrDoctorBusy          = fmt.Errorf("%w: doctor is already with a patient", ErrInvalidState)
	ErrAppointmentClosed   = fmt.Errorf("%w: appointment is completed or cancelled", ErrInvalidState)
	ErrDoctorMismatch      = fmt.Errorf("%w: appointment belongs to another doctor", ErrInvalidState)
	ErrInvalidTransition   = fmt.Errorf("%w: invalid status transition", ErrInvalidState)
	ErrSlotUnavailable     = fmt.Errorf("%w: requested time is not available", ErrInvalidState)
	ErrConcurrentOperation = fmt.Errorf("%w: another operation for this doctor is in progress, please retry", ErrInvalidState)
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidState
	KindDuplicateActive
	KindValidation
	KindEmptyQueue
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindDuplicateActive:
		return "duplicate_active"
	case KindValidation:
		return "validation_error"
	case KindEmptyQueue:
		return "empty_queue"
	}
	return "internal_error"
}

// KindOf classifies err; anything that does not wrap a kind is KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateActive):
		return KindDuplicateActive
	case errors.Is(err, ErrEmptyQueue):
		return KindEmptyQueue
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	}
	return KindUnknown
}
