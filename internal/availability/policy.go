package availability

import (
	"fmt"
	"time"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

const (
	MessageUnavailable   = "Doctor is currently unavailable"
	MessageHeavilyBooked = "Doctor is heavily booked. Long wait expected."
	MessageModerateBusy  = "Doctor is moderately busy"
	MessageNoSlots       = "No slots available today"
	MessageAvailable     = "Doctor is available"
	MessageNotWorking    = "Doctor is not working on this day"
)

// Policy holds the clinic-wide constants the calculator depends on.
type Policy struct {
	// Location anchors "today" and every wall-clock comparison.
	Location                   *time.Location
	DefaultConsultationMinutes int
	// AverageConsultationMinutes models queue throughput, not slot length.
	AverageConsultationMinutes int
	HeavyQueueThreshold        int
	BusyQueueThreshold         int
}

func DefaultPolicy(loc *time.Location) Policy {
	return Policy{
		Location:                   loc,
		DefaultConsultationMinutes: 30,
		AverageConsultationMinutes: 15,
		HeavyQueueThreshold:        10,
		BusyQueueThreshold:         5,
	}
}

func (p Policy) validate() error {
	if p.Location == nil {
		return fmt.Errorf("%w: policy location is required", clinic.ErrValidation)
	}
	if p.DefaultConsultationMinutes <= 0 {
		return fmt.Errorf("%w: default consultation duration must be positive", clinic.ErrValidation)
	}
	if p.AverageConsultationMinutes < 0 {
		return fmt.Errorf("%w: average consultation duration must not be negative", clinic.ErrValidation)
	}
	return nil
}

// ConsultationMinutes resolves the slot length for doctor.
func (p Policy) ConsultationMinutes(doctor clinic.Doctor) (int, error) {
	if doctor.ConsultationDuration == nil {
		return p.DefaultConsultationMinutes, nil
	}
	if d := *doctor.ConsultationDuration; d > 0 {
		return d, nil
	}
	return 0, fmt.Errorf("%w: consultation duration must be positive, got %d",
		clinic.ErrValidation, *doctor.ConsultationDuration)
}

// DayBounds returns [start, end) of the calendar day containing t in p.Location.
func (p Policy) DayBounds(t time.Time) (time.Time, time.Time) {
	l := t.In(p.Location)
	start := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, p.Location)
	return start, start.AddDate(0, 0, 1)
}

// ParseDate reads YYYY-MM-DD as a calendar day in p.Location.
func (p Policy) ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, s, p.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", clinic.ErrValidation)
	}
	return d, nil
}

// ResolveDate parses s as a calendar day, defaulting to the day containing
// now when s is empty.
func (p Policy) ResolveDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		day, _ := p.DayBounds(now)
		return day, nil
	}
	return p.ParseDate(s)
}

func (p Policy) statusMessage(available bool, waiting, openSlots int) string {
	switch {
	case !available:
		return MessageUnavailable
	case waiting > p.HeavyQueueThreshold:
		return MessageHeavilyBooked
	case waiting > p.BusyQueueThreshold:
		return MessageModerateBusy
	case openSlots == 0:
		return MessageNoSlots
	}
	return MessageAvailable
}
