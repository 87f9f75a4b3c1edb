package clinic

import (
	"fmt"
	"time"
)

// Counter scopes for the per-doctor, per-day sequences kept by storage.
const (
	SequenceQueue       = "queue"
	SequenceAppointment = "appointment"
)

// FormatQueueNumber renders Q-YYYYMMDD-NNN for the seq-th entry of day.
func FormatQueueNumber(day time.Time, seq int) string {
	return fmt.Sprintf("Q-%s-%03d", day.Format("20060102"), seq)
}

// FormatAppointmentNumber renders APT-YYYYMMDD-NNN.
func FormatAppointmentNumber(day time.Time, seq int) string {
	return fmt.Sprintf("APT-%s-%03d", day.Format("20060102"), seq)
}
