package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

// Transition is a proposed status change; the caller persists it.
type Transition struct {
	Entry clinic.QueueEntry
	From  clinic.QueueStatus
	To    clinic.QueueStatus
}

type DoctorQueue struct {
	Doctor       clinic.Doctor
	WaitingCount int
	Entries      []clinic.QueueEntry
}

type WalkInRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Priority  clinic.Priority
	Notes     *string
}

type AppointmentAdmission struct {
	DoctorID    uuid.UUID
	Appointment clinic.Appointment
	Notes       *string
}

// CheckDoctorFree fails when any entry is already WITH_DOCTOR.
func CheckDoctorFree(entries []clinic.QueueEntry) error {
	for _, e := range entries {
		if e.Status == clinic.QueueWithDoctor {
			return fmt.Errorf("%w (entry %s)", clinic.ErrDoctorBusy, e.Number)
		}
	}
	return nil
}

// CallNext picks the first WAITING entry in queue order and proposes moving it
// to WITH_DOCTOR. entries must all belong to one doctor.
func CallNext(entries []clinic.QueueEntry, now time.Time) (Transition, error) {
	if err := CheckDoctorFree(entries); err != nil {
		return Transition{}, err
	}
	for _, e := range Sort(entries) {
		if e.Status == clinic.QueueWaiting {
			return Advance(e, clinic.QueueWithDoctor, now)
		}
	}
	return Transition{}, clinic.ErrEmptyQueue
}

// Advance applies the queue status machine:
// WAITING -> WITH_DOCTOR -> COMPLETED, and WAITING|WITH_DOCTOR -> CANCELLED.
// Timestamps are only ever set once.
func Advance(e clinic.QueueEntry, to clinic.QueueStatus, now time.Time) (Transition, error) {
	from := e.Status
	allowed := false
	switch from {
	case clinic.QueueWaiting:
		allowed = to == clinic.QueueWithDoctor || to == clinic.QueueCancelled
	case clinic.QueueWithDoctor:
		allowed = to == clinic.QueueCompleted || to == clinic.QueueCancelled
	case clinic.QueueCompleted, clinic.QueueCancelled:
		allowed = false
	}
	if !allowed {
		return Transition{}, fmt.Errorf("%w: %s -> %s", clinic.ErrInvalidTransition, from, to)
	}

	switch to {
	case clinic.QueueWithDoctor:
		if e.StartedAt == nil {
			t := now
			e.StartedAt = &t
		}
	case clinic.QueueCompleted:
		if e.CompletedAt == nil {
			t := now
			e.CompletedAt = &t
		}
	}
	e.Status = to

	return Transition{Entry: e, From: from, To: to}, nil
}

func findActive(active []clinic.QueueEntry, doctorID, patientID uuid.UUID) *clinic.QueueEntry {
	for i := range active {
		e := active[i]
		if e.DoctorID == doctorID && e.PatientID == patientID && e.Status.Active() {
			return &active[i]
		}
	}
	return nil
}

// PlanWalkIn validates a walk-in registration against the doctor's current
// entries and returns the WAITING entry to create. Number and ID are left to
// the caller.
func PlanWalkIn(req WalkInRequest, patient clinic.Patient, current []clinic.QueueEntry, now time.Time) (clinic.QueueEntry, error) {
	priority := req.Priority
	if priority == "" {
		priority = clinic.PriorityNormal
	}
	if !priority.Valid() {
		return clinic.QueueEntry{}, fmt.Errorf("%w: unknown priority %q", clinic.ErrValidation, req.Priority)
	}
	if dup := findActive(current, req.DoctorID, patient.ID); dup != nil {
		return clinic.QueueEntry{}, fmt.Errorf("%w: patient %s is %s as %s",
			clinic.ErrDuplicateActive, patient.ID, dup.Status, dup.Number)
	}

	return clinic.QueueEntry{
		DoctorID:    req.DoctorID,
		PatientID:   patient.ID,
		PatientName: patient.Name,
		Type:        clinic.QueueWalkIn,
		Priority:    priority,
		Status:      clinic.QueueWaiting,
		Notes:       req.Notes,
		CreatedAt:   now,
	}, nil
}

// PlanAppointmentAdmission validates moving a booked appointment into the
// doctor's queue. Appointment admissions are always NORMAL priority; their
// place comes from the scheduled time.
func PlanAppointmentAdmission(req AppointmentAdmission, patient clinic.Patient, current []clinic.QueueEntry, now time.Time) (clinic.QueueEntry, error) {
	appt := req.Appointment
	if appt.DoctorID != req.DoctorID {
		return clinic.QueueEntry{}, fmt.Errorf("%w: appointment %s", clinic.ErrDoctorMismatch, appt.Number)
	}
	if appt.Status.Closed() {
		return clinic.QueueEntry{}, fmt.Errorf("%w: appointment %s is %s", clinic.ErrAppointmentClosed, appt.Number, appt.Status)
	}
	if dup := findActive(current, req.DoctorID, appt.PatientID); dup != nil {
		return clinic.QueueEntry{}, fmt.Errorf("%w: patient %s is %s as %s",
			clinic.ErrDuplicateActive, appt.PatientID, dup.Status, dup.Number)
	}

	id := appt.ID
	scheduled := appt.ScheduledAt
	return clinic.QueueEntry{
		DoctorID:      req.DoctorID,
		PatientID:     appt.PatientID,
		PatientName:   patient.Name,
		AppointmentID: &id,
		AppointmentAt: &scheduled,
		Type:          clinic.QueueAppointment,
		Priority:      clinic.PriorityNormal,
		Status:        clinic.QueueWaiting,
		Notes:         req.Notes,
		CreatedAt:     now,
	}, nil
}

// GroupByDoctor partitions entries per doctor and orders each partition.
// Every doctor in doctors gets a (possibly empty) queue.
func GroupByDoctor(entries []clinic.QueueEntry, doctors []clinic.Doctor) map[uuid.UUID]DoctorQueue {
	byDoctor := make(map[uuid.UUID][]clinic.QueueEntry)
	for _, e := range entries {
		byDoctor[e.DoctorID] = append(byDoctor[e.DoctorID], e)
	}

	out := make(map[uuid.UUID]DoctorQueue, len(doctors))
	for _, d := range doctors {
		out[d.ID] = DoctorQueue{Doctor: d, Entries: []clinic.QueueEntry{}}
	}

	for doctorID, list := range byDoctor {
		q, ok := out[doctorID]
		if !ok {
			q = DoctorQueue{Doctor: clinic.Doctor{ID: doctorID}}
		}
		q.Entries = Sort(list)
		q.WaitingCount = CountActive(list)
		out[doctorID] = q
	}
	return out
}

// CountActive counts WAITING and WITH_DOCTOR entries.
func CountActive(entries []clinic.QueueEntry) int {
	n := 0
	for _, e := range entries {
		if e.Status.Active() {
			n++
		}
	}
	return n
}
