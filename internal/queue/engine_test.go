package queue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

func TestCallNext(t *testing.T) {
	now := hm(10, 0)

	t.Run("picks first waiting entry in queue order", func(t *testing.T) {
		a := walkIn("A", clinic.QueueWaiting, clinic.PriorityNormal, hm(9, 0))
		b := walkIn("B", clinic.QueueWaiting, clinic.PriorityUrgent, hm(9, 5))
		done := walkIn("X", clinic.QueueCompleted, clinic.PriorityUrgent, hm(8, 0))

		tr, err := CallNext([]clinic.QueueEntry{a, done, b}, now)
		require.NoError(t, err)
		assert.Equal(t, "B", tr.Entry.Number)
		assert.Equal(t, clinic.QueueWaiting, tr.From)
		assert.Equal(t, clinic.QueueWithDoctor, tr.To)
		assert.Equal(t, clinic.QueueWithDoctor, tr.Entry.Status)
		require.NotNil(t, tr.Entry.StartedAt)
		assert.Equal(t, now, *tr.Entry.StartedAt)
	})

	t.Run("doctor busy", func(t *testing.T) {
		a := walkIn("A", clinic.QueueWaiting, clinic.PriorityNormal, hm(9, 0))
		c := walkIn("C", clinic.QueueWithDoctor, clinic.PriorityNormal, hm(8, 0))

		_, err := CallNext([]clinic.QueueEntry{a, c}, now)
		assert.ErrorIs(t, err, clinic.ErrDoctorBusy)
		assert.ErrorIs(t, err, clinic.ErrInvalidState)
	})

	t.Run("only terminal entries", func(t *testing.T) {
		done := walkIn("X", clinic.QueueCompleted, clinic.PriorityNormal, hm(8, 0))
		gone := walkIn("Y", clinic.QueueCancelled, clinic.PriorityNormal, hm(8, 5))

		_, err := CallNext([]clinic.QueueEntry{done, gone}, now)
		assert.ErrorIs(t, err, clinic.ErrEmptyQueue)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := CallNext(nil, now)
		assert.ErrorIs(t, err, clinic.ErrEmptyQueue)
	})
}

func TestAdvance(t *testing.T) {
	now := hm(10, 0)
	later := hm(10, 20)

	cases := []struct {
		from clinic.QueueStatus
		to   clinic.QueueStatus
		ok   bool
	}{
		{clinic.QueueWaiting, clinic.QueueWithDoctor, true},
		{clinic.QueueWaiting, clinic.QueueCancelled, true},
		{clinic.QueueWithDoctor, clinic.QueueCompleted, true},
		{clinic.QueueWithDoctor, clinic.QueueCancelled, true},
		{clinic.QueueWaiting, clinic.QueueCompleted, false},
		{clinic.QueueWaiting, clinic.QueueWaiting, false},
		{clinic.QueueWithDoctor, clinic.QueueWaiting, false},
		{clinic.QueueCompleted, clinic.QueueCancelled, false},
		{clinic.QueueCancelled, clinic.QueueWaiting, false},
		{clinic.QueueCompleted, clinic.QueueWithDoctor, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			e := walkIn("A", tc.from, clinic.PriorityNormal, hm(9, 0))
			tr, err := Advance(e, tc.to, now)
			if !tc.ok {
				assert.ErrorIs(t, err, clinic.ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, tr.Entry.Status)
		})
	}

	t.Run("timestamps are set once", func(t *testing.T) {
		e := walkIn("A", clinic.QueueWaiting, clinic.PriorityNormal, hm(9, 0))
		started := hm(9, 30)
		e.StartedAt = &started

		tr, err := Advance(e, clinic.QueueWithDoctor, now)
		require.NoError(t, err)
		assert.Equal(t, started, *tr.Entry.StartedAt)

		tr, err = Advance(tr.Entry, clinic.QueueCompleted, later)
		require.NoError(t, err)
		assert.Equal(t, started, *tr.Entry.StartedAt)
		assert.Equal(t, later, *tr.Entry.CompletedAt)
	})

	t.Run("cancel leaves completion unset", func(t *testing.T) {
		e := walkIn("A", clinic.QueueWaiting, clinic.PriorityNormal, hm(9, 0))
		tr, err := Advance(e, clinic.QueueCancelled, now)
		require.NoError(t, err)
		assert.Nil(t, tr.Entry.CompletedAt)
		assert.Nil(t, tr.Entry.StartedAt)
	})
}

func TestPlanWalkIn(t *testing.T) {
	patient := clinic.Patient{ID: uuid.New(), Name: "Ravi"}
	now := hm(9, 0)

	t.Run("defaults to normal priority", func(t *testing.T) {
		e, err := PlanWalkIn(WalkInRequest{DoctorID: doctorA, PatientID: patient.ID}, patient, nil, now)
		require.NoError(t, err)
		assert.Equal(t, clinic.PriorityNormal, e.Priority)
		assert.Equal(t, clinic.QueueWalkIn, e.Type)
		assert.Equal(t, clinic.QueueWaiting, e.Status)
		assert.Equal(t, now, e.CreatedAt)
		assert.Equal(t, "Ravi", e.PatientName)
		assert.Nil(t, e.AppointmentID)
	})

	t.Run("rejects unknown priority", func(t *testing.T) {
		_, err := PlanWalkIn(WalkInRequest{DoctorID: doctorA, PatientID: patient.ID, Priority: "CRITICAL"}, patient, nil, now)
		assert.ErrorIs(t, err, clinic.ErrValidation)
	})

	for _, status := range []clinic.QueueStatus{clinic.QueueWaiting, clinic.QueueWithDoctor} {
		t.Run("duplicate "+string(status), func(t *testing.T) {
			existing := walkIn("A", status, clinic.PriorityNormal, hm(8, 0))
			existing.PatientID = patient.ID
			_, err := PlanWalkIn(WalkInRequest{DoctorID: doctorA, PatientID: patient.ID, Priority: clinic.PriorityUrgent}, patient, []clinic.QueueEntry{existing}, now)
			assert.ErrorIs(t, err, clinic.ErrDuplicateActive)
		})
	}

	t.Run("finished entries do not block", func(t *testing.T) {
		existing := walkIn("A", clinic.QueueCompleted, clinic.PriorityNormal, hm(8, 0))
		existing.PatientID = patient.ID
		e, err := PlanWalkIn(WalkInRequest{DoctorID: doctorA, PatientID: patient.ID, Priority: clinic.PriorityUrgent}, patient, []clinic.QueueEntry{existing}, now)
		require.NoError(t, err)
		assert.Equal(t, clinic.PriorityUrgent, e.Priority)
	})
}

func TestPlanAppointmentAdmission(t *testing.T) {
	patient := clinic.Patient{ID: uuid.New(), Name: "Meera"}
	appt := clinic.Appointment{
		ID:          uuid.New(),
		Number:      "APT-20251006-004",
		DoctorID:    doctorA,
		PatientID:   patient.ID,
		ScheduledAt: hm(11, 0),
		Status:      clinic.AppointmentBooked,
	}
	now := hm(10, 40)

	t.Run("admits as normal appointment entry", func(t *testing.T) {
		e, err := PlanAppointmentAdmission(AppointmentAdmission{DoctorID: doctorA, Appointment: appt}, patient, nil, now)
		require.NoError(t, err)
		assert.Equal(t, clinic.QueueAppointment, e.Type)
		assert.Equal(t, clinic.PriorityNormal, e.Priority)
		require.NotNil(t, e.AppointmentID)
		assert.Equal(t, appt.ID, *e.AppointmentID)
		assert.Equal(t, appt.ScheduledAt, *e.AppointmentAt)
	})

	t.Run("doctor mismatch", func(t *testing.T) {
		_, err := PlanAppointmentAdmission(AppointmentAdmission{DoctorID: uuid.New(), Appointment: appt}, patient, nil, now)
		assert.ErrorIs(t, err, clinic.ErrDoctorMismatch)
	})

	for _, status := range []clinic.AppointmentStatus{clinic.AppointmentCancelled, clinic.AppointmentCompleted} {
		t.Run("closed "+string(status), func(t *testing.T) {
			closed := appt
			closed.Status = status
			_, err := PlanAppointmentAdmission(AppointmentAdmission{DoctorID: doctorA, Appointment: closed}, patient, nil, now)
			assert.ErrorIs(t, err, clinic.ErrAppointmentClosed)
		})
	}

	t.Run("duplicate", func(t *testing.T) {
		existing := walkIn("A", clinic.QueueWaiting, clinic.PriorityUrgent, hm(8, 0))
		existing.PatientID = patient.ID
		_, err := PlanAppointmentAdmission(AppointmentAdmission{DoctorID: doctorA, Appointment: appt}, patient, []clinic.QueueEntry{existing}, now)
		assert.ErrorIs(t, err, clinic.ErrDuplicateActive)
	})
}

func TestGroupByDoctor(t *testing.T) {
	doctorB := uuid.New()
	doctors := []clinic.Doctor{{ID: doctorA, Name: "Dr. A"}, {ID: doctorB, Name: "Dr. B"}}

	a1 := walkIn("A1", clinic.QueueWaiting, clinic.PriorityNormal, hm(9, 0))
	a2 := walkIn("A2", clinic.QueueWithDoctor, clinic.PriorityNormal, hm(9, 5))
	a3 := walkIn("A3", clinic.QueueCompleted, clinic.PriorityNormal, hm(8, 0))
	orphan := walkIn("Z1", clinic.QueueWaiting, clinic.PriorityNormal, hm(9, 0))
	orphan.DoctorID = uuid.New()

	got := GroupByDoctor([]clinic.QueueEntry{a1, a3, orphan, a2}, doctors)
	require.Len(t, got, 3)

	qa := got[doctorA]
	assert.Equal(t, "Dr. A", qa.Doctor.Name)
	assert.Equal(t, 2, qa.WaitingCount)
	assert.Equal(t, []string{"A2", "A1", "A3"}, numbers(qa.Entries))

	qb := got[doctorB]
	assert.Zero(t, qb.WaitingCount)
	assert.Empty(t, qb.Entries)

	qz := got[orphan.DoctorID]
	assert.Equal(t, 1, qz.WaitingCount)
	assert.Equal(t, orphan.DoctorID, qz.Doctor.ID)
}
