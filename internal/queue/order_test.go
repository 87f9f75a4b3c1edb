package queue

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

var day = time.Date(2025, 10, 6, 0, 0, 0, 0, time.FixedZone("IST", 5*3600+30*60))

func hm(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func tp(t time.Time) *time.Time { return &t }

func walkIn(number string, status clinic.QueueStatus, priority clinic.Priority, created time.Time) clinic.QueueEntry {
	return clinic.QueueEntry{
		ID:        uuid.New(),
		Number:    number,
		DoctorID:  doctorA,
		PatientID: uuid.New(),
		Type:      clinic.QueueWalkIn,
		Priority:  priority,
		Status:    status,
		CreatedAt: created,
	}
}

func booked(number string, status clinic.QueueStatus, scheduled, created time.Time) clinic.QueueEntry {
	id := uuid.New()
	e := walkIn(number, status, clinic.PriorityNormal, created)
	e.Type = clinic.QueueAppointment
	e.AppointmentID = &id
	e.AppointmentAt = tp(scheduled)
	return e
}

var doctorA = uuid.MustParse("0b3c2b9e-2f0e-4a55-8f39-5a3c1c0d9a01")

func numbers(entries []clinic.QueueEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Number
	}
	return out
}

func TestSort_WithDoctorThenUrgentThenFIFO(t *testing.T) {
	a := walkIn("A", clinic.QueueWaiting, clinic.PriorityNormal, hm(9, 0))
	b := walkIn("B", clinic.QueueWaiting, clinic.PriorityUrgent, hm(9, 5))
	c := walkIn("C", clinic.QueueWithDoctor, clinic.PriorityNormal, hm(8, 30))

	got := Sort([]clinic.QueueEntry{a, b, c})
	assert.Equal(t, []string{"C", "B", "A"}, numbers(got))
}

func TestSort_WalkInBeforeLaterAppointment(t *testing.T) {
	d := booked("D", clinic.QueueWaiting, hm(9, 30), hm(8, 0))
	e := walkIn("E", clinic.QueueWaiting, clinic.PriorityNormal, hm(9, 0))

	assert.Equal(t, []string{"E", "D"}, numbers(Sort([]clinic.QueueEntry{d, e})))
}

func TestSort_AppointmentWinsTieWithWalkIn(t *testing.T) {
	d := booked("D", clinic.QueueWaiting, hm(9, 0), hm(8, 55))
	e := walkIn("E", clinic.QueueWaiting, clinic.PriorityNormal, hm(9, 0))

	assert.Equal(t, []string{"D", "E"}, numbers(Sort([]clinic.QueueEntry{e, d})))
}

func TestSort_AppointmentsByScheduledTime(t *testing.T) {
	late := booked("LATE", clinic.QueueWaiting, hm(11, 0), hm(8, 0))
	early := booked("EARLY", clinic.QueueWaiting, hm(10, 0), hm(9, 45))

	assert.Equal(t, []string{"EARLY", "LATE"}, numbers(Sort([]clinic.QueueEntry{late, early})))
}

func TestSort_TerminalEntriesMostRecentFirst(t *testing.T) {
	done := walkIn("DONE", clinic.QueueCompleted, clinic.PriorityNormal, hm(8, 0))
	done.CompletedAt = tp(hm(9, 0))
	doneLater := walkIn("DONE2", clinic.QueueCompleted, clinic.PriorityUrgent, hm(8, 10))
	doneLater.CompletedAt = tp(hm(10, 0))
	cancelled := walkIn("CANC", clinic.QueueCancelled, clinic.PriorityNormal, hm(9, 30))
	waiting := walkIn("W", clinic.QueueWaiting, clinic.PriorityNormal, hm(11, 0))

	got := Sort([]clinic.QueueEntry{done, cancelled, waiting, doneLater})
	assert.Equal(t, []string{"W", "DONE2", "CANC", "DONE"}, numbers(got))
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	a := walkIn("A", clinic.QueueWaiting, clinic.PriorityNormal, hm(9, 0))
	b := walkIn("B", clinic.QueueWaiting, clinic.PriorityUrgent, hm(9, 5))
	in := []clinic.QueueEntry{a, b}

	_ = Sort(in)
	assert.Equal(t, []string{"A", "B"}, numbers(in))
}

func randomEntries(f *gofakeit.Faker, n int) []clinic.QueueEntry {
	statuses := []clinic.QueueStatus{clinic.QueueWaiting, clinic.QueueWithDoctor, clinic.QueueCompleted, clinic.QueueCancelled}
	out := make([]clinic.QueueEntry, 0, n)
	for i := 0; i < n; i++ {
		// coarse minutes so that ties actually happen
		created := hm(8, f.Number(0, 12)*10)
		status := statuses[f.Number(0, len(statuses)-1)]
		var e clinic.QueueEntry
		if f.Bool() {
			e = booked(f.LetterN(4), status, hm(8, f.Number(0, 12)*10), created)
		} else {
			priority := clinic.PriorityNormal
			if f.Number(0, 3) == 0 {
				priority = clinic.PriorityUrgent
			}
			e = walkIn(f.LetterN(4), status, priority, created)
		}
		if status == clinic.QueueCompleted && f.Bool() {
			e.CompletedAt = tp(hm(10, f.Number(0, 6)*10))
		}
		out = append(out, e)
	}
	return out
}

func TestCompare_IsATotalOrder(t *testing.T) {
	f := gofakeit.New(42)
	entries := randomEntries(f, 40)

	for _, a := range entries {
		assert.Zero(t, Compare(a, a))
		for _, b := range entries {
			ab, ba := Compare(a, b), Compare(b, a)
			require.Equal(t, ab, -ba, "antisymmetry %s/%s", a.Number, b.Number)
			if a.ID != b.ID {
				require.NotZero(t, ab, "distinct entries must be ordered")
			}
			for _, c := range entries {
				if ab < 0 && Compare(b, c) < 0 {
					require.Negative(t, Compare(a, c), "transitivity %s<%s<%s", a.Number, b.Number, c.Number)
				}
			}
		}
	}
}

func TestSort_StableUnderReapplicationAndShuffle(t *testing.T) {
	f := gofakeit.New(7)
	for round := 0; round < 20; round++ {
		entries := randomEntries(f, 25)
		sorted := Sort(entries)
		assert.Equal(t, sorted, Sort(sorted), "sorting a sorted queue is a no-op")

		shuffled := append([]clinic.QueueEntry(nil), entries...)
		f.ShuffleAnySlice(shuffled)
		assert.Equal(t, sorted, Sort(shuffled), "order must not depend on input order")
	}
}

func TestSort_TerminalAlwaysLast(t *testing.T) {
	f := gofakeit.New(99)
	for round := 0; round < 20; round++ {
		sorted := Sort(randomEntries(f, 30))
		seenTerminal := false
		for _, e := range sorted {
			if e.Status.Terminal() {
				seenTerminal = true
				continue
			}
			assert.False(t, seenTerminal, "active entry %s after a terminal one", e.Number)
		}
	}
}
