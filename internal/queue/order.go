package queue

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

// statusRank orders WITH_DOCTOR, then WAITING, then the terminal statuses.
func statusRank(s clinic.QueueStatus) int {
	switch s {
	case clinic.QueueWithDoctor:
		return 0
	case clinic.QueueWaiting:
		return 1
	case clinic.QueueCompleted, clinic.QueueCancelled:
		return 2
	}
	return 3
}

func priorityRank(p clinic.Priority) int {
	switch p {
	case clinic.PriorityUrgent:
		return 0
	case clinic.PriorityNormal:
		return 1
	}
	return 2
}

func linked(e clinic.QueueEntry) bool {
	return e.AppointmentID != nil && e.AppointmentAt != nil
}

// arrival is the moment that decides a NORMAL entry's turn: the scheduled
// time for appointment-linked entries, the registration time for walk-ins.
func arrival(e clinic.QueueEntry) time.Time {
	if linked(e) {
		return *e.AppointmentAt
	}
	return e.CreatedAt
}

// linkRank puts an appointment ahead of a walk-in that arrived at the same moment.
func linkRank(e clinic.QueueEntry) int {
	if linked(e) {
		return 0
	}
	return 1
}

func closedAt(e clinic.QueueEntry) time.Time {
	if e.CompletedAt != nil {
		return *e.CompletedAt
	}
	return e.CreatedAt
}

// Compare is the queue's total order. Each rule only runs when every earlier
// rule ties, so the result is a lexicographic comparison of per-entry keys.
func Compare(a, b clinic.QueueEntry) int {
	ra, rb := statusRank(a.Status), statusRank(b.Status)
	if c := cmp.Compare(ra, rb); c != 0 {
		return c
	}

	if ra == 2 {
		// most recently closed first
		if c := closedAt(b).Compare(closedAt(a)); c != 0 {
			return c
		}
		return tieBreak(a, b)
	}

	if c := cmp.Compare(priorityRank(a.Priority), priorityRank(b.Priority)); c != 0 {
		return c
	}

	if a.Priority == clinic.PriorityNormal {
		if c := arrival(a).Compare(arrival(b)); c != 0 {
			return c
		}
		if c := cmp.Compare(linkRank(a), linkRank(b)); c != 0 {
			return c
		}
	}

	return tieBreak(a, b)
}

func tieBreak(a, b clinic.QueueEntry) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	if c := strings.Compare(a.Number, b.Number); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

// Sort returns entries in queue order. The input slice is not modified.
func Sort(entries []clinic.QueueEntry) []clinic.QueueEntry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, Compare)
	return out
}
