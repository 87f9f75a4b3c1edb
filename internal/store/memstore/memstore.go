// Package memstore is an in-memory stand-in for store.Store. It keeps the same
// conditional-update and unique-index semantics and is used by service tests.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

type state struct {
	txMu sync.Mutex
	mu   sync.Mutex

	doctors      map[uuid.UUID]clinic.Doctor
	patients     map[uuid.UUID]clinic.Patient
	schedules    map[uuid.UUID]clinic.WeeklyScheduleEntry
	breaks       map[uuid.UUID]clinic.BreakEntry
	appointments map[uuid.UUID]clinic.Appointment
	queue        map[uuid.UUID]clinic.QueueEntry
	counters     map[string]int
	events       []clinic.EventLog
}

func (s *state) clone() *state {
	return &state{
		doctors:      maps.Clone(s.doctors),
		patients:     maps.Clone(s.patients),
		schedules:    maps.Clone(s.schedules),
		breaks:       maps.Clone(s.breaks),
		appointments: maps.Clone(s.appointments),
		queue:        maps.Clone(s.queue),
		counters:     maps.Clone(s.counters),
		events:       slices.Clone(s.events),
	}
}

func (s *state) restore(from *state) {
	s.doctors = from.doctors
	s.patients = from.patients
	s.schedules = from.schedules
	s.breaks = from.breaks
	s.appointments = from.appointments
	s.queue = from.queue
	s.counters = from.counters
	s.events = from.events
}

type Store struct {
	st   *state
	inTx bool
}

func New() *Store {
	return &Store{st: &state{
		doctors:      make(map[uuid.UUID]clinic.Doctor),
		patients:     make(map[uuid.UUID]clinic.Patient),
		schedules:    make(map[uuid.UUID]clinic.WeeklyScheduleEntry),
		breaks:       make(map[uuid.UUID]clinic.BreakEntry),
		appointments: make(map[uuid.UUID]clinic.Appointment),
		queue:        make(map[uuid.UUID]clinic.QueueEntry),
		counters:     make(map[string]int),
	}}
}

// WithinTx runs transactions one at a time and rolls every change back when
// fn fails.
func (s *Store) WithinTx(_ context.Context, fn func(*Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	s.st.mu.Lock()
	saved := s.st.clone()
	s.st.mu.Unlock()

	if err := fn(&Store{st: s.st, inTx: true}); err != nil {
		s.st.mu.Lock()
		s.st.restore(saved)
		s.st.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) lock() func() {
	s.st.mu.Lock()
	return s.st.mu.Unlock
}

func (s *Store) GetDoctor(_ context.Context, id uuid.UUID) (*clinic.Doctor, error) {
	defer s.lock()()
	d, ok := s.st.doctors[id]
	if !ok {
		return nil, clinic.ErrDoctorNotFound
	}
	return &d, nil
}

func (s *Store) ListDoctors(_ context.Context) ([]clinic.Doctor, error) {
	defer s.lock()()
	out := slices.Collect(maps.Values(s.st.doctors))
	slices.SortFunc(out, func(a, b clinic.Doctor) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out, nil
}

func (s *Store) CreateDoctor(_ context.Context, d clinic.Doctor) (*clinic.Doctor, error) {
	defer s.lock()()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	s.st.doctors[d.ID] = d
	return &d, nil
}

func (s *Store) GetPatient(_ context.Context, id uuid.UUID) (*clinic.Patient, error) {
	defer s.lock()()
	p, ok := s.st.patients[id]
	if !ok {
		return nil, clinic.ErrPatientNotFound
	}
	return &p, nil
}

func (s *Store) CreatePatient(_ context.Context, p clinic.Patient) (*clinic.Patient, error) {
	defer s.lock()()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.st.patients[p.ID] = p
	return &p, nil
}

func (s *Store) ListSchedule(_ context.Context, doctorID uuid.UUID) ([]clinic.WeeklyScheduleEntry, error) {
	defer s.lock()()
	var out []clinic.WeeklyScheduleEntry
	for _, e := range s.st.schedules {
		if e.DoctorID == doctorID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) UpsertSchedule(_ context.Context, e clinic.WeeklyScheduleEntry) error {
	defer s.lock()()
	for id, cur := range s.st.schedules {
		if cur.DoctorID == e.DoctorID && cur.DayOfWeek == e.DayOfWeek {
			e.ID = id
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.st.schedules[e.ID] = e
	return nil
}

func (s *Store) ListBreaks(_ context.Context, doctorID uuid.UUID) ([]clinic.BreakEntry, error) {
	defer s.lock()()
	var out []clinic.BreakEntry
	for _, b := range s.st.breaks {
		if b.DoctorID == doctorID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) CreateBreak(_ context.Context, b clinic.BreakEntry) error {
	defer s.lock()()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.st.breaks[b.ID] = b
	return nil
}

func (s *Store) hydrateAppointment(a clinic.Appointment) clinic.Appointment {
	a.PatientName = s.st.patients[a.PatientID].Name
	return a
}

func (s *Store) GetAppointment(_ context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	defer s.lock()()
	a, ok := s.st.appointments[id]
	if !ok {
		return nil, clinic.ErrAppointmentNotFound
	}
	a = s.hydrateAppointment(a)
	return &a, nil
}

func (s *Store) sortedAppointments(keep func(clinic.Appointment) bool) []clinic.Appointment {
	var out []clinic.Appointment
	for _, a := range s.st.appointments {
		if keep(a) {
			out = append(out, s.hydrateAppointment(a))
		}
	}
	slices.SortFunc(out, func(a, b clinic.Appointment) int { return a.ScheduledAt.Compare(b.ScheduledAt) })
	return out
}

func (s *Store) ListAppointments(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]clinic.Appointment, error) {
	defer s.lock()()
	return s.sortedAppointments(func(a clinic.Appointment) bool {
		return a.DoctorID == doctorID && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) && a.Status.OccupiesSlot()
	}), nil
}

func (s *Store) ListNoShowCandidates(_ context.Context, cutoff time.Time) ([]clinic.Appointment, error) {
	defer s.lock()()
	admitted := make(map[uuid.UUID]bool)
	for _, e := range s.st.queue {
		if e.AppointmentID != nil {
			admitted[*e.AppointmentID] = true
		}
	}
	return s.sortedAppointments(func(a clinic.Appointment) bool {
		switch a.Status {
		case clinic.AppointmentBooked, clinic.AppointmentScheduled, clinic.AppointmentRescheduled:
		default:
			return false
		}
		return a.EndsAt().Before(cutoff) && !admitted[a.ID]
	}), nil
}

func (s *Store) InsertAppointment(ctx context.Context, a clinic.Appointment) (*clinic.Appointment, error) {
	s.st.mu.Lock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	for _, cur := range s.st.appointments {
		if cur.Number == a.Number {
			s.st.mu.Unlock()
			return nil, fmt.Errorf("insert appointment: duplicate number %s", a.Number)
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.UpdatedAt = a.CreatedAt
	s.st.appointments[a.ID] = a
	s.st.mu.Unlock()
	return s.GetAppointment(ctx, a.ID)
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to clinic.AppointmentStatus) (*clinic.Appointment, error) {
	s.st.mu.Lock()
	a, ok := s.st.appointments[id]
	if !ok || a.Status != from {
		s.st.mu.Unlock()
		return nil, fmt.Errorf("%w: appointment %s is no longer %s", clinic.ErrInvalidTransition, id, from)
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	s.st.appointments[id] = a
	s.st.mu.Unlock()
	return s.GetAppointment(ctx, id)
}

func (s *Store) RescheduleAppointment(ctx context.Context, id uuid.UUID, from clinic.AppointmentStatus, at time.Time) (*clinic.Appointment, error) {
	s.st.mu.Lock()
	a, ok := s.st.appointments[id]
	if !ok || a.Status != from {
		s.st.mu.Unlock()
		return nil, fmt.Errorf("%w: appointment %s is no longer %s", clinic.ErrInvalidTransition, id, from)
	}
	a.ScheduledAt = at
	a.Status = clinic.AppointmentRescheduled
	a.UpdatedAt = time.Now()
	s.st.appointments[id] = a
	s.st.mu.Unlock()
	return s.GetAppointment(ctx, id)
}

func (s *Store) hydrateEntry(e clinic.QueueEntry) clinic.QueueEntry {
	e.PatientName = s.st.patients[e.PatientID].Name
	e.AppointmentAt = nil
	if e.AppointmentID != nil {
		if a, ok := s.st.appointments[*e.AppointmentID]; ok {
			at := a.ScheduledAt
			e.AppointmentAt = &at
		}
	}
	return e
}

func (s *Store) entries(keep func(clinic.QueueEntry) bool) []clinic.QueueEntry {
	var out []clinic.QueueEntry
	for _, e := range s.st.queue {
		if keep(e) {
			out = append(out, s.hydrateEntry(e))
		}
	}
	slices.SortFunc(out, func(a, b clinic.QueueEntry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (s *Store) GetQueueEntry(_ context.Context, id uuid.UUID) (*clinic.QueueEntry, error) {
	defer s.lock()()
	e, ok := s.st.queue[id]
	if !ok {
		return nil, clinic.ErrQueueEntryNotFound
	}
	e = s.hydrateEntry(e)
	return &e, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (s *Store) ListQueueEntries(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]clinic.QueueEntry, error) {
	defer s.lock()()
	return s.entries(func(e clinic.QueueEntry) bool {
		return e.DoctorID == doctorID && inRange(e.CreatedAt, from, to)
	}), nil
}

func (s *Store) ListQueueEntriesForDay(_ context.Context, from, to time.Time) ([]clinic.QueueEntry, error) {
	defer s.lock()()
	return s.entries(func(e clinic.QueueEntry) bool { return inRange(e.CreatedAt, from, to) }), nil
}

func (s *Store) ListStaleActiveEntries(_ context.Context, cutoff time.Time) ([]clinic.QueueEntry, error) {
	defer s.lock()()
	return s.entries(func(e clinic.QueueEntry) bool {
		return e.Status.Active() && e.CreatedAt.Before(cutoff)
	}), nil
}

func (s *Store) CountActiveQueue(_ context.Context, doctorID uuid.UUID, from, to time.Time) (int, error) {
	defer s.lock()()
	n := 0
	for _, e := range s.st.queue {
		if e.DoctorID == doctorID && e.Status.Active() && inRange(e.CreatedAt, from, to) {
			n++
		}
	}
	return n, nil
}

// checkUnique mirrors the partial unique indexes on queue_entries.
func (s *Store) checkUnique(e clinic.QueueEntry) error {
	for id, cur := range s.st.queue {
		if id == e.ID || cur.DoctorID != e.DoctorID {
			continue
		}
		if e.Status.Active() && cur.Status.Active() && cur.PatientID == e.PatientID {
			return fmt.Errorf("%w: patient already has an active entry for this doctor", clinic.ErrDuplicateActive)
		}
		if e.Status == clinic.QueueWithDoctor && cur.Status == clinic.QueueWithDoctor {
			return clinic.ErrDoctorBusy
		}
	}
	return nil
}

func (s *Store) InsertQueueEntry(ctx context.Context, e clinic.QueueEntry) (*clinic.QueueEntry, error) {
	s.st.mu.Lock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if err := s.checkUnique(e); err != nil {
		s.st.mu.Unlock()
		return nil, fmt.Errorf("insert queue entry: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.st.queue[e.ID] = e
	s.st.mu.Unlock()
	return s.GetQueueEntry(ctx, e.ID)
}

func (s *Store) UpdateQueueEntry(ctx context.Context, e clinic.QueueEntry, from clinic.QueueStatus) (*clinic.QueueEntry, error) {
	s.st.mu.Lock()
	cur, ok := s.st.queue[e.ID]
	if !ok || cur.Status != from {
		s.st.mu.Unlock()
		return nil, fmt.Errorf("%w: queue entry %s is no longer %s", clinic.ErrInvalidTransition, e.Number, from)
	}
	probe := cur
	probe.Status = e.Status
	if err := s.checkUnique(probe); err != nil {
		s.st.mu.Unlock()
		return nil, fmt.Errorf("update queue entry: %w", err)
	}
	cur.Status = e.Status
	cur.StartedAt = e.StartedAt
	cur.CompletedAt = e.CompletedAt
	cur.Notes = e.Notes
	s.st.queue[e.ID] = cur
	s.st.mu.Unlock()
	return s.GetQueueEntry(ctx, e.ID)
}

func (s *Store) DeleteQueueEntry(_ context.Context, id uuid.UUID) error {
	defer s.lock()()
	if _, ok := s.st.queue[id]; !ok {
		return clinic.ErrQueueEntryNotFound
	}
	delete(s.st.queue, id)
	return nil
}

func (s *Store) NextSequence(_ context.Context, scope string, doctorID uuid.UUID, day time.Time) (int, error) {
	defer s.lock()()
	key := scope + "|" + doctorID.String() + "|" + day.Format(time.DateOnly)
	s.st.counters[key]++
	return s.st.counters[key], nil
}

func (s *Store) InsertEvent(_ context.Context, ev clinic.EventLog) error {
	defer s.lock()()
	ev.ID = int64(len(s.st.events) + 1)
	s.st.events = append(s.st.events, ev)
	return nil
}

// Events returns a copy of every logged event in insertion order.
func (s *Store) Events() []clinic.EventLog {
	defer s.lock()()
	return slices.Clone(s.st.events)
}
