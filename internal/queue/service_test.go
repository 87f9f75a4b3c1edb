package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/availability"
	"github.com/hackgods/clinic-queue/internal/clinic"
	redisclient "github.com/hackgods/clinic-queue/internal/redis"
	"github.com/hackgods/clinic-queue/internal/store/memstore"
)

type memRepo struct {
	*memstore.Store
}

func (r memRepo) WithinTx(ctx context.Context, fn func(Repository) error) error {
	return r.Store.WithinTx(ctx, func(tx *memstore.Store) error {
		return fn(memRepo{tx})
	})
}

// staleReads hides existing entries from the service so only the storage
// backstop can catch conflicts.
type staleReads struct {
	memRepo
}

func (r staleReads) ListQueueEntries(context.Context, uuid.UUID, time.Time, time.Time) ([]clinic.QueueEntry, error) {
	return nil, nil
}

func (r staleReads) WithinTx(ctx context.Context, fn func(Repository) error) error {
	return r.memRepo.WithinTx(ctx, func(tx Repository) error {
		return fn(staleReads{tx.(memRepo)})
	})
}

type noLock struct{}

func (noLock) WithDoctorLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type spyCache struct {
	availability.SnapshotCache
	mu          sync.Mutex
	invalidated []string
}

func (c *spyCache) Invalidate(_ context.Context, doctorID uuid.UUID, day time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, doctorID.String()+"/"+day.Format(time.DateOnly))
	return nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store   *memstore.Store
	clock   *testClock
	cache   *spyCache
	svc     *Service
	doctor  clinic.Doctor
	other   clinic.Doctor
	patient []clinic.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := gofakeit.New(7)

	st := memstore.New()
	doctor, err := st.CreateDoctor(ctx, clinic.Doctor{Name: "Dr. Anand"})
	require.NoError(t, err)
	other, err := st.CreateDoctor(ctx, clinic.Doctor{Name: "Dr. Bose"})
	require.NoError(t, err)

	fx := &fixture{
		store:  st,
		clock:  &testClock{t: hm(10, 0)},
		cache:  &spyCache{SnapshotCache: availability.NopCache},
		doctor: *doctor,
		other:  *other,
	}
	for i := 0; i < 4; i++ {
		p, err := st.CreatePatient(ctx, clinic.Patient{Name: f.Name()})
		require.NoError(t, err)
		fx.patient = append(fx.patient, *p)
	}

	fx.svc = NewService(memRepo{st}, redisclient.NewLocalLocker(time.Second), fx.cache,
		availability.DefaultPolicy(day.Location()), zap.NewNop(), WithClock(fx.clock.now))
	return fx
}

func (fx *fixture) book(t *testing.T, patient clinic.Patient, at time.Time) clinic.Appointment {
	t.Helper()
	a, err := fx.store.InsertAppointment(context.Background(), clinic.Appointment{
		Number:          clinic.FormatAppointmentNumber(at, int(at.Sub(day).Minutes())),
		DoctorID:        fx.doctor.ID,
		PatientID:       patient.ID,
		ScheduledAt:     at,
		DurationMinutes: 30,
		Status:          clinic.AppointmentBooked,
	})
	require.NoError(t, err)
	return *a
}

func (fx *fixture) walkIn(t *testing.T, patient clinic.Patient, priority clinic.Priority) *clinic.QueueEntry {
	t.Helper()
	e, err := fx.svc.AdmitWalkIn(context.Background(), WalkInRequest{
		DoctorID:  fx.doctor.ID,
		PatientID: patient.ID,
		Priority:  priority,
	})
	require.NoError(t, err)
	fx.clock.advance(time.Minute)
	return e
}

func TestService_AdmitWalkIn(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first := fx.walkIn(t, fx.patient[0], "")
	second := fx.walkIn(t, fx.patient[1], clinic.PriorityUrgent)

	assert.Equal(t, "Q-20251006-001", first.Number)
	assert.Equal(t, "Q-20251006-002", second.Number)
	assert.Equal(t, clinic.PriorityNormal, first.Priority)
	assert.Equal(t, fx.patient[0].Name, first.PatientName)
	assert.Equal(t, clinic.QueueWaiting, first.Status)

	t.Run("duplicate active", func(t *testing.T) {
		_, err := fx.svc.AdmitWalkIn(ctx, WalkInRequest{DoctorID: fx.doctor.ID, PatientID: fx.patient[0].ID})
		assert.ErrorIs(t, err, clinic.ErrDuplicateActive)
		assert.Equal(t, clinic.KindDuplicateActive, clinic.KindOf(err))
	})

	t.Run("same patient with another doctor", func(t *testing.T) {
		e, err := fx.svc.AdmitWalkIn(ctx, WalkInRequest{DoctorID: fx.other.ID, PatientID: fx.patient[0].ID})
		require.NoError(t, err)
		assert.Equal(t, "Q-20251006-001", e.Number)
	})

	t.Run("unknown doctor and patient", func(t *testing.T) {
		_, err := fx.svc.AdmitWalkIn(ctx, WalkInRequest{DoctorID: uuid.New(), PatientID: fx.patient[2].ID})
		assert.ErrorIs(t, err, clinic.ErrDoctorNotFound)
		_, err = fx.svc.AdmitWalkIn(ctx, WalkInRequest{DoctorID: fx.doctor.ID, PatientID: uuid.New()})
		assert.ErrorIs(t, err, clinic.ErrPatientNotFound)
	})

	t.Run("failed admission consumes no number", func(t *testing.T) {
		_, err := fx.svc.AdmitWalkIn(ctx, WalkInRequest{DoctorID: fx.doctor.ID, PatientID: fx.patient[2].ID, Priority: "LOW"})
		assert.ErrorIs(t, err, clinic.ErrValidation)
		third := fx.walkIn(t, fx.patient[2], "")
		assert.Equal(t, "Q-20251006-003", third.Number)
	})

	var admitted int
	for _, ev := range fx.store.Events() {
		if ev.EventType == EventQueueAdmitted {
			admitted++
		}
	}
	assert.Equal(t, 4, admitted)
}

func TestService_ConcurrentWalkInsAdmitExactlyOne(t *testing.T) {
	fx := newFixture(t)
	patient := fx.patient[0]

	const callers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		dups    int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.AdmitWalkIn(context.Background(), WalkInRequest{DoctorID: fx.doctor.ID, PatientID: patient.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case clinic.KindOf(err) == clinic.KindDuplicateActive:
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, callers-1, dups)

	q, err := fx.svc.DoctorQueue(context.Background(), fx.doctor.ID, "", "")
	require.NoError(t, err)
	assert.Len(t, q.Entries, 1)
}

func TestService_StorageBackstop(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.walkIn(t, fx.patient[0], "")

	svc := NewService(staleReads{memRepo{fx.store}}, noLock{}, nil,
		availability.DefaultPolicy(day.Location()), zap.NewNop(), WithClock(fx.clock.now))

	_, err := svc.AdmitWalkIn(ctx, WalkInRequest{DoctorID: fx.doctor.ID, PatientID: fx.patient[0].ID})
	assert.ErrorIs(t, err, clinic.ErrDuplicateActive)

	_, err = fx.svc.CallNext(ctx, fx.doctor.ID)
	require.NoError(t, err)
	next := fx.walkIn(t, fx.patient[1], "")

	_, err = svc.UpdateStatus(ctx, next.ID, clinic.QueueWithDoctor)
	assert.ErrorIs(t, err, clinic.ErrDoctorBusy)

	stored, err := fx.store.GetQueueEntry(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, clinic.QueueWaiting, stored.Status)
}

func TestService_AdmitAppointment(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	appt := fx.book(t, fx.patient[0], hm(10, 30))

	e, err := fx.svc.AdmitAppointment(ctx, AppointmentAdmissionRequest{DoctorID: fx.doctor.ID, AppointmentID: appt.ID})
	require.NoError(t, err)
	assert.Equal(t, clinic.QueueAppointment, e.Type)
	assert.Equal(t, clinic.PriorityNormal, e.Priority)
	require.NotNil(t, e.AppointmentAt)
	assert.True(t, e.AppointmentAt.Equal(appt.ScheduledAt))

	stored, err := fx.store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, clinic.AppointmentInQueue, stored.Status)
	assert.Contains(t, fx.cache.invalidated, fx.doctor.ID.String()+"/2025-10-06")

	t.Run("twice", func(t *testing.T) {
		_, err := fx.svc.AdmitAppointment(ctx, AppointmentAdmissionRequest{DoctorID: fx.doctor.ID, AppointmentID: appt.ID})
		assert.ErrorIs(t, err, clinic.ErrDuplicateActive)
	})

	t.Run("doctor mismatch", func(t *testing.T) {
		other := fx.book(t, fx.patient[1], hm(11, 0))
		_, err := fx.svc.AdmitAppointment(ctx, AppointmentAdmissionRequest{DoctorID: fx.other.ID, AppointmentID: other.ID})
		assert.ErrorIs(t, err, clinic.ErrDoctorMismatch)
	})

	t.Run("cancelled appointment", func(t *testing.T) {
		gone := fx.book(t, fx.patient[2], hm(11, 30))
		_, err := fx.store.UpdateAppointmentStatus(ctx, gone.ID, clinic.AppointmentBooked, clinic.AppointmentCancelled)
		require.NoError(t, err)
		_, err = fx.svc.AdmitAppointment(ctx, AppointmentAdmissionRequest{DoctorID: fx.doctor.ID, AppointmentID: gone.ID})
		assert.ErrorIs(t, err, clinic.ErrAppointmentClosed)
	})

	t.Run("unknown appointment", func(t *testing.T) {
		_, err := fx.svc.AdmitAppointment(ctx, AppointmentAdmissionRequest{DoctorID: fx.doctor.ID, AppointmentID: uuid.New()})
		assert.ErrorIs(t, err, clinic.ErrAppointmentNotFound)
	})
}

func TestService_CallNext(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.CallNext(ctx, fx.doctor.ID)
	assert.ErrorIs(t, err, clinic.ErrEmptyQueue)

	fx.walkIn(t, fx.patient[0], clinic.PriorityNormal)
	urgent := fx.walkIn(t, fx.patient[1], clinic.PriorityUrgent)

	called, err := fx.svc.CallNext(ctx, fx.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, urgent.ID, called.ID)
	assert.Equal(t, clinic.QueueWithDoctor, called.Status)
	require.NotNil(t, called.StartedAt)

	_, err = fx.svc.CallNext(ctx, fx.doctor.ID)
	assert.ErrorIs(t, err, clinic.ErrDoctorBusy)
	assert.Equal(t, clinic.KindInvalidState, clinic.KindOf(err))

	_, err = fx.svc.CallNext(ctx, uuid.New())
	assert.ErrorIs(t, err, clinic.ErrDoctorNotFound)
}

func TestService_UpdateStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	appt := fx.book(t, fx.patient[0], hm(10, 0))

	linked, err := fx.svc.AdmitAppointment(ctx, AppointmentAdmissionRequest{DoctorID: fx.doctor.ID, AppointmentID: appt.ID})
	require.NoError(t, err)
	walk := fx.walkIn(t, fx.patient[1], "")

	t.Run("unknown status", func(t *testing.T) {
		_, err := fx.svc.UpdateStatus(ctx, linked.ID, "DONE")
		assert.ErrorIs(t, err, clinic.ErrValidation)
	})

	t.Run("skipping the consultation", func(t *testing.T) {
		_, err := fx.svc.UpdateStatus(ctx, linked.ID, clinic.QueueCompleted)
		assert.ErrorIs(t, err, clinic.ErrInvalidTransition)
	})

	got, err := fx.svc.UpdateStatus(ctx, linked.ID, clinic.QueueWithDoctor)
	require.NoError(t, err)
	assert.Equal(t, clinic.QueueWithDoctor, got.Status)

	t.Run("second patient while busy", func(t *testing.T) {
		_, err := fx.svc.UpdateStatus(ctx, walk.ID, clinic.QueueWithDoctor)
		assert.ErrorIs(t, err, clinic.ErrDoctorBusy)
	})

	fx.clock.advance(20 * time.Minute)
	got, err = fx.svc.UpdateStatus(ctx, linked.ID, clinic.QueueCompleted)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, fx.clock.now(), *got.CompletedAt)

	stored, err := fx.store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, clinic.AppointmentCompleted, stored.Status)

	t.Run("terminal is final", func(t *testing.T) {
		_, err := fx.svc.UpdateStatus(ctx, linked.ID, clinic.QueueCancelled)
		assert.ErrorIs(t, err, clinic.ErrInvalidTransition)
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := fx.svc.UpdateStatus(ctx, uuid.New(), clinic.QueueCancelled)
		assert.ErrorIs(t, err, clinic.ErrQueueEntryNotFound)
	})
}

func TestService_Remove(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	appt := fx.book(t, fx.patient[0], hm(10, 0))

	linked, err := fx.svc.AdmitAppointment(ctx, AppointmentAdmissionRequest{DoctorID: fx.doctor.ID, AppointmentID: appt.ID})
	require.NoError(t, err)

	require.NoError(t, fx.svc.Remove(ctx, linked.ID))
	stored, err := fx.store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, clinic.AppointmentBooked, stored.Status)

	assert.ErrorIs(t, fx.svc.Remove(ctx, linked.ID), clinic.ErrQueueEntryNotFound)

	walk := fx.walkIn(t, fx.patient[1], "")
	_, err = fx.svc.CallNext(ctx, fx.doctor.ID)
	require.NoError(t, err)
	_, err = fx.svc.UpdateStatus(ctx, walk.ID, clinic.QueueCompleted)
	require.NoError(t, err)

	err = fx.svc.Remove(ctx, walk.ID)
	assert.ErrorIs(t, err, clinic.ErrInvalidState)
}

func TestService_DoctorQueueAndBoard(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	a := fx.walkIn(t, fx.patient[0], "")
	b := fx.walkIn(t, fx.patient[1], clinic.PriorityUrgent)
	c := fx.walkIn(t, fx.patient[2], "")
	_, err := fx.svc.CallNext(ctx, fx.doctor.ID)
	require.NoError(t, err)

	q, err := fx.svc.DoctorQueue(ctx, fx.doctor.ID, "2025-10-06", "")
	require.NoError(t, err)
	assert.Equal(t, 3, q.WaitingCount)
	assert.Equal(t, []string{b.Number, a.Number, c.Number}, numbers(q.Entries))

	waiting, err := fx.svc.DoctorQueue(ctx, fx.doctor.ID, "", clinic.QueueWaiting)
	require.NoError(t, err)
	assert.Equal(t, 3, waiting.WaitingCount)
	assert.Equal(t, []string{a.Number, c.Number}, numbers(waiting.Entries))

	other, err := fx.svc.DoctorQueue(ctx, fx.doctor.ID, "2025-10-07", "")
	require.NoError(t, err)
	assert.Empty(t, other.Entries)

	_, err = fx.svc.DoctorQueue(ctx, fx.doctor.ID, "", "LATE")
	assert.ErrorIs(t, err, clinic.ErrValidation)

	board, err := fx.svc.Board(ctx, "")
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "Dr. Anand", board[0].Doctor.Name)
	assert.Equal(t, 3, board[0].WaitingCount)
	assert.Equal(t, "Dr. Bose", board[1].Doctor.Name)
	assert.Empty(t, board[1].Entries)
}

func TestService_SweepStale(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.walkIn(t, fx.patient[0], "")
	fx.walkIn(t, fx.patient[1], "")
	_, err := fx.svc.CallNext(ctx, fx.doctor.ID)
	require.NoError(t, err)

	fx.clock.advance(24 * time.Hour)
	today := fx.walkIn(t, fx.patient[2], "")

	n, err := fx.svc.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	yesterday, err := fx.svc.DoctorQueue(ctx, fx.doctor.ID, "2025-10-06", "")
	require.NoError(t, err)
	assert.Zero(t, yesterday.WaitingCount)
	for _, e := range yesterday.Entries {
		assert.Equal(t, clinic.QueueCancelled, e.Status)
		require.NotNil(t, e.Notes)
	}

	current, err := fx.store.GetQueueEntry(ctx, today.ID)
	require.NoError(t, err)
	assert.Equal(t, clinic.QueueWaiting, current.Status)

	n, err = fx.svc.SweepStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
