package redisclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/clinic"
)

// LocalLocker is an in-process Locker for single-instance runs and tests.
type LocalLocker struct {
	wait time.Duration

	mu    sync.Mutex
	locks map[uuid.UUID]chan struct{}
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{wait: wait, locks: make(map[uuid.UUID]chan struct{})}
}

func (l *LocalLocker) slot(doctorID uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[doctorID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[doctorID] = ch
	}
	return ch
}

func (l *LocalLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	ch := l.slot(doctorID)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
	case <-timer.C:
		return clinic.ErrConcurrentOperation
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-ch }()

	return fn(ctx)
}
