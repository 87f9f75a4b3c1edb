package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	repo   Repository
	cache  SnapshotCache
	policy Policy
	now    func() time.Time
	log    *zap.Logger
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, cache SnapshotCache, policy Policy, log *zap.Logger, opts ...Option) *Service {
	if cache == nil {
		cache = NopCache
	}
	s := &Service{
		repo:   repo,
		cache:  cache,
		policy: policy,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() Policy {
	return s.policy
}

// DoctorAvailability reports doctorID's slots for date (YYYY-MM-DD, empty
// means today in the clinic timezone).
func (s *Service) DoctorAvailability(ctx context.Context, doctorID uuid.UUID, date string) (*Report, error) {
	now := s.now()
	day, err := s.policy.ResolveDate(date, now)
	if err != nil {
		return nil, err
	}

	snap, err := s.snapshot(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}

	from, to := s.policy.DayBounds(day)
	waiting, err := s.repo.CountActiveQueue(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}

	return Compute(snap.Input(day, now, waiting), s.policy)
}

func (s *Service) snapshot(ctx context.Context, doctorID uuid.UUID, day time.Time) (*DaySnapshot, error) {
	gen, err := s.cache.Generation(ctx, doctorID, day)
	if err != nil {
		s.log.Warn("availability cache generation failed", zap.String("doctor_id", doctorID.String()), zap.Error(err))
		return LoadSnapshot(ctx, s.repo, doctorID, day, s.policy)
	}

	cached, err := s.cache.Get(ctx, doctorID, day, gen)
	if err != nil {
		s.log.Warn("availability cache read failed", zap.String("doctor_id", doctorID.String()), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	snap, err := LoadSnapshot(ctx, s.repo, doctorID, day, s.policy)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, doctorID, day, gen, snap); err != nil {
		s.log.Warn("availability cache write failed", zap.String("doctor_id", doctorID.String()), zap.Error(err))
	}
	return snap, nil
}
