package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/clinic"
	"github.com/hackgods/clinic-queue/internal/config"
	"github.com/hackgods/clinic-queue/internal/db"
	"github.com/hackgods/clinic-queue/internal/logger"
	"github.com/hackgods/clinic-queue/internal/store"
)

func main() {
	doctors := flag.Int("doctors", 8, "number of doctors to create")
	patients := flag.Int("patients", 500, "number of patients to create")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PoolOptions("seed"))
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	s := &seeder{dir: store.New(pool), faker: gofakeit.New(*seed), log: log}
	if _, err := s.seedDoctors(ctx, *doctors); err != nil {
		log.Fatal("seed doctors", zap.Error(err))
	}
	if _, err := s.seedPatients(ctx, *patients); err != nil {
		log.Fatal("seed patients", zap.Error(err))
	}

	log.Info("seed complete")
}

type directory interface {
	CreateDoctor(ctx context.Context, d clinic.Doctor) (*clinic.Doctor, error)
	CreatePatient(ctx context.Context, p clinic.Patient) (*clinic.Patient, error)
	UpsertSchedule(ctx context.Context, e clinic.WeeklyScheduleEntry) error
	CreateBreak(ctx context.Context, b clinic.BreakEntry) error
}

type seeder struct {
	dir   directory
	faker *gofakeit.Faker
	log   *zap.Logger
}

var specializations = []string{
	"General Medicine",
	"Pediatrics",
	"Dermatology",
	"Cardiology",
	"Orthopedics",
	"ENT",
	"Gynecology",
	"Ophthalmology",
}

var workweek = []clinic.DayOfWeek{
	clinic.Monday, clinic.Tuesday, clinic.Wednesday, clinic.Thursday, clinic.Friday, clinic.Saturday,
}

// seedDoctors creates doctors working 09:00-17:00 Monday to Saturday with a
// 13:00-14:00 lunch and a short morning break. Every other doctor has
// Saturday off and a 20 minute consultation length.
func (s *seeder) seedDoctors(ctx context.Context, count int) ([]uuid.UUID, error) {
	s.log.Info("seeding doctors", zap.Int("count", count))

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		specialty := specializations[s.faker.Number(0, len(specializations)-1)]
		d := clinic.Doctor{
			Name:           "Dr. " + s.faker.Name(),
			Specialization: &specialty,
		}
		shortSlots := i%2 == 1
		if shortSlots {
			minutes := 20
			d.ConsultationDuration = &minutes
		}

		created, err := s.dir.CreateDoctor(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("create doctor: %w", err)
		}

		for _, day := range workweek {
			working := !(shortSlots && day == clinic.Saturday)
			if err := s.dir.UpsertSchedule(ctx, clinic.WeeklyScheduleEntry{
				DoctorID:  created.ID,
				DayOfWeek: day,
				StartTime: clinic.ClockFromMinutes(9 * 60),
				EndTime:   clinic.ClockFromMinutes(17 * 60),
				IsWorking: working,
			}); err != nil {
				return nil, fmt.Errorf("schedule %s: %w", day, err)
			}
			if !working {
				continue
			}

			breaks := []clinic.BreakEntry{
				{StartTime: clinic.ClockFromMinutes(13 * 60), EndTime: clinic.ClockFromMinutes(14 * 60), Kind: clinic.BreakLunch},
				{StartTime: clinic.ClockFromMinutes(11 * 60), EndTime: clinic.ClockFromMinutes(11*60 + 15), Kind: clinic.BreakShort},
			}
			for _, b := range breaks {
				b.DoctorID = created.ID
				b.DayOfWeek = day
				if err := s.dir.CreateBreak(ctx, b); err != nil {
					return nil, fmt.Errorf("break %s %s: %w", day, b.Kind, err)
				}
			}
		}

		s.log.Debug("doctor seeded", zap.String("doctor_id", created.ID.String()), zap.String("name", created.Name))
		ids = append(ids, created.ID)
	}
	return ids, nil
}

func (s *seeder) seedPatients(ctx context.Context, count int) ([]uuid.UUID, error) {
	s.log.Info("seeding patients", zap.Int("count", count))

	const progressEvery = 100

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		phone := s.faker.Phone()
		p, err := s.dir.CreatePatient(ctx, clinic.Patient{Name: s.faker.Name(), Phone: &phone})
		if err != nil {
			return nil, fmt.Errorf("create patient: %w", err)
		}
		ids = append(ids, p.ID)

		if (i+1)%progressEvery == 0 {
			s.log.Info("patients seeded", zap.Int("done", i+1), zap.Int("total", count))
		}
	}
	return ids, nil
}
