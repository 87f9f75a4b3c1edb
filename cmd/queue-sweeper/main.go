package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/appointment"
	"github.com/hackgods/clinic-queue/internal/availability"
	"github.com/hackgods/clinic-queue/internal/config"
	"github.com/hackgods/clinic-queue/internal/db"
	"github.com/hackgods/clinic-queue/internal/logger"
	"github.com/hackgods/clinic-queue/internal/queue"
	redisclient "github.com/hackgods/clinic-queue/internal/redis"
)

func main() {
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

	log.Info("queue-sweeper starting up", zap.Duration("interval", cfg.WorkerInterval))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PoolOptions("queue-sweeper"))
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisOptions())
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL, cfg.LockWait, log.Named("lock"))
	cache := availability.NewRedisSnapshotCache(rdb, cfg.CacheTTL)

	policy := cfg.AvailabilityPolicy()

	w := &sweeper{
		queue:        queue.NewService(queue.NewPgRepository(pgPool), locker, cache, policy, log.Named("queue")),
		appointments: appointment.NewService(appointment.NewPgRepository(pgPool), locker, cache, policy, cfg.NoShowGrace, log.Named("appointment")),
		log:          log,
	}

	// Run once at startup
	w.runOnce(rootCtx)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping queue-sweeper")
			return
		case <-ticker.C:
			w.runOnce(rootCtx)
		}
	}
}

type sweeper struct {
	queue        *queue.Service
	appointments *appointment.Service
	log          *zap.Logger
}

func (w *sweeper) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()

	swept, err := w.queue.SweepStale(runCtx)
	if err != nil {
		w.log.Error("stale queue sweep failed", zap.Error(err))
	}

	noShows, err := w.appointments.MarkNoShows(runCtx)
	if err != nil {
		w.log.Error("no-show sweep failed", zap.Error(err))
	}

	w.log.Info("sweep run complete",
		zap.Int("stale_entries_cancelled", swept),
		zap.Int("appointments_no_show", noShows),
		zap.Duration("took", time.Since(start)),
	)
}
