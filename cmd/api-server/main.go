package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/api"
	"github.com/hackgods/clinic-queue/internal/appointment"
	"github.com/hackgods/clinic-queue/internal/availability"
	"github.com/hackgods/clinic-queue/internal/config"
	"github.com/hackgods/clinic-queue/internal/db"
	"github.com/hackgods/clinic-queue/internal/logger"
	"github.com/hackgods/clinic-queue/internal/queue"
	redisclient "github.com/hackgods/clinic-queue/internal/redis"
	"github.com/hackgods/clinic-queue/internal/store"
)

var version = "dev"

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

	if err := run(cfg, log); err != nil {
		log.Fatal("api-server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	log.Info("api-server starting up",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("timezone", cfg.Location.String()),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancelPg()
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PoolOptions("api-server"))
	if err != nil {
		return fmt.Errorf("postgres connection: %w", err)
	}
	defer pgPool.Close()
	if err := db.Migrate(pgCtx, pgPool); err != nil {
		return fmt.Errorf("postgres migration: %w", err)
	}
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisOptions())
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL, cfg.LockWait, log.Named("lock"))
	cache := availability.NewRedisSnapshotCache(rdb, cfg.CacheTTL)
	policy := cfg.AvailabilityPolicy()

	availabilitySvc := availability.NewService(store.New(pgPool), cache, policy, log.Named("availability"))
	queueSvc := queue.NewService(queue.NewPgRepository(pgPool), locker, cache, policy, log.Named("queue"))
	appointmentSvc := appointment.NewService(appointment.NewPgRepository(pgPool), locker, cache, policy, cfg.NoShowGrace, log.Named("appointment"))

	health := api.NewHealthHandler(
		pgPool.Ping,
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		cfg.Env, version,
	)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Availability: availabilitySvc,
			Queue:        queueSvc,
			Appointments: appointmentSvc,
			Health:       health,
			Logger:       log.Named("http"),
			RateLimit:    cfg.RateLimit,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-rootCtx.Done():
	}

	log.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("api-server stopped cleanly")
	return nil
}
