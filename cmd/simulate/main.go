package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/config"
	"github.com/hackgods/clinic-queue/internal/db"
	"github.com/hackgods/clinic-queue/internal/logger"
	"github.com/hackgods/clinic-queue/internal/store"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	WalkInRatio   float64
	CallNextRatio float64
	ReadRatio     float64
	PatientLimit  int
}

// DataPool holds the ids the workers draw from. Entries currently with a
// doctor are tracked so workers can complete them.
type DataPool struct {
	Doctors  []uuid.UUID
	Patients []uuid.UUID

	mu         sync.Mutex
	withDoctor []uuid.UUID
}

func (dp *DataPool) AddWithDoctor(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.withDoctor = append(dp.withDoctor, id)
}

func (dp *DataPool) TakeWithDoctor(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.withDoctor) == 0 {
		return uuid.Nil, false
	}
	idx := rng.Intn(len(dp.withDoctor))
	id := dp.withDoctor[idx]
	dp.withDoctor = slices.Delete(dp.withDoctor, idx, idx+1)
	return id, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Empty     int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeEmpty
	outcomeError
)

func outcomeOf(status, ok int) outcome {
	switch status {
	case ok:
		return outcomeSuccess
	case http.StatusConflict:
		return outcomeConflict
	case http.StatusNotFound:
		return outcomeEmpty
	}
	return outcomeError
}

func (om *OperationMetrics) Record(latency time.Duration, o outcome) {
	atomic.AddInt64(&om.Total, 1)
	switch o {
	case outcomeSuccess:
		atomic.AddInt64(&om.Success, 1)
	case outcomeConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case outcomeEmpty:
		atomic.AddInt64(&om.Empty, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	pick := func(pct int) time.Duration {
		return latencies[min(len(latencies)*pct/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pick(50), pick(95)
}

type Metrics struct {
	WalkIn       OperationMetrics
	CallNext     OperationMetrics
	Complete     OperationMetrics
	Availability OperationMetrics
	Board        OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     *zap.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid simulator config", zap.Error(err))
	}

	log.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("walk_in_ratio", cfg.WalkInRatio),
		zap.Float64("call_next_ratio", cfg.CallNextRatio),
		zap.Float64("read_ratio", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN, baseCfg.PoolOptions("simulate"))
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, store.New(pgPool), cfg)
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}
	log.Info("data pool loaded", zap.Int("doctors", len(dataPool.Doctors)), zap.Int("patients", len(dataPool.Patients)))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		WalkInRatio:   getFloat("SIM_WALK_IN_RATIO", 0.4),
		CallNextRatio: getFloat("SIM_CALL_NEXT_RATIO", 0.3),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit:  getInt("SIM_PATIENT_LIMIT", 2000),
	}

	total := cfg.WalkInRatio + cfg.CallNextRatio + cfg.ReadRatio
	if total > 0 {
		cfg.WalkInRatio /= total
		cfg.CallNextRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, st *store.Store, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	doctors, err := st.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for _, d := range doctors {
		dataPool.Doctors = append(dataPool.Doctors, d.ID)
	}

	patients, err := st.ListPatientIDs(ctx, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dataPool.Patients = patients

	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run the seed command first")
	}
	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run the seed command first")
	}
	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.WalkInRatio:
			s.doWalkIn(ctx, rng)
		case r < s.config.WalkInRatio+s.config.CallNextRatio:
			if rng.Intn(2) == 0 {
				s.doCallNext(ctx, rng)
			} else {
				s.doComplete(ctx, rng)
			}
		default:
			if rng.Intn(4) == 0 {
				s.doBoard(ctx)
			} else {
				s.doAvailability(ctx, rng)
			}
		}
	}
}

// call issues one request and returns the status code, or 0 on a transport error.
func (s *Simulator) call(ctx context.Context, method, path string, body any, out any) int {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func (s *Simulator) doWalkIn(ctx context.Context, rng *rand.Rand) {
	priority := "NORMAL"
	if rng.Intn(10) == 0 {
		priority = "URGENT"
	}
	body := map[string]string{
		"doctorId":  s.pool.Doctors[rng.Intn(len(s.pool.Doctors))].String(),
		"patientId": s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"priority":  priority,
	}

	start := time.Now()
	status := s.call(ctx, http.MethodPost, "/queue/walk-in", body, nil)
	s.metrics.WalkIn.Record(time.Since(start), outcomeOf(status, http.StatusCreated))
}

func (s *Simulator) doCallNext(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	var entry struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	status := s.call(ctx, http.MethodPost, "/doctors/"+doctorID.String()+"/queue/next", nil, &entry)
	s.metrics.CallNext.Record(time.Since(start), outcomeOf(status, http.StatusOK))

	if status == http.StatusOK && entry.ID != uuid.Nil {
		s.pool.AddWithDoctor(entry.ID)
	}
}

func (s *Simulator) doComplete(ctx context.Context, rng *rand.Rand) {
	entryID, ok := s.pool.TakeWithDoctor(rng)
	if !ok {
		return
	}

	start := time.Now()
	status := s.call(ctx, http.MethodPatch, "/queue/"+entryID.String()+"/status", map[string]string{"status": "COMPLETED"}, nil)
	s.metrics.Complete.Record(time.Since(start), outcomeOf(status, http.StatusOK))
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	start := time.Now()
	status := s.call(ctx, http.MethodGet, "/doctors/"+doctorID.String()+"/availability", nil, nil)
	s.metrics.Availability.Record(time.Since(start), outcomeOf(status, http.StatusOK))
}

func (s *Simulator) doBoard(ctx context.Context) {
	start := time.Now()
	status := s.call(ctx, http.MethodGet, "/queue", nil, nil)
	s.metrics.Board.Record(time.Since(start), outcomeOf(status, http.StatusOK))
}

func (s *Simulator) PrintReport() {
	rule := strings.Repeat("=", 80)
	fmt.Println("\n" + rule)
	fmt.Println("SIMULATION REPORT")
	fmt.Println(rule)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Walk-in admission", &s.metrics.WalkIn)
	printOperationReport("Call next", &s.metrics.CallNext)
	printOperationReport("Complete consultation", &s.metrics.Complete)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Queue board", &s.metrics.Board)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	success := atomic.LoadInt64(&om.Success)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if n := atomic.LoadInt64(&om.Conflict); n > 0 {
		fmt.Printf("  Conflicts (duplicate, busy): %d (%.1f%%)\n", n, pct(n))
	}
	if n := atomic.LoadInt64(&om.Empty); n > 0 {
		fmt.Printf("  Empty queue / not found: %d (%.1f%%)\n", n, pct(n))
	}
	if n := atomic.LoadInt64(&om.Error); n > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", n, pct(n))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
