package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/televita-health/scheduling/internal/config"
	"github.com/televita-health/scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL       string
	Duration         time.Duration
	Workers          int
	CalendarRatio    float64
	AvailRatio       float64
	RescheduleRatio  float64
	ProviderLimit    int
	AppointmentLimit int
	PostgresDSN      string
}

type bookedAppointment struct {
	ID         int64
	ProviderID uuid.UUID
	StartTime  time.Time
}

type DataPool struct {
	Providers    []uuid.UUID
	Timezones    map[uuid.UUID]string
	Appointments []bookedAppointment
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, rejected bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if rejected {
		atomic.AddInt64(&om.Rejected, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Calendar     OperationMetrics
	Availability OperationMetrics
	Reschedule   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d calendar=%.2f availability=%.2f reschedule=%.2f",
		cfg.Duration, cfg.Workers, cfg.CalendarRatio, cfg.AvailRatio, cfg.RescheduleRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d providers, %d booked appointments",
		len(dataPool.Providers), len(dataPool.Appointments))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:       getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:         getDuration("SIM_DURATION", 30*time.Second),
		Workers:          getInt("SIM_WORKERS", 10),
		CalendarRatio:    getFloat("SIM_CALENDAR_RATIO", 0.5),
		AvailRatio:       getFloat("SIM_AVAILABILITY_RATIO", 0.35),
		RescheduleRatio:  getFloat("SIM_RESCHEDULE_RATIO", 0.15),
		ProviderLimit:    getInt("SIM_PROVIDER_LIMIT", 100),
		AppointmentLimit: getInt("SIM_APPOINTMENT_LIMIT", 2000),
		PostgresDSN:      baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.CalendarRatio + cfg.AvailRatio + cfg.RescheduleRatio
	if total > 0 {
		cfg.CalendarRatio /= total
		cfg.AvailRatio /= total
		cfg.RescheduleRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{Timezones: make(map[uuid.UUID]string)}

	rows, err := pool.Query(ctx, `
		SELECT id, timezone FROM providers WHERE active LIMIT $1
	`, cfg.ProviderLimit)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var tz string
		if err := rows.Scan(&id, &tz); err != nil {
			return nil, err
		}
		dataPool.Providers = append(dataPool.Providers, id)
		dataPool.Timezones[id] = tz
	}

	rows, err = pool.Query(ctx, `
		SELECT id, provider_id, start_time FROM appointments
		WHERE status IN ('f', '1', '2') AND start_time > now()
		LIMIT $1
	`, cfg.AppointmentLimit)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a bookedAppointment
		if err := rows.Scan(&a.ID, &a.ProviderID, &a.StartTime); err != nil {
			return nil, err
		}
		dataPool.Appointments = append(dataPool.Appointments, a)
	}

	if len(dataPool.Providers) == 0 {
		return nil, fmt.Errorf("no providers loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.CalendarRatio {
				s.doCalendar(ctx, rng)
			} else if r < s.config.CalendarRatio+s.config.AvailRatio {
				s.doAvailability(ctx, rng)
			} else {
				s.doReschedule(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doCalendar(ctx context.Context, rng *rand.Rand) {
	providerID := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	day := time.Now().AddDate(0, 0, rng.Intn(30)).Format("2006-01-02")

	start := time.Now()

	url := fmt.Sprintf("%s/providers/%s/calendar?date=%s&tz=%s",
		s.config.APIBaseURL, providerID, day, s.pool.Timezones[providerID])
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Calendar.Record(latency, success, false)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	providerID := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	from := time.Now().AddDate(0, 0, rng.Intn(30))
	to := from.AddDate(0, 0, 6)

	start := time.Now()

	url := fmt.Sprintf("%s/providers/%s/availability?from=%s&to=%s&tz=%s",
		s.config.APIBaseURL, providerID,
		from.Format("2006-01-02"), to.Format("2006-01-02"), s.pool.Timezones[providerID])
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Availability.Record(latency, success, false)
}

// doReschedule aims a booked appointment at a nearby half-hour boundary.
// Many attempts are expected to be rejected (window, slot taken, in
// flight); that is part of what is being measured.
func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	if len(s.pool.Appointments) == 0 {
		return
	}
	appt := s.pool.Appointments[rng.Intn(len(s.pool.Appointments))]

	dayShift := rng.Intn(13) - 6
	hour := 7 + rng.Intn(12)
	minute := 30 * rng.Intn(2)
	target := appt.StartTime.AddDate(0, 0, dayShift)
	target = time.Date(target.Year(), target.Month(), target.Day(), hour, minute, 0, 0, target.Location())

	reqBody := map[string]string{
		"new_start":     target.Format(time.RFC3339),
		"timezone":      s.pool.Timezones[appt.ProviderID],
		"cancel_reason": "simulated reschedule",
	}
	body, _ := json.Marshal(reqBody)

	start := time.Now()

	url := fmt.Sprintf("%s/appointments/%d/reschedule", s.config.APIBaseURL, appt.ID)
	req, _ := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	rejected := false
	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			success = true
		case http.StatusConflict, http.StatusUnprocessableEntity:
			rejected = true
		}
	}

	s.metrics.Reschedule.Record(latency, success, rejected)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Calendar", &s.metrics.Calendar)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	rejected := atomic.LoadInt64(&om.Rejected)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

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
