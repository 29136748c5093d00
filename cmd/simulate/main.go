package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string        `env:"SIM_API_BASE_URL" envDefault:"http://localhost:8080"`
	Duration     time.Duration `env:"SIM_DURATION" envDefault:"30s"`
	Workers      int           `env:"SIM_WORKERS" envDefault:"10"`
	BookingRatio float64       `env:"SIM_BOOKING_RATIO" envDefault:"0.5"`
	PayRatio     float64       `env:"SIM_PAY_RATIO" envDefault:"0.2"`
	RefundRatio  float64       `env:"SIM_REFUND_RATIO" envDefault:"0.05"`
	ReadRatio    float64       `env:"SIM_READ_RATIO" envDefault:"0.25"`
	PairLimit    int           `env:"SIM_PAIR_LIMIT" envDefault:"4000"`
	DaysAhead    int           `env:"SIM_DAYS_AHEAD" envDefault:"14"`
}

// pair is a client with a provider they are allowed to book.
type pair struct {
	ClientID   uuid.UUID
	ProviderID uuid.UUID
}

type DataPool struct {
	Pairs []pair

	mu           sync.RWMutex
	appointments []uuid.UUID
	paid         []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) AddPaid(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.paid = append(dp.paid, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return pick(rng, dp.appointments)
}

func (dp *DataPool) RandomPaid(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return pick(rng, dp.paid)
}

func pick(rng *rand.Rand, ids []uuid.UUID) (uuid.UUID, bool) {
	if len(ids) == 0 {
		return uuid.Nil, false
	}
	return ids[rng.Intn(len(ids))], true
}

// OperationMetrics counts outcomes per operation. Rejected covers expected
// business refusals (409, 422) such as a slot taken by a concurrent booking.
type OperationMetrics struct {
	Total     int64
	Success   int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && (status == http.StatusConflict || status == http.StatusUnprocessableEntity):
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

type Metrics struct {
	Availability OperationMetrics
	Booking      OperationMetrics
	Payment      OperationMetrics
	Refund       OperationMetrics
	Read         OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  *zap.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(baseCfg.Env, baseCfg.Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("simulate")

	var cfg SimConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal("invalid simulation config", zap.Error(err))
	}
	if err := validateConfig(&cfg); err != nil {
		logger.Fatal("invalid simulation config", zap.Error(err))
	}

	logger.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("pay", cfg.PayRatio),
		zap.Float64("refund", cfg.RefundRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN, logger)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal("load data pool", zap.Error(err))
	}
	logger.Info("data pool loaded", zap.Int("pairs", len(dataPool.Pairs)))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run(context.Background())
	sim.PrintReport()

	doubles, err := countDoubleBookings(context.Background(), pgPool)
	if err != nil {
		logger.Fatal("double booking check", zap.Error(err))
	}
	fmt.Printf("Double-booked slots: %d\n", doubles)
	if doubles > 0 {
		os.Exit(2)
	}
}

func validateConfig(cfg *SimConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return errors.New("SIM_DAYS_AHEAD must be > 0")
	}

	total := cfg.BookingRatio + cfg.PayRatio + cfg.RefundRatio + cfg.ReadRatio
	if total <= 0 {
		return errors.New("at least one operation ratio must be positive")
	}
	cfg.BookingRatio /= total
	cfg.PayRatio /= total
	cfg.RefundRatio /= total
	cfg.ReadRatio /= total
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	rows, err := pool.Query(ctx, `
		SELECT cp.client_id, cp.provider_id
		FROM client_providers cp
		JOIN schedule_configs sc ON sc.provider_id = cp.provider_id
		ORDER BY random()
		LIMIT $1
	`, cfg.PairLimit)
	if err != nil {
		return nil, fmt.Errorf("load client/provider pairs: %w", err)
	}

	pairs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[pair])
	if err != nil {
		return nil, fmt.Errorf("scan pairs: %w", err)
	}
	if len(pairs) == 0 {
		return nil, errors.New("no client/provider pairs with schedules, run the seed first")
	}
	return &DataPool{Pairs: pairs}, nil
}

// countDoubleBookings looks for two live appointments on one provider slot.
func countDoubleBookings(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT provider_id, slot_date, slot_time
			FROM appointments
			WHERE status <> 'cancelled'
			GROUP BY provider_id, slot_date, slot_time
			HAVING count(*) > 1
		) d
	`).Scan(&n)
	return n, err
}

func (s *Simulator) Run(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Workers; i++ {
		workerID := i
		g.Go(func() error {
			s.worker(gctx, workerID)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.PayRatio:
			s.doPayment(ctx, rng)
		case r < s.config.BookingRatio+s.config.PayRatio+s.config.RefundRatio:
			s.doRefund(ctx, rng)
		default:
			s.doRead(ctx, rng)
		}
	}
}

// doBooking reads availability for a random day and races for one of the
// offered slots. Workers often pick the same slot, which the API must reject.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Pairs[rng.Intn(len(s.pool.Pairs))]
	date := time.Now().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format("2006-01-02")

	var avail struct {
		Slots []struct {
			Time string `json:"time"`
		} `json:"slots"`
	}
	status, err := s.call(ctx, &s.metrics.Availability, http.MethodGet,
		fmt.Sprintf("/providers/%s/availability?date=%s", p.ProviderID, date), nil, &avail)
	if err != nil || status != http.StatusOK || len(avail.Slots) == 0 {
		return
	}

	// Bias toward the earliest slots to provoke contention.
	slot := avail.Slots[rng.Intn(min(3, len(avail.Slots)))]

	var appt struct {
		ID uuid.UUID `json:"id"`
	}
	status, err = s.call(ctx, &s.metrics.Booking, http.MethodPost, "/appointments", map[string]any{
		"clientId":   p.ClientID,
		"providerId": p.ProviderID,
		"date":       date,
		"time":       slot.Time,
		"type":       "video",
		"amount":     "80.00",
	}, &appt)
	if err == nil && status == http.StatusCreated && appt.ID != uuid.Nil {
		s.pool.AddAppointment(appt.ID)
	}
}

func (s *Simulator) doPayment(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	var intent struct {
		IntentID string `json:"intentId"`
	}
	status, err := s.call(ctx, &s.metrics.Payment, http.MethodPost, "/payments/intents",
		map[string]any{"appointmentId": apptID}, &intent)
	if err != nil || status != http.StatusCreated {
		return
	}

	status, err = s.call(ctx, &s.metrics.Payment, http.MethodPost, "/payments/confirm",
		map[string]any{"intentId": intent.IntentID, "appointmentId": apptID}, nil)
	if err == nil && status == http.StatusOK {
		s.pool.AddPaid(apptID)
	}
}

func (s *Simulator) doRefund(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomPaid(rng)
	if !ok {
		return
	}

	var req struct {
		ID uuid.UUID `json:"id"`
	}
	status, err := s.call(ctx, &s.metrics.Refund, http.MethodPost, "/refunds",
		map[string]any{"appointmentId": apptID, "reason": "simulated change of plans"}, &req)
	if err != nil || status != http.StatusCreated {
		return
	}

	_, _ = s.call(ctx, &s.metrics.Refund, http.MethodPost, fmt.Sprintf("/refunds/%s/resolve", req.ID),
		map[string]any{"approved": rng.Intn(2) == 0, "response": "processed by simulator"}, nil)
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	if apptID, ok := s.pool.RandomAppointment(rng); ok && rng.Intn(2) == 0 {
		_, _ = s.call(ctx, &s.metrics.Read, http.MethodGet, "/appointments/"+apptID.String(), nil, nil)
		return
	}
	p := s.pool.Pairs[rng.Intn(len(s.pool.Pairs))]
	_, _ = s.call(ctx, &s.metrics.Read, http.MethodGet, "/appointments?clientId="+p.ClientID.String(), nil, nil)
}

// call performs one request, records it and decodes a 2xx body into out.
func (s *Simulator) call(ctx context.Context, om *OperationMetrics, method, path string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, 0, err)
		}
		return 0, err
	}
	defer resp.Body.Close()

	om.Record(latency, resp.StatusCode, nil)

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Payment", &s.metrics.Payment)
	printOperationReport("Refund", &s.metrics.Refund)
	printOperationReport("Read", &s.metrics.Read)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	rejected := atomic.LoadInt64(&om.Rejected)
	failed := atomic.LoadInt64(&om.Error)

	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}
