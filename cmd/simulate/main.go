package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/gov-appointments/internal/api"
	"github.com/hackgods/gov-appointments/internal/config"
	"github.com/hackgods/gov-appointments/pkg/logging"
)

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	BookingRatio      float64
	ConfirmRatio      float64
	ReadRatio         float64
	CheckInRatio      float64
	ConversationRatio float64
	Citizens          int
	Agents            int
	Days              int
	JWTSecret         string
	Location          *time.Location
}

type citizen struct {
	ID    string
	Name  string
	NIC   string
	Email string
	Phone string
	Token string
}

// booked is an appointment created during the run together with its owner.
type booked struct {
	ID    uuid.UUID
	Ref   string
	Owner *citizen
}

type DataPool struct {
	Citizens   []*citizen
	Slots      []slot
	StaffToken string

	mu           sync.RWMutex
	appointments []booked
}

type slot struct {
	AgentID string
	Date    string
	Time    string
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.IntN(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Limited   int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeLimited
	outcomeError
)

func classify(status int, want int) outcome {
	switch status {
	case want:
		return outcomeSuccess
	case http.StatusConflict:
		return outcomeConflict
	case http.StatusTooManyRequests:
		return outcomeLimited
	default:
		return outcomeError
	}
}

func (om *OperationMetrics) Record(latency time.Duration, o outcome) {
	atomic.AddInt64(&om.Total, 1)
	switch o {
	case outcomeSuccess:
		atomic.AddInt64(&om.Success, 1)
	case outcomeConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case outcomeLimited:
		atomic.AddInt64(&om.Limited, 1)
	default:
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
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking      OperationMetrics
	Confirm      OperationMetrics
	ReadByRef    OperationMetrics
	ListMine     OperationMetrics
	CheckIn      OperationMetrics
	Conversation OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logging.New("info", "dev").Fatal().Err(err).Msg("invalid config")
	}
	logger := logging.New(getEnv("LOG_LEVEL", "info"), "dev")

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("slots", cfg.Agents*cfg.Days*len(clockSlots)).
		Msg("simulator starting")

	dataPool, err := buildDataPool(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("build data pool")
	}

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

var clockSlots = []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 10),
		BookingRatio:      getFloat("SIM_BOOKING_RATIO", 0.4),
		ConfirmRatio:      getFloat("SIM_CONFIRM_RATIO", 0.15),
		ReadRatio:         getFloat("SIM_READ_RATIO", 0.25),
		CheckInRatio:      getFloat("SIM_CHECKIN_RATIO", 0.1),
		ConversationRatio: getFloat("SIM_CONVERSATION_RATIO", 0.1),
		Citizens:          getInt("SIM_CITIZENS", 200),
		Agents:            getInt("SIM_AGENTS", 3),
		Days:              getInt("SIM_DAYS", 2),
		JWTSecret:         baseCfg.JWTSecret,
		Location:          baseCfg.Location,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.ReadRatio + cfg.CheckInRatio + cfg.ConversationRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
		cfg.CheckInRatio /= total
		cfg.ConversationRatio /= total
	}

	if cfg.Workers <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Agents <= 0 || cfg.Days <= 0 || cfg.Citizens <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_AGENTS, SIM_DAYS and SIM_CITIZENS must be > 0")
	}
	return cfg, nil
}

// buildDataPool fakes citizens and a deliberately small slot grid so concurrent
// bookings collide.
func buildDataPool(cfg SimConfig) (*DataPool, error) {
	faker := gofakeit.New(0)
	expires := jwt.NewNumericDate(time.Now().Add(cfg.Duration + time.Hour))

	dp := &DataPool{}
	for i := 0; i < cfg.Citizens; i++ {
		c := &citizen{
			ID:    "sim-" + uuid.NewString(),
			Name:  faker.Name(),
			NIC:   faker.Numerify("############"),
			Email: faker.Email(),
			Phone: "07" + faker.Numerify("########"),
		}
		token, err := api.SignToken(cfg.JWTSecret, api.Principal{Subject: c.ID, Role: api.RoleCitizen}, jwt.RegisteredClaims{ExpiresAt: expires})
		if err != nil {
			return nil, fmt.Errorf("sign citizen token: %w", err)
		}
		c.Token = token
		dp.Citizens = append(dp.Citizens, c)
	}

	staffToken, err := api.SignToken(cfg.JWTSecret, api.Principal{Subject: "sim-officer", Role: api.RoleAdmin}, jwt.RegisteredClaims{ExpiresAt: expires})
	if err != nil {
		return nil, fmt.Errorf("sign staff token: %w", err)
	}
	dp.StaffToken = staffToken

	tomorrow := time.Now().In(cfg.Location).AddDate(0, 0, 1)
	for a := 1; a <= cfg.Agents; a++ {
		for d := 0; d < cfg.Days; d++ {
			for _, clock := range clockSlots {
				dp.Slots = append(dp.Slots, slot{
					AgentID: fmt.Sprintf("sim-agent-%02d", a),
					Date:    tomorrow.AddDate(0, 0, d).Format("2006-01-02"),
					Time:    clock,
				})
			}
		}
	}

	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	seed := uint64(time.Now().UnixNano())
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, rand.New(rand.NewPCG(seed, uint64(workerID))))
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, rng *rand.Rand) {
	c := s.config
	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < c.BookingRatio:
				s.doBooking(ctx, rng)
			case r < c.BookingRatio+c.ConfirmRatio:
				s.doConfirm(ctx, rng)
			case r < c.BookingRatio+c.ConfirmRatio+c.ReadRatio:
				if rng.IntN(2) == 0 {
					s.doReadByRef(ctx, rng)
				} else {
					s.doListMine(ctx, rng)
				}
			case r < c.BookingRatio+c.ConfirmRatio+c.ReadRatio+c.CheckInRatio:
				s.doCheckIn(ctx, rng)
			default:
				s.doConversation(ctx, rng)
			}
		}
	}
}

// call sends an authenticated JSON request and returns the status and raw body.
func (s *Simulator) call(ctx context.Context, method, path, token string, body any) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, latency, err
}

func (s *Simulator) record(ctx context.Context, om *OperationMetrics, latency time.Duration, status, want int, err error) {
	// requests cut off by the end of the run are not failures
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		om.Record(latency, outcomeError)
		return
	}
	om.Record(latency, classify(status, want))
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Citizens[rng.IntN(len(s.pool.Citizens))]
	sl := s.pool.Slots[rng.IntN(len(s.pool.Slots))]

	status, body, latency, err := s.call(ctx, http.MethodPost, "/appointments", c.Token, api.CreateAppointmentRequest{
		CitizenID:   c.ID,
		CitizenName: c.Name,
		NIC:         c.NIC,
		Email:       c.Email,
		Phone:       c.Phone,
		ServiceType: "passport",
		Department:  "immigration",
		Date:        sl.Date,
		Time:        sl.Time,
		AgentID:     sl.AgentID,
		OfficeName:  "Simulation Office",
	})
	s.record(ctx, &s.metrics.Booking, latency, status, http.StatusCreated, err)

	if err == nil && status == http.StatusCreated {
		var appt api.AppointmentResponse
		if json.Unmarshal(body, &appt) == nil && appt.ID != uuid.Nil {
			s.pool.AddAppointment(booked{ID: appt.ID, Ref: appt.BookingReference, Owner: c})
		}
	}
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	// confirming twice is a 409, which counts as a conflict
	status, _, latency, err := s.call(ctx, http.MethodPost, "/appointments/"+b.ID.String()+"/confirm", s.pool.StaffToken, nil)
	s.record(ctx, &s.metrics.Confirm, latency, status, http.StatusOK, err)
}

func (s *Simulator) doReadByRef(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	status, _, latency, err := s.call(ctx, http.MethodGet, "/appointments/ref/"+b.Ref, b.Owner.Token, nil)
	s.record(ctx, &s.metrics.ReadByRef, latency, status, http.StatusOK, err)
}

func (s *Simulator) doListMine(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Citizens[rng.IntN(len(s.pool.Citizens))]
	status, _, latency, err := s.call(ctx, http.MethodGet, "/appointments?limit=20&offset=0", c.Token, nil)
	s.record(ctx, &s.metrics.ListMine, latency, status, http.StatusOK, err)
}

// doCheckIn issues a QR as the owner and scans it at the desk. Bookings are for
// future days, so a successful scan reports an early or expired window.
func (s *Simulator) doCheckIn(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	status, body, latency, err := s.call(ctx, http.MethodPost, "/appointments/"+b.ID.String()+"/qr", b.Owner.Token, nil)
	if err != nil || status != http.StatusOK {
		s.record(ctx, &s.metrics.CheckIn, latency, status, http.StatusOK, err)
		return
	}

	var appt api.AppointmentResponse
	if err := json.Unmarshal(body, &appt); err != nil || appt.QRCode == nil {
		s.metrics.CheckIn.Record(latency, outcomeError)
		return
	}

	status, _, scanLatency, err := s.call(ctx, http.MethodPost, "/checkin/validate", s.pool.StaffToken, api.CheckInRequest{QRData: appt.QRCode.Data})
	s.record(ctx, &s.metrics.CheckIn, latency+scanLatency, status, http.StatusOK, err)
}

var conversationScript = []string{
	"Hello",
	"Immigration",
	"passport renewal",
	"Front desk officer",
	"next Monday",
	"10:30",
	"Passport renewal before travel",
	"Bring old passport",
}

// doConversation plays one full booking conversation on a fresh session.
func (s *Simulator) doConversation(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Citizens[rng.IntN(len(s.pool.Citizens))]
	sessionID := uuid.NewString()

	var total time.Duration
	for _, msg := range conversationScript {
		status, _, latency, err := s.call(ctx, http.MethodPost, "/conversations/"+sessionID+"/messages", c.Token, api.MessageRequest{Message: msg})
		total += latency
		if err != nil || status != http.StatusOK {
			s.record(ctx, &s.metrics.Conversation, total, status, http.StatusOK, err)
			return
		}
	}
	s.metrics.Conversation.Record(total, outcomeSuccess)

	_, _, _, _ = s.call(ctx, http.MethodDelete, "/conversations/"+sessionID, c.Token, nil)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Slots: %d across %d agents\n", len(s.pool.Slots), s.config.Agents)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Read by Reference", &s.metrics.ReadByRef)
	printOperationReport("List Mine", &s.metrics.ListMine)
	printOperationReport("Check-in", &s.metrics.CheckIn)
	printOperationReport("Conversation", &s.metrics.Conversation)

	created := atomic.LoadInt64(&s.metrics.Booking.Success)
	if created > int64(len(s.pool.Slots)) {
		fmt.Printf("WARNING: %d bookings succeeded for %d slots, double booking detected\n", created, len(s.pool.Slots))
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	limited := atomic.LoadInt64(&om.Limited)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if limited > 0 {
		fmt.Printf("  Rate limited: %d (%.1f%%)\n", limited, pct(limited))
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, pct(errs))
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

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
