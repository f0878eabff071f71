package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/AlekseyZapadovnikov/msg-stats/internal/models"
)

type runConfig struct {
	BaseURL         string
	GroupCount      int
	MessagesPerDay  int
	Days            int
	InsertBatchSize int
	RPS             float64
	Duration        time.Duration
	RequestTimeout  time.Duration
	HealthTimeout   time.Duration
	ReportPath      string
	DatasetPrefix   string
	SkipSeed        bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
}

type datasetInfo struct {
	Prefix         string `json:"prefix"`
	GroupCount     int    `json:"group_count"`
	MessagesPerDay int    `json:"messages_per_day"`
	Days           int    `json:"days"`
	FirstGroupID   int64  `json:"first_group_id"`
	Messages       int    `json:"messages"`
}

type latencySummary struct {
	Samples   int     `json:"samples"`
	AverageMs float64 `json:"average_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
	MaxMs     float64 `json:"max_ms"`
}

type totalsSummary struct {
	Requested int `json:"requested"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type loadSummary struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	BaseURL     string                    `json:"base_url"`
	DurationSec float64                   `json:"duration_sec"`
	TargetRPS   float64                   `json:"target_rps"`
	ActualRPS   float64                   `json:"actual_rps"`
	Dataset     datasetInfo               `json:"dataset"`
	Totals      totalsSummary             `json:"totals"`
	Latency     map[string]latencySummary `json:"latency_ms"`
	Errors      []string                  `json:"errors,omitempty"`
}

// scenario - один вид запроса к сервису отчётов.
type scenario struct {
	Name  string
	Build func(r *rand.Rand) string
}

type metricRecorder struct {
	mu        sync.Mutex
	total     int
	success   int
	failures  int
	durations map[string][]time.Duration
	errors    []string
}

func newMetricRecorder() *metricRecorder {
	return &metricRecorder{durations: make(map[string][]time.Duration)}
}

func (m *metricRecorder) record(name string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	if err != nil {
		m.failures++
		if len(m.errors) < 10 {
			m.errors = append(m.errors, fmt.Sprintf("%s: %s", name, err.Error()))
		}
		return
	}
	m.success++
	m.durations[name] = append(m.durations[name], duration)
}

func (m *metricRecorder) toSummary(elapsed time.Duration, cfg runConfig, data datasetInfo) loadSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := loadSummary{
		GeneratedAt: time.Now(),
		BaseURL:     cfg.BaseURL,
		DurationSec: elapsed.Seconds(),
		TargetRPS:   cfg.RPS,
		Dataset:     data,
		Totals: totalsSummary{
			Requested: m.total,
			Succeeded: m.success,
			Failed:    m.failures,
		},
		Latency: make(map[string]latencySummary, len(m.durations)),
		Errors:  append([]string(nil), m.errors...),
	}
	if elapsed > 0 {
		summary.ActualRPS = float64(m.success) / elapsed.Seconds()
	}
	for name, durations := range m.durations {
		summary.Latency[name] = calcLatency(durations)
	}
	return summary
}

func calcLatency(data []time.Duration) latencySummary {
	if len(data) == 0 {
		return latencySummary{}
	}
	samples := append([]time.Duration(nil), data...)
	sort.Slice(samples, func(i, j int) bool {
		return samples[i] < samples[j]
	})

	var total time.Duration
	for _, d := range samples {
		total += d
	}
	avg := float64(total.Microseconds()) / float64(len(samples))
	return latencySummary{
		Samples:   len(samples),
		AverageMs: avg / 1000.0,
		P50Ms:     toMs(percentile(samples, 0.50)),
		P95Ms:     toMs(percentile(samples, 0.95)),
		P99Ms:     toMs(percentile(samples, 0.99)),
		MaxMs:     toMs(samples[len(samples)-1]),
	}
}

// percentile ожидает отсортированную непустую выборку.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func toMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("load test failed: %v", err)
	}
}

func parseFlags() runConfig {
	var cfg runConfig
	flag.StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "base URL of the running service")
	flag.IntVar(&cfg.GroupCount, "groups", 20, "number of groups to seed (<=100)")
	flag.IntVar(&cfg.MessagesPerDay, "messages-per-day", 200, "messages seeded per group per day")
	flag.IntVar(&cfg.Days, "days", 30, "number of days back from today to seed")
	flag.IntVar(&cfg.InsertBatchSize, "insert-batch", 500, "messages per insert batch")
	flag.Float64Var(&cfg.RPS, "rps", 20, "target requests per second")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "load duration (e.g. 45s, 1m)")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", 2*time.Second, "HTTP request timeout")
	flag.DurationVar(&cfg.HealthTimeout, "health-timeout", 30*time.Second, "maximum wait for /health readiness")
	flag.StringVar(&cfg.ReportPath, "report", "loadgen-results/latest.json", "path to store structured results")
	flag.StringVar(&cfg.DatasetPrefix, "dataset-prefix", "load", "prefix for generated group names")
	flag.BoolVar(&cfg.SkipSeed, "skip-seed", false, "do not insert messages, only generate load")

	flag.StringVar(&cfg.DBHost, "db-host", "localhost", "PostgreSQL host")
	flag.StringVar(&cfg.DBPort, "db-port", "5432", "PostgreSQL port")
	flag.StringVar(&cfg.DBUser, "db-user", "postgres", "PostgreSQL user")
	flag.StringVar(&cfg.DBPassword, "db-password", "secret", "PostgreSQL password")
	flag.StringVar(&cfg.DBName, "db-name", "gwmsgDb", "PostgreSQL database name")

	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.GroupCount <= 0 || cfg.GroupCount > 100 {
		log.Fatalf("groups must be within 1..100, got %d", cfg.GroupCount)
	}
	if cfg.MessagesPerDay <= 0 {
		log.Fatalf("messages-per-day must be positive")
	}
	if cfg.Days <= 0 || cfg.Days > 366 {
		log.Fatalf("days must be within 1..366, got %d", cfg.Days)
	}
	if cfg.InsertBatchSize <= 0 {
		log.Fatalf("insert-batch must be positive")
	}
	if cfg.RPS <= 0 {
		log.Fatalf("rps must be positive")
	}
	return cfg
}

func run(cfg runConfig) error {
	ctx := context.Background()
	client := &http.Client{Timeout: cfg.RequestTimeout}

	if err := waitForHealthy(ctx, client, cfg.BaseURL, cfg.HealthTimeout); err != nil {
		return fmt.Errorf("service unhealthy: %w", err)
	}
	log.Printf("Service is healthy at %s", cfg.BaseURL)

	info := datasetInfo{
		Prefix:         fmt.Sprintf("%s-%s", cfg.DatasetPrefix, uuid.NewString()[:8]),
		GroupCount:     cfg.GroupCount,
		MessagesPerDay: cfg.MessagesPerDay,
		Days:           cfg.Days,
	}

	var groupIDs []int64
	if !cfg.SkipSeed {
		pool, err := pgxpool.New(ctx, cfg.dbConnString())
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		groupIDs, err = seedDataset(ctx, pool, cfg, &info)
		pool.Close()
		if err != nil {
			return fmt.Errorf("seed dataset: %w", err)
		}
		log.Printf("Seeded %d messages in %d groups (%s)", info.Messages, len(groupIDs), info.Prefix)
	}

	scenarios := buildScenarios(cfg.Days, groupIDs)

	start := time.Now()
	recorder := newMetricRecorder()
	if err := executeLoad(ctx, client, cfg, scenarios, recorder); err != nil {
		return err
	}
	elapsed := time.Since(start)
	summary := recorder.toSummary(elapsed, cfg, info)

	printSummary(summary)
	if err := writeReport(summary, cfg.ReportPath); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func (cfg runConfig) dbConnString() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:   net.JoinHostPort(cfg.DBHost, cfg.DBPort),
		Path:   cfg.DBName,
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

func waitForHealthy(ctx context.Context, client *http.Client, baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for health")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return nil
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(1 * time.Second)
	}
}

// seedDataset создаёт группы и сообщения за последние cfg.Days дней.
// Идентификаторы сообщений продолжают текущий максимум в gt_messages.
func seedDataset(ctx context.Context, pool *pgxpool.Pool, cfg runConfig, info *datasetInfo) ([]int64, error) {
	var firstGroupID, nextMsgID int64
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MIN(id), 0) FROM gt_groups`).Scan(&firstGroupID); err != nil {
		return nil, fmt.Errorf("read group ids: %w", err)
	}
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM gt_messages`).Scan(&nextMsgID); err != nil {
		return nil, fmt.Errorf("read message ids: %w", err)
	}
	// Супергруппы Telegram имеют отрицательные идентификаторы, новые берём ниже существующих.
	if firstGroupID > -1000000000000 {
		firstGroupID = -1000000000000
	}
	firstGroupID--
	info.FirstGroupID = firstGroupID

	groupIDs := make([]int64, 0, cfg.GroupCount)
	groups := &pgx.Batch{}
	for i := 0; i < cfg.GroupCount; i++ {
		id := firstGroupID - int64(i)
		groupIDs = append(groupIDs, id)
		groups.Queue(`INSERT INTO gt_groups (id, name) VALUES ($1, $2)`, id, fmt.Sprintf("%s-group-%02d", info.Prefix, i+1))
	}
	if err := pool.SendBatch(ctx, groups).Close(); err != nil {
		return nil, fmt.Errorf("insert groups: %w", err)
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	today := time.Now()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	batch := &pgx.Batch{}
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		err := pool.SendBatch(ctx, batch).Close()
		batch = &pgx.Batch{}
		return err
	}

	for d := 0; d < cfg.Days; d++ {
		day := today.AddDate(0, 0, -d)
		for gi, groupID := range groupIDs {
			// Разная активность групп даёт осмысленную сортировку в отчёте.
			perDay := cfg.MessagesPerDay * (len(groupIDs) - gi) / len(groupIDs)
			for m := 0; m < perDay; m++ {
				nextMsgID++
				sentAt := day.Add(time.Duration(rnd.Int63n(int64(24 * time.Hour))))
				batch.Queue(`INSERT INTO gt_messages (id, chat_id) VALUES ($1, $2)`, nextMsgID, groupID)
				batch.Queue(`INSERT INTO gt_message_content (id, tg_date) VALUES ($1, $2)`, nextMsgID, sentAt)
				info.Messages++
				if batch.Len() >= cfg.InsertBatchSize*2 {
					if err := flush(); err != nil {
						return nil, fmt.Errorf("insert messages: %w", err)
					}
				}
			}
		}
	}
	if err := flush(); err != nil {
		return nil, fmt.Errorf("insert messages: %w", err)
	}
	return groupIDs, nil
}

func buildScenarios(days int, groupIDs []int64) []scenario {
	dayString := func(offset int) string {
		return time.Now().AddDate(0, 0, -offset).Format(models.DateLayout)
	}
	scenarios := []scenario{
		{
			Name:  "groups_today",
			Build: func(*rand.Rand) string { return "/messages/groups/today" },
		},
		{
			Name: "groups_on_day",
			Build: func(r *rand.Rand) string {
				return "/messages/groups?date=" + url.QueryEscape(dayString(r.Intn(days)))
			},
		},
		{
			Name: "daily_range",
			Build: func(r *rand.Rand) string {
				start := r.Intn(days)
				return fmt.Sprintf("/messages/daily?start_date=%s", url.QueryEscape(dayString(start)))
			},
		},
		{
			Name: "daily_closed_range",
			Build: func(r *rand.Rand) string {
				start := days - 1
				end := r.Intn(days)
				return fmt.Sprintf("/messages/daily?start_date=%s&end_date=%s",
					url.QueryEscape(dayString(start)), url.QueryEscape(dayString(end)))
			},
		},
	}
	if len(groupIDs) > 0 {
		scenarios = append(scenarios, scenario{
			Name: "daily_group",
			Build: func(r *rand.Rand) string {
				id := groupIDs[r.Intn(len(groupIDs))]
				return fmt.Sprintf("/messages/daily?start_date=%s&group_id=%d", url.QueryEscape(dayString(days-1)), id)
			},
		})
	}
	return scenarios
}

func executeLoad(ctx context.Context, client *http.Client, cfg runConfig, scenarios []scenario, recorder *metricRecorder) error {
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), 1)

	totalRequests := int(math.Round(cfg.Duration.Seconds() * cfg.RPS))
	if totalRequests == 0 {
		totalRequests = int(cfg.Duration.Seconds()) + 1
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		sc := scenarios[rnd.Intn(len(scenarios))]
		path := sc.Build(rnd)
		wg.Add(1)
		go func(name, path string) {
			defer wg.Done()
			duration, err := executeRequest(ctx, client, cfg.BaseURL+path)
			recorder.record(name, duration, err)
		}(sc.Name, path)
	}
	wg.Wait()
	return nil
}

func executeRequest(ctx context.Context, client *http.Client, target string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	duration := time.Since(start)

	var envelope models.Envelope[json.RawMessage]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || envelope.IsError() {
		msg := strings.TrimSpace(string(body))
		if envelope.Msg != nil {
			msg = *envelope.Msg
		}
		return 0, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return duration, nil
}

func printSummary(summary loadSummary) {
	fmt.Printf("\nLoad test summary:\n")
	fmt.Printf("  Target RPS: %.2f, Actual RPS: %.2f\n", summary.TargetRPS, summary.ActualRPS)
	fmt.Printf("  Requests: %d total, %d succeeded, %d failed\n", summary.Totals.Requested, summary.Totals.Succeeded, summary.Totals.Failed)

	names := make([]string, 0, len(summary.Latency))
	for name := range summary.Latency {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		l := summary.Latency[name]
		fmt.Printf("  %-20s n=%-5d avg: %.2f ms, p50: %.2f ms, p95: %.2f ms, p99: %.2f ms, max: %.2f ms\n",
			name, l.Samples, l.AverageMs, l.P50Ms, l.P95Ms, l.P99Ms, l.MaxMs)
	}
	if len(summary.Errors) > 0 {
		fmt.Println("  Sample errors:")
		for _, err := range summary.Errors {
			fmt.Printf("   - %s\n", err)
		}
	}
}

func writeReport(summary loadSummary, path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
