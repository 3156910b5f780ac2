package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	customerHeader = "X-Customer-ID"
	customerPath   = "/api/v1/customer"
	defaultQty     = int32(1)

	// statusNetworkError: запрос не дошёл до сервера.
	statusNetworkError = 0
)

type loadMode string

const (
	modeAdd       loadMode = "add"
	modeAddSubmit loadMode = "add-submit"
	modeAddRemove loadMode = "add-remove-submit"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	customers   []string
	productIDs  []int64
	maxRetries  int
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

// record учитывает вызов. status: HTTP-код ответа, 0 означает сетевую ошибку.
func (c *collector) record(method string, latency time.Duration, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if isSuccess(status) {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[statusLabel(status)]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}

	codesCopy := make(map[string]int64, len(stats.codes))
	for code, count := range stats.codes {
		codesCopy[code] = count
	}

	return methodReport{
		Calls:     stats.calls,
		Success:   stats.success,
		Failed:    stats.failed,
		ErrorRate: ratio(stats.failed, stats.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(stats.latencies),
	}, true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	scenarioStats := c.methods["scenario"]
	if scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string
	var customersValue string
	var productsValue string

	flag.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "storefront HTTP API base URL")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 20, "max idle HTTP connections to the API")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modeAdd), "load mode: add | add-submit | add-remove-submit")
	flag.StringVar(&customersValue, "customers", "demo-home,demo-business", "comma-separated customer ids; workers sharing a customer race on its open order")
	flag.StringVar(&productsValue, "products", "1,2,3", "comma-separated product ids")
	flag.IntVar(&cfg.maxRetries, "max-retries", 10, "attempts per mutation when the open order was modified concurrently (412)")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	cfg.customers = splitList(customersValue)
	for _, raw := range splitList(productsValue) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return cfg, fmt.Errorf("invalid product id: %s", raw)
		}
		cfg.productIDs = append(cfg.productIDs, id)
	}
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")

	if cfg.baseURL == "" {
		return cfg, errors.New("base-url is required")
	}
	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.connections <= 0 {
		return cfg, errors.New("connections must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.maxRetries <= 0 {
		return cfg, errors.New("max-retries must be > 0")
	}
	if len(cfg.customers) == 0 {
		return cfg, errors.New("customers are required")
	}
	if len(cfg.productIDs) == 0 {
		return cfg, errors.New("products are required")
	}
	if cfg.mode == modeAddRemove && len(cfg.productIDs) < 2 {
		return cfg, errors.New("add-remove-submit mode needs at least 2 products")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeAdd:
		return modeAdd, nil
	case modeAddSubmit:
		return modeAddSubmit, nil
	case modeAddRemove:
		return modeAddRemove, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, chunk := range strings.Split(raw, ",") {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.connections,
		MaxIdleConnsPerHost: cfg.connections,
		IdleConnTimeout:     30 * time.Second,
	}
	defer transport.CloseIdleConnections()

	startedAt := time.Now()
	col := newCollector()
	client := &apiClient{
		http:       &http.Client{Transport: transport},
		baseURL:    cfg.baseURL,
		timeout:    cfg.timeout,
		maxRetries: cfg.maxRetries,
		col:        col,
	}

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(client, cfg, id, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario проигрывает сценарий открытого заказа для клиента index%len(customers).
// Конфликт версий (412) не ошибка сценария: запрос повторяется со свежим ETag.
func runScenario(client *apiClient, cfg config, index int, col *collector) error {
	scenarioStart := time.Now()
	scenarioStatus := http.StatusOK
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioStatus)
	}()

	customerID := cfg.customers[index%len(cfg.customers)]
	productID := cfg.productIDs[index%len(cfg.productIDs)]

	fail := func(err error) error {
		var statusErr *unexpectedStatusError
		if errors.As(err, &statusErr) {
			scenarioStatus = statusErr.status
		} else {
			scenarioStatus = statusNetworkError
		}
		return err
	}

	if err := client.addLineItem(customerID, productID, defaultQty); err != nil {
		return fail(err)
	}
	if cfg.mode == modeAdd {
		return nil
	}

	if cfg.mode == modeAddRemove {
		extra := cfg.productIDs[(index+1)%len(cfg.productIDs)]
		if err := client.addLineItem(customerID, extra, defaultQty); err != nil {
			return fail(err)
		}
		if err := client.removeLineItem(customerID, extra); err != nil {
			return fail(err)
		}
	}

	if err := client.submit(customerID); err != nil {
		return fail(err)
	}
	return nil
}

type unexpectedStatusError struct {
	method string
	status int
}

func (e *unexpectedStatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.method, e.status)
}

// apiClient ходит в REST API витрины и ведёт ETag открытого заказа.
type apiClient struct {
	http       *http.Client
	baseURL    string
	timeout    time.Duration
	maxRetries int
	col        *collector
}

// do выполняет запрос и записывает его в статистику под именем name.
func (c *apiClient) do(name, method, path, customerID, ifMatch string, body []byte) (int, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return statusNetworkError, "", err
	}
	req.Header.Set(customerHeader, customerID)
	req.Header.Set("User-Agent", version.UserAgent("storefront-loadtest"))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.col.record(name, time.Since(start), statusNetworkError)
		return statusNetworkError, "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.col.record(name, time.Since(start), resp.StatusCode)
	return resp.StatusCode, resp.Header.Get("ETag"), nil
}

// openOrderVersion возвращает ETag открытого заказа или пустую строку, если заказа нет.
func (c *apiClient) openOrderVersion(customerID string) (string, error) {
	status, etag, err := c.do("GetOpenOrder", http.MethodGet, customerPath+"/open-order", customerID, "", nil)
	if err != nil {
		return "", err
	}
	switch status {
	case http.StatusOK:
		return etag, nil
	case http.StatusNoContent:
		return "", nil
	default:
		return "", &unexpectedStatusError{method: "GetOpenOrder", status: status}
	}
}

// mutate повторяет изменение со свежим ETag, пока сервер отвечает 412.
// Без открытого заказа requireOrder=true означает, что изменять нечего.
func (c *apiClient) mutate(name, method, path, customerID string, body []byte, want int, requireOrder bool) error {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		etag, err := c.openOrderVersion(customerID)
		if err != nil {
			return err
		}
		if etag == "" && requireOrder {
			// Открытый заказ уже отправил другой воркер того же клиента.
			return nil
		}

		status, _, err := c.do(name, method, path, customerID, etag, body)
		if err != nil {
			return err
		}
		switch status {
		case want:
			return nil
		case http.StatusPreconditionFailed:
			continue
		default:
			return &unexpectedStatusError{method: name, status: status}
		}
	}
	return &unexpectedStatusError{method: name, status: http.StatusPreconditionFailed}
}

func (c *apiClient) addLineItem(customerID string, productID int64, quantity int32) error {
	body, err := json.Marshal(map[string]any{"productId": productID, "quantity": quantity})
	if err != nil {
		return err
	}
	return c.mutate("AddLineItem", http.MethodPost, customerPath+"/open-order/line-items", customerID, body, http.StatusOK, false)
}

func (c *apiClient) removeLineItem(customerID string, productID int64) error {
	path := fmt.Sprintf("%s/open-order/line-items/%d", customerPath, productID)
	err := c.mutate("RemoveLineItem", http.MethodDelete, path, customerID, nil, http.StatusOK, true)
	var statusErr *unexpectedStatusError
	if errors.As(err, &statusErr) && statusErr.status == http.StatusNotFound {
		// Позицию мог удалить или отправить другой воркер того же клиента.
		return nil
	}
	return err
}

func (c *apiClient) submit(customerID string) error {
	return c.mutate("SubmitOrder", http.MethodPost, customerPath+"/open-order", customerID, nil, http.StatusNoContent, true)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func statusLabel(status int) string {
	if status == statusNetworkError {
		return "network_error"
	}
	return strconv.Itoa(status)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
