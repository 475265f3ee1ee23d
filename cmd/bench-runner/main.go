package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nazeru/phoneshop-go/internal/apiclient"
	"github.com/nazeru/phoneshop-go/internal/order/workflow"
)

type benchResult struct {
	Timestamp          string         `json:"timestamp"`
	BaseURL            string         `json:"base_url"`
	Scenario           string         `json:"scenario"`
	Orders             int            `json:"orders"`
	Concurrency        int            `json:"concurrency"`
	SuccessfulRequests int            `json:"successful_requests"`
	ErrorRequests      int            `json:"error_requests"`
	DurationSeconds    float64        `json:"duration_seconds"`
	AvgLatencyMs       float64        `json:"avg_latency_ms"`
	MinLatencyMs       float64        `json:"min_latency_ms"`
	MaxLatencyMs       float64        `json:"max_latency_ms"`
	P50LatencyMs       float64        `json:"p50_latency_ms"`
	P90LatencyMs       float64        `json:"p90_latency_ms"`
	P95LatencyMs       float64        `json:"p95_latency_ms"`
	P99LatencyMs       float64        `json:"p99_latency_ms"`
	ThroughputRPS      float64        `json:"throughput_rps"`
	ErrorCodes         map[string]int `json:"error_codes"`
	FirstError         string         `json:"first_error"`
	StockBefore        int            `json:"stock_before"`
	StockAfter         int            `json:"stock_after"`
	UnitsSold          int            `json:"units_sold"`
	Oversold           bool           `json:"oversold"`
}

type metrics struct {
	mu          sync.Mutex
	success     int
	errors      int
	units       int
	total       time.Duration
	minLatency  time.Duration
	maxLatency  time.Duration
	latenciesMs []float64
	errorCodes  map[string]int
	firstError  string
}

func newMetrics() *metrics {
	return &metrics{errorCodes: make(map[string]int)}
}

func (m *metrics) record(latency time.Duration, units int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units += units
	if err != nil {
		m.errors++
		m.errorCodes[apiclient.Code(err)]++
		if m.firstError == "" {
			m.firstError = err.Error()
		}
		return
	}
	m.success++
	m.total += latency
	if m.minLatency == 0 || latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	m.latenciesMs = append(m.latenciesMs, float64(latency.Milliseconds()))
}

// scenario runs one unit of work and returns the stock it consumed.
type scenario func(ctx context.Context, c *apiclient.Client, worker, n int) (int, error)

func main() {
	baseURL := flag.String("base-url", getenv("ORDER_BASE_URL", "http://localhost:8080"), "order-service base URL")
	productID := flag.String("product", getenv("PRODUCT_ID", ""), "product to order")
	name := flag.String("scenario", "create", "scenario to run: create|create-cancel|retry")
	total := flag.Int("total", 1000, "total number of orders")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	quantity := flag.Int("quantity", 1, "units per order")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	output := flag.String("output", "", "optional output path for JSON result")
	flag.Parse()

	if *total <= 0 {
		fmt.Fprintln(os.Stderr, "total must be > 0")
		os.Exit(1)
	}
	if *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency must be > 0")
		os.Exit(1)
	}
	if strings.TrimSpace(*productID) == "" {
		fmt.Fprintln(os.Stderr, "product is required")
		os.Exit(1)
	}
	run, err := buildScenario(*name, *productID, *quantity)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	client := apiclient.New(*baseURL, *timeout)
	before, err := client.GetProduct(context.Background(), *productID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "product lookup failed: %v\n", err)
		os.Exit(1)
	}

	tasks := make(chan int)
	var wg sync.WaitGroup
	m := newMetrics()

	start := time.Now()
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for n := range tasks {
				ctx, cancel := context.WithTimeout(context.Background(), *timeout)
				t0 := time.Now()
				units, err := run(ctx, client, worker, n)
				cancel()
				m.record(time.Since(t0), units, err)
			}
		}(w)
	}
	for i := 0; i < *total; i++ {
		tasks <- i
	}
	close(tasks)
	wg.Wait()
	duration := time.Since(start)

	after, err := client.GetProduct(context.Background(), *productID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "product lookup failed: %v\n", err)
		os.Exit(1)
	}

	avgLatency := 0.0
	minLatency := 0.0
	maxLatency := 0.0
	if m.success > 0 {
		avgLatency = float64(m.total.Milliseconds()) / float64(m.success)
		minLatency = float64(m.minLatency.Milliseconds())
		maxLatency = float64(m.maxLatency.Milliseconds())
	}
	p50, p90, p95, p99 := calcPercentiles(m.latenciesMs)

	result := benchResult{
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		BaseURL:            *baseURL,
		Scenario:           *name,
		Orders:             *total,
		Concurrency:        *concurrency,
		SuccessfulRequests: m.success,
		ErrorRequests:      m.errors,
		DurationSeconds:    duration.Seconds(),
		AvgLatencyMs:       avgLatency,
		MinLatencyMs:       minLatency,
		MaxLatencyMs:       maxLatency,
		P50LatencyMs:       p50,
		P90LatencyMs:       p90,
		P95LatencyMs:       p95,
		P99LatencyMs:       p99,
		ThroughputRPS:      float64(m.success) / duration.Seconds(),
		ErrorCodes:         m.errorCodes,
		FirstError:         m.firstError,
		StockBefore:        before.Stock,
		StockAfter:         after.Stock,
		UnitsSold:          m.units,
		Oversold:           after.Stock < 0 || before.Stock-after.Stock != m.units,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
	if *output != "" {
		if err := writeJSON(*output, result); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
			os.Exit(1)
		}
	}
	if result.Oversold {
		os.Exit(2)
	}
}

func orderInput(productID string, quantity, n int) workflow.CreateOrderInput {
	return workflow.CreateOrderInput{
		Customer: workflow.CustomerInput{
			Name:    fmt.Sprintf("Bench %d", n),
			Phone:   fmt.Sprintf("09%08d", n%100000000),
			Address: "Bench street",
		},
		Items: []workflow.ItemInput{{ProductID: productID, Quantity: quantity}},
	}
}

func buildScenario(name, productID string, quantity int) (scenario, error) {
	switch name {
	case "create":
		return func(ctx context.Context, c *apiclient.Client, _, n int) (int, error) {
			_, _, err := c.CreateOrder(ctx, orderInput(productID, quantity, n), "")
			if err != nil {
				return 0, err
			}
			return quantity, nil
		}, nil
	case "create-cancel":
		return func(ctx context.Context, c *apiclient.Client, _, n int) (int, error) {
			o, _, err := c.CreateOrder(ctx, orderInput(productID, quantity, n), "")
			if err != nil {
				return 0, err
			}
			if _, err := c.CancelOrder(ctx, o.ID); err != nil {
				return quantity, err
			}
			return 0, nil
		}, nil
	case "retry":
		// every order is sent twice with the same key; only one may count
		return func(ctx context.Context, c *apiclient.Client, _, n int) (int, error) {
			key := uuid.NewString()
			first, _, err := c.CreateOrder(ctx, orderInput(productID, quantity, n), key)
			if err != nil {
				return 0, err
			}
			second, replayed, err := c.CreateOrder(ctx, orderInput(productID, quantity, n), key)
			if err != nil {
				return quantity, err
			}
			if !replayed || second.ID != first.ID {
				return quantity * 2, fmt.Errorf("order %s was not replayed", first.OrderNumber)
			}
			return quantity, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown scenario: %s", name)
	}
}

func writeJSON(path string, result benchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func calcPercentiles(values []float64) (float64, float64, float64, float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sort.Float64s(values)
	return percentile(values, 0.50), percentile(values, 0.90), percentile(values, 0.95), percentile(values, 0.99)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
