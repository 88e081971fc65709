// Benchmark tool for load testing the retirement calculator.
//
// Usage:
//
//	go run ./cmd/benchmark -csv data/scenarios.csv -url http://localhost:8080 -requests 5000
//
// This tool:
//  1. Reads calculation scenarios (with optional expected future values)
//  2. Sends them round-robin to POST /retirement-plans/calculate
//  3. Compares each returned futureValue with the expected one
//  4. Reports status codes, mismatches, latency percentiles and throughput
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Scenario is one row of the scenario file.
type Scenario struct {
	CurrentAge    int
	RetirementAge int
	InterestRate  string // empty uses the server's cached rate
	LifestyleType string
	Expected      *decimal.Decimal
}

// CalculateRequest is the calculator request format.
type CalculateRequest struct {
	CurrentAge    int          `json:"currentAge"`
	RetirementAge int          `json:"retirementAge"`
	InterestRate  *json.Number `json:"interestRate,omitempty"`
	LifestyleType string       `json:"lifestyleType"`
}

// CalculateResponse is the calculator response format.
type CalculateResponse struct {
	FutureValue json.Number `json:"futureValue"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TotalProcessed int64
	TotalMatched   int64
	TotalMismatch  int64
	TotalErrors    int64

	mu        sync.Mutex
	statuses  map[int]int64
	latencies []time.Duration
}

func (m *Metrics) record(status int, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses == nil {
		m.statuses = make(map[int]int64)
	}
	m.statuses[status]++
	m.latencies = append(m.latencies, elapsed)
}

// Percentile returns the p-th percentile (0-100) of recorded latencies.
func (m *Metrics) Percentile(p float64) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return percentile(m.latencies, p)
}

func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}

func main() {
	csvPath := flag.String("csv", "", "Path to scenario CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Calculator base URL")
	requests := flag.Int("requests", 1000, "Total requests to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv data/scenarios.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("RETIREMENT CALCULATOR BENCHMARK")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("URL:         %s\n", *baseURL)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Requests:    %d\n", *requests)
	fmt.Println()

	if err := checkReady(*baseURL); err != nil {
		fmt.Printf("ERROR: calculator not ready at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the calculator is running:")
		fmt.Println("  go run ./cmd/retirement")
		os.Exit(1)
	}
	fmt.Println("✓ Calculator is ready")

	file, err := os.Open(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	scenarios, err := readScenarios(file)
	file.Close()
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d scenarios\n", len(scenarios))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(scenarios, *baseURL, *requests, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkReady(baseURL string) error {
	resp, err := http.Get(baseURL + "/ready")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("not ready: status %d", resp.StatusCode)
	}
	return nil
}

// readScenarios parses a header-addressed CSV with columns currentAge, retirementAge,
// lifestyleType and optional interestRate and expectedFutureValue.
func readScenarios(r io.Reader) ([]Scenario, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"currentage", "retirementage", "lifestyletype"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var scenarios []Scenario
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		current, err := strconv.Atoi(field(record, "currentage"))
		if err != nil {
			return nil, fmt.Errorf("line %d: currentAge: %w", line, err)
		}
		retirement, err := strconv.Atoi(field(record, "retirementage"))
		if err != nil {
			return nil, fmt.Errorf("line %d: retirementAge: %w", line, err)
		}

		s := Scenario{
			CurrentAge:    current,
			RetirementAge: retirement,
			InterestRate:  field(record, "interestrate"),
			LifestyleType: field(record, "lifestyletype"),
		}
		if raw := field(record, "expectedfuturevalue"); raw != "" {
			expected, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: expectedFutureValue: %w", line, err)
			}
			s.Expected = &expected
		}
		scenarios = append(scenarios, s)
	}

	if len(scenarios) == 0 {
		return nil, errors.New("no scenarios")
	}
	return scenarios, nil
}

func runBenchmark(scenarios []Scenario, baseURL string, total, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan Scenario, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for s := range work {
				start := time.Now()
				status, result, err := calculate(client, baseURL, s)
				elapsed := time.Since(start)

				atomic.AddInt64(&metrics.TotalProcessed, 1)
				metrics.record(status, elapsed)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s %d->%d -> %v\n", s.LifestyleType, s.CurrentAge, s.RetirementAge, err)
					}
					continue
				}

				if s.Expected == nil {
					continue
				}
				got, err := decimal.NewFromString(result.FutureValue.String())
				if err == nil && got.Equal(*s.Expected) {
					atomic.AddInt64(&metrics.TotalMatched, 1)
				} else {
					atomic.AddInt64(&metrics.TotalMismatch, 1)
				}

				if verbose {
					fmt.Printf("%-8s %d->%d rate=%-5s | futureValue=%s expected=%s | %v\n",
						s.LifestyleType, s.CurrentAge, s.RetirementAge, s.InterestRate,
						result.FutureValue, s.Expected.StringFixed(2), elapsed.Round(time.Microsecond))
				}
			}
		}()
	}

	for i := 0; i < total; i++ {
		work <- scenarios[i%len(scenarios)]
	}
	close(work)

	wg.Wait()

	return metrics
}

func calculate(client *http.Client, baseURL string, s Scenario) (int, *CalculateResponse, error) {
	req := CalculateRequest{
		CurrentAge:    s.CurrentAge,
		RetirementAge: s.RetirementAge,
		LifestyleType: s.LifestyleType,
	}
	if s.InterestRate != "" {
		rate := json.Number(s.InterestRate)
		req.InterestRate = &rate
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/retirement-plans/calculate", bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result CalculateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")

	fmt.Printf("\nREQUESTS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	codes := make([]int, 0, len(m.statuses))
	for code := range m.statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		label := strconv.Itoa(code)
		if code == 0 {
			label = "transport"
		}
		fmt.Printf("   Status %-9s  %d\n", label+":", m.statuses[code])
	}

	fmt.Printf("\nCORRECTNESS\n")
	fmt.Printf("   Matched:          %d\n", m.TotalMatched)
	fmt.Printf("   Mismatched:       %d\n", m.TotalMismatch)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		fmt.Printf("   p50 Latency:      %v\n", m.Percentile(50).Round(time.Microsecond))
		fmt.Printf("   p95 Latency:      %v\n", m.Percentile(95).Round(time.Microsecond))
		fmt.Printf("   p99 Latency:      %v\n", m.Percentile(99).Round(time.Microsecond))
		fmt.Printf("   Throughput:       %.2f req/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}

	if m.TotalMismatch > 0 {
		fmt.Println("\n   ✗ Some results differ from the expected future values")
	}
	fmt.Println()
}
