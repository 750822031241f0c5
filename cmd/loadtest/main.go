// Command loadtest drives the summarizer with clinical notes over HTTP or
// RPC and reports throughput, latency percentiles and status codes.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-key ms_...] [-endpoint process|redact]
//	go run ./cmd/loadtest -rpc localhost:9000
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
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/api"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/rpc"
)

type Config struct {
	BaseURL     string
	APIKey      string
	RPCAddr     string
	Endpoint    string
	Redact      bool
	Concurrency int
	Duration    time.Duration
	Notes       []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	degraded      atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil && statusCode == 0 {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

var notes = []string{
	"Patient John Carter, MRN 00482913, was admitted on 03/14/2024 with chest pain. " +
		"The diagnosis was unstable angina and treatment with heparin was started. " +
		"Blood pressure remained stable overnight. Follow-up with cardiology in two weeks.",
	"Mrs. Alvarez called from 555-201-8890 about her prescription. " +
		"She reports mild nausea after the new medication. Symptoms resolved without intervention. " +
		"Continue current dosage and recheck at the next appointment.",
	"Discharge summary for patient seen by Dr. Patel. The procedure was uncomplicated. " +
		"Wound care instructions were reviewed with the family. " +
		"Contact the clinic at clinic@example.org with any signs of infection.",
	"Emergency visit on 2024-06-02. Patient presented with shortness of breath and fever. " +
		"Chest x-ray showed right lower lobe pneumonia. Started on oral antibiotics. " +
		"Return precautions were discussed and the patient was discharged home.",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the summarizer")
	apiKey := flag.String("key", "", "API key")
	rpcAddr := flag.String("rpc", "", "RPC address; overrides -url")
	endpoint := flag.String("endpoint", "process", "process or redact")
	redact := flag.Bool("redact", true, "request redaction")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	if *endpoint != "process" && *endpoint != "redact" {
		fmt.Fprintf(os.Stderr, "unknown endpoint %q\n", *endpoint)
		os.Exit(1)
	}

	cfg := Config{
		BaseURL:     *baseURL,
		APIKey:      *apiKey,
		RPCAddr:     *rpcAddr,
		Endpoint:    *endpoint,
		Redact:      *redact,
		Concurrency: *concurrency,
		Duration:    *duration,
		Notes:       notes,
	}

	fmt.Println("=== Summarizer Load Test ===")
	if cfg.RPCAddr != "" {
		fmt.Printf("Target:      rpc://%s\n", cfg.RPCAddr)
	} else {
		fmt.Printf("Target:      %s/api/v1/%s\n", cfg.BaseURL, cfg.Endpoint)
	}
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Redact:      %v\n", cfg.Redact)
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

// caller sends one note and returns the status code and whether any
// summary degraded.
type caller func(ctx context.Context, note string) (int, bool, error)

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		call, closeFn := newCaller(cfg)
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			defer closeFn()
			idx := workerID
			for ctx.Err() == nil {
				note := cfg.Notes[idx%len(cfg.Notes)]
				idx++

				start := time.Now()
				code, degraded, err := call(ctx, note)
				if ctx.Err() != nil {
					return
				}
				if degraded {
					stats.degraded.Add(1)
				}
				stats.RecordRequest(time.Since(start), code, err)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func newCaller(cfg Config) (caller, func()) {
	if cfg.RPCAddr != "" {
		c := rpc.NewClient(cfg.RPCAddr)
		return rpcCaller(c, cfg), func() { c.Close() }
	}
	client := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return httpCaller(client, cfg), client.CloseIdleConnections
}

func httpCaller(client *http.Client, cfg Config) caller {
	target := fmt.Sprintf("%s/api/v1/%s", cfg.BaseURL, cfg.Endpoint)
	return func(ctx context.Context, note string) (int, bool, error) {
		var body any = api.ProcessRequest{Text: note, Redact: cfg.Redact}
		if cfg.Endpoint == "redact" {
			body = api.RedactRequest{Text: note}
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, false, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			return 0, false, err
		}
		req.Header.Set("Content-Type", "application/json")
		if cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, false, err
		}
		defer resp.Body.Close()
		if cfg.Endpoint != "process" || resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, false, nil
		}
		var res pipeline.Result
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return resp.StatusCode, false, nil
		}
		return resp.StatusCode, res.Degraded(), nil
	}
}

func rpcCaller(c *rpc.Client, cfg Config) caller {
	return func(ctx context.Context, note string) (int, bool, error) {
		var err error
		degraded := false
		if cfg.Endpoint == "redact" {
			err = c.Call(ctx, api.MethodRedact, api.RedactRequest{Text: note}, nil)
		} else {
			var res pipeline.Result
			err = c.Call(ctx, api.MethodProcess, api.ProcessRequest{Text: note, Redact: cfg.Redact}, &res)
			degraded = err == nil && res.Degraded()
		}
		var rpcErr *rpc.Error
		switch {
		case err == nil:
			return http.StatusOK, degraded, nil
		case errors.As(err, &rpcErr):
			return rpcErr.Code, false, err
		}
		return 0, false, err
	}
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errs := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errs)
	fmt.Printf("Degraded:        %d\n", stats.degraded.Load())

	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errs)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
