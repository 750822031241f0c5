package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalDocuments     int64            `json:"total_documents"`
	RedactedDocuments  int64            `json:"redacted_documents"`
	RedactOnlyRequests int64            `json:"redact_only_requests"`
	FailedDocuments    int64            `json:"failed_documents"`
	DegradedDocuments  int64            `json:"degraded_documents"`
	CacheHits          int64            `json:"cache_hits"`
	CacheMisses        int64            `json:"cache_misses"`
	EntitiesDetected   int64            `json:"entities_detected"`
	EntitiesByType     []TypeCount      `json:"entities_by_type"`
	FallbacksBy        map[string]int64 `json:"fallbacks_by_strategy"`
	ByOrigin           map[string]int64 `json:"by_origin"`
	AvgWords           float64          `json:"avg_words"`
	AvgLatencyMs       float64          `json:"avg_latency_ms"`
	P50LatencyMs       int64            `json:"p50_latency_ms"`
	P95LatencyMs       int64            `json:"p95_latency_ms"`
	P99LatencyMs       int64            `json:"p99_latency_ms"`
	DocumentsPerMinute float64          `json:"documents_per_minute"`
	CapturedAt         time.Time        `json:"captured_at"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running totals. It can be fed directly
// through Emit or from a Kafka topic through HandleEvent.
type Aggregator struct {
	mu         sync.Mutex
	stats      AggregatedStats
	entities   map[string]int64
	totalWords int64
	latencies  []int64
	startTime  time.Time
	now        func() time.Time
	logger     *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		stats: AggregatedStats{
			FallbacksBy: make(map[string]int64),
			ByOrigin:    make(map[string]int64),
		},
		entities:  make(map[string]int64),
		latencies: make([]int64, 0, 1024),
		startTime: time.Now(),
		now:       time.Now,
		logger:    slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start runs consumer, which should dispatch to HandleEvent(a), until ctx
// is cancelled.
func (a *Aggregator) Start(ctx context.Context, consumer *kafka.Consumer) error {
	if consumer == nil {
		return errors.New("aggregator has no consumer")
	}
	a.logger.Info("analytics aggregator starting")
	return consumer.Start(ctx)
}

// HandleEvent decodes pipeline events from Kafka. Undecodable messages are
// poison and are skipped by the consumer.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(_ context.Context, _ []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ProcessingEvent](value)
		if err != nil {
			return err
		}
		agg.Emit(event)
		return nil
	}
}

func (a *Aggregator) Emit(event ProcessingEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Origin != "" {
		a.stats.ByOrigin[event.Origin]++
	}
	switch event.Type {
	case EventFailed:
		a.stats.FailedDocuments++
		return
	case EventRedacted:
		a.stats.RedactOnlyRequests++
		a.countEntities(event)
		return
	}

	a.stats.TotalDocuments++
	if event.Redacted {
		a.stats.RedactedDocuments++
	}
	if len(event.Degraded) > 0 {
		a.stats.DegradedDocuments++
		for _, s := range event.Degraded {
			a.stats.FallbacksBy[s]++
		}
	}
	if event.CacheHit {
		a.stats.CacheHits++
	} else {
		a.stats.CacheMisses++
	}
	a.countEntities(event)
	a.totalWords += int64(event.Words)

	a.latencies = append(a.latencies, event.LatencyMs)
	if len(a.latencies) > maxLatencySamples {
		a.latencies = a.latencies[len(a.latencies)-maxLatencySamples:]
	}
}

func (a *Aggregator) countEntities(event ProcessingEvent) {
	a.stats.EntitiesDetected += int64(event.EntityCount)
	for typ, n := range event.EntitiesByType {
		a.entities[typ] += int64(n)
	}
}

// Stats returns a snapshot.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := a.stats
	stats.FallbacksBy = copyCounts(a.stats.FallbacksBy)
	stats.ByOrigin = copyCounts(a.stats.ByOrigin)
	stats.EntitiesByType = topN(a.entities, len(a.entities))
	stats.CapturedAt = a.now().UTC()

	if stats.TotalDocuments > 0 {
		stats.AvgWords = float64(a.totalWords) / float64(stats.TotalDocuments)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.DocumentsPerMinute = float64(stats.TotalDocuments) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []TypeCount {
	result := make([]TypeCount, 0, len(counts))
	for typ, count := range counts {
		result = append(result, TypeCount{Type: typ, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Type < result[j].Type
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
