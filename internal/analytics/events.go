// Package analytics records what the pipeline did to each document and
// aggregates it. Events carry counts and timings only, never document text.
package analytics

import "time"

type EventType string

const (
	EventProcessed EventType = "document_processed"
	EventRedacted  EventType = "document_redacted"
	EventFailed    EventType = "document_failed"
)

// Origin values for ProcessingEvent.Origin.
const (
	OriginAPI    = "api"
	OriginRPC    = "rpc"
	OriginWorker = "worker"
	OriginBatch  = "batch"
)

type ProcessingEvent struct {
	Type           EventType      `json:"type"`
	DocumentID     string         `json:"document_id"`
	Origin         string         `json:"origin"`
	Redacted       bool           `json:"redacted"`
	EntityCount    int            `json:"entity_count"`
	EntitiesByType map[string]int `json:"entities_by_type,omitempty"`
	Degraded       []string       `json:"degraded,omitempty"`
	CacheHit       bool           `json:"cache_hit"`
	Words          int            `json:"words"`
	LatencyMs      int64          `json:"latency_ms"`
	Error          string         `json:"error,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	RequestID      string         `json:"request_id,omitempty"`
}

// Sink receives processing events. Implementations must not block.
type Sink interface {
	Emit(event ProcessingEvent)
}

// Fanout emits to every sink in order.
type Fanout []Sink

func (f Fanout) Emit(event ProcessingEvent) {
	for _, s := range f {
		if s != nil {
			s.Emit(event)
		}
	}
}

// Discard drops events.
type Discard struct{}

func (Discard) Emit(ProcessingEvent) {}
