// Package worker processes documents submitted over Kafka and publishes
// their results.
package worker

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
)

// Processing outcomes carried by ProcessedEvent.Status.
const (
	StatusProcessed = "PROCESSED"
	StatusDegraded  = "DEGRADED"
	StatusFailed    = "FAILED"
)

// DocumentEvent is a document submitted for asynchronous processing.
type DocumentEvent struct {
	DocumentID  string    `json:"document_id"`
	Source      string    `json:"source,omitempty"`
	Text        string    `json:"text"`
	Redact      bool      `json:"redact"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ProcessedEvent reports the outcome for one DocumentEvent. Result never
// carries the original text, and carries summaries only when redacted.
type ProcessedEvent struct {
	DocumentID  string           `json:"document_id"`
	Status      string           `json:"status"`
	Result      *pipeline.Result `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	ProcessedAt time.Time        `json:"processed_at"`
}
