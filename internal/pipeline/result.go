package pipeline

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/phi"
)

// SummaryResult is one strategy's output. A degraded summary carries the
// fallback text and the error that caused it.
type SummaryResult struct {
	Strategy string `json:"strategy"`
	Text     string `json:"text"`
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result is the outcome of processing one document.
type Result struct {
	DocumentID     string                   `json:"document_id"`
	Source         string                   `json:"source,omitempty"`
	OriginalText   string                   `json:"original_text,omitempty"`
	RedactedText   string                   `json:"redacted_text,omitempty"`
	Redacted       bool                     `json:"redacted"`
	EntityCount    int                      `json:"entity_count"`
	EntitiesByType map[phi.Type]int         `json:"entities_by_type,omitempty"`
	Summaries      map[string]SummaryResult `json:"summaries"`
	KeyPoints      []string                 `json:"key_points,omitempty"`
	ProcessedAt    time.Time                `json:"processed_at"`
}

// Degraded reports whether any summary fell back.
func (r *Result) Degraded() bool {
	for _, s := range r.Summaries {
		if s.Degraded {
			return true
		}
	}
	return false
}

// WorkingText is the text the strategies summarized.
func (r *Result) WorkingText() string {
	if r.Redacted {
		return r.RedactedText
	}
	return r.OriginalText
}

// WithoutPHI returns a copy safe to hand to callers that may not see
// protected health information. Unredacted results lose their text fields.
func (r *Result) WithoutPHI() *Result {
	cp := *r
	cp.OriginalText = ""
	if !r.Redacted {
		cp.Summaries = map[string]SummaryResult{}
		cp.KeyPoints = nil
	}
	return &cp
}

// Redaction is the outcome of a redact-only call.
type Redaction struct {
	RedactedText   string           `json:"redacted_text"`
	EntityCount    int              `json:"entity_count"`
	EntitiesByType map[phi.Type]int `json:"entities_by_type"`
}

// Input is one document of a batch.
type Input struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Text       string `json:"text"`
	Redact     bool   `json:"redact"`
}

// BatchResult pairs an input with its result or failure.
type BatchResult struct {
	Input  Input
	Result *Result
	Err    error
}
