package analytics

import (
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/phi"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/pipeline"
)

// Processed builds the event for a finished document.
func Processed(res *pipeline.Result, origin string) ProcessingEvent {
	var degraded []string
	for name, s := range res.Summaries {
		if s.Degraded {
			degraded = append(degraded, name)
		}
	}
	sort.Strings(degraded)
	return ProcessingEvent{
		Type:           EventProcessed,
		DocumentID:     res.DocumentID,
		Origin:         origin,
		Redacted:       res.Redacted,
		EntityCount:    res.EntityCount,
		EntitiesByType: typeCounts(res.EntitiesByType),
		Degraded:       degraded,
		Timestamp:      time.Now().UTC(),
	}
}

// Redacted builds the event for a redact-only request.
func Redacted(red *pipeline.Redaction, origin string) ProcessingEvent {
	return ProcessingEvent{
		Type:           EventRedacted,
		Origin:         origin,
		Redacted:       true,
		EntityCount:    red.EntityCount,
		EntitiesByType: typeCounts(red.EntitiesByType),
		Timestamp:      time.Now().UTC(),
	}
}

// Failed builds the event for a document that could not be processed.
func Failed(documentID, origin string, err error) ProcessingEvent {
	return ProcessingEvent{
		Type:       EventFailed,
		DocumentID: documentID,
		Origin:     origin,
		Error:      err.Error(),
		Timestamp:  time.Now().UTC(),
	}
}

func typeCounts(m map[phi.Type]int) map[string]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}
