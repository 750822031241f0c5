// Package strategy holds the interchangeable summarization strategies. Each
// strategy maps one (already redacted) text to a summary and shares no
// mutable state across calls.
package strategy

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/selector"
)

// Strategy names, as they appear in results and metrics.
const (
	NameNaive      = "naive"
	NameClassical  = "classical_ml"
	NameGenerative = "deep_learning"
)

// DefaultMaxSentences is the summary size K.
const DefaultMaxSentences = 5

// Names lists the strategies in the order the pipeline runs them.
var Names = []string{NameNaive, NameClassical, NameGenerative}

// Strategy summarizes text.
type Strategy interface {
	Name() string
	Summarize(ctx context.Context, text string) (string, error)
}

// extractive runs the segment, score, select flow shared by the naive and
// classical strategies. Documents with no more than k retained sentences
// come back unchanged.
func extractive(text string, k int, score func([]document.Sentence) []float64) string {
	doc := document.New(text, document.Informative)
	if doc.Len() <= k {
		return text
	}
	return selector.Join(selector.Top(doc.Sentences, score(doc.Sentences), k))
}

func orDefault(k int) int {
	if k <= 0 {
		return DefaultMaxSentences
	}
	return k
}
