package strategy

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/scoring"
)

// Naive ranks sentences by an additive score of clinical keywords,
// position and length.
type Naive struct {
	k        int
	keywords []string
}

// NewNaive creates a naive strategy selecting k sentences.
func NewNaive(k int) *Naive {
	return &Naive{k: orDefault(k), keywords: scoring.ClinicalKeywords}
}

func (n *Naive) Name() string { return NameNaive }

func (n *Naive) Summarize(_ context.Context, text string) (string, error) {
	return extractive(text, n.k, func(sentences []document.Sentence) []float64 {
		return scoring.Additive(sentences, n.keywords)
	}), nil
}
