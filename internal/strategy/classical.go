package strategy

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/scoring"
)

// Classical blends normalized relevance, position, keyword and length
// signals with fixed weights.
type Classical struct {
	k        int
	weights  scoring.Weights
	terms    scoring.TermWeighting
	keywords []string
}

// NewClassical creates a classical strategy. The weights must sum to 1.
func NewClassical(k int, weights scoring.Weights, terms scoring.TermWeighting) (*Classical, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("classical strategy: %w", err)
	}
	return &Classical{
		k:        orDefault(k),
		weights:  weights,
		terms:    terms,
		keywords: scoring.ClinicalKeywords,
	}, nil
}

// MustClassical is NewClassical with the standard weights and term
// weighting. It panics only if those constants are broken.
func MustClassical(k int) *Classical {
	c, err := NewClassical(k, scoring.ClassicalWeights, scoring.DefaultTermWeighting())
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Classical) Name() string { return NameClassical }

func (c *Classical) Summarize(_ context.Context, text string) (string, error) {
	return extractive(text, c.k, c.importance), nil
}

func (c *Classical) importance(sentences []document.Sentence) []float64 {
	return scoring.Classical(sentences, c.keywords, c.terms, c.weights)
}
