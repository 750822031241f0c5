package strategy

import (
	"context"
	"errors"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/generative"
	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
)

// DefaultGenerativeMinWords is the word count at or below which the
// generative strategy returns its input without calling the model.
const DefaultGenerativeMinWords = 100

// Generative delegates long documents to an abstractive model.
type Generative struct {
	gen      generative.Generator
	minWords int
	params   generative.Params
}

// NewGenerative creates the delegate. With a nil generator every long
// document fails with ErrModelUnavailable.
func NewGenerative(gen generative.Generator, minWords int) *Generative {
	if minWords <= 0 {
		minWords = DefaultGenerativeMinWords
	}
	return &Generative{gen: gen, minWords: minWords, params: generative.DefaultParams()}
}

func (g *Generative) Name() string { return NameGenerative }

// Summarize returns short inputs verbatim and otherwise the model's output
// verbatim. Errors are the generator's; the caller decides on fallback.
func (g *Generative) Summarize(ctx context.Context, text string) (string, error) {
	if document.WordCount(text) <= g.minWords {
		return text, nil
	}
	if g.gen == nil {
		return "", apperrors.ModelUnavailable(NameGenerative, errors.New("no generator configured"))
	}
	return g.gen.Generate(ctx, text, g.params)
}
