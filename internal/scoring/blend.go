package scoring

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
)

// Vector holds one sentence's four signals.
type Vector struct {
	Relevance float64 `json:"relevance"`
	Position  float64 `json:"position"`
	Keyword   float64 `json:"keyword"`
	Length    float64 `json:"length"`
}

// Weights is a linear blend of the four signals.
type Weights struct {
	Relevance float64
	Position  float64
	Keyword   float64
	Length    float64
}

// ClassicalWeights is the fixed blend of the classical strategy.
var ClassicalWeights = Weights{Relevance: 0.4, Position: 0.2, Keyword: 0.3, Length: 0.1}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Relevance + w.Position + w.Keyword + w.Length
}

// Validate requires the weights to sum to 1.
func (w Weights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("blend weights must sum to 1.0, got %v", w.Sum())
	}
	return nil
}

// Apply computes the weighted importance of v.
func (w Weights) Apply(v Vector) float64 {
	return w.Relevance*v.Relevance + w.Position*v.Position + w.Keyword*v.Keyword + w.Length*v.Length
}

// ClassicalVectors computes the normalized signal vectors for every
// sentence.
func ClassicalVectors(sentences []document.Sentence, vocabulary []string, tw TermWeighting) []Vector {
	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}
	relevance := Relevance(texts, tw)
	position := Position(sentences)
	keyword := Normalize(Keyword(sentences, vocabulary))
	length := Length(sentences)

	vectors := make([]Vector, len(sentences))
	for i := range sentences {
		vectors[i] = Vector{
			Relevance: relevance[i],
			Position:  position[i],
			Keyword:   keyword[i],
			Length:    length[i],
		}
	}
	return vectors
}

// Classical blends the classical vectors with w.
func Classical(sentences []document.Sentence, vocabulary []string, tw TermWeighting, w Weights) []float64 {
	vectors := ClassicalVectors(sentences, vocabulary, tw)
	importance := make([]float64, len(vectors))
	for i, v := range vectors {
		importance[i] = w.Apply(v)
	}
	return importance
}

// Additive is the naive importance: raw keyword score plus the position and
// length bonuses. It carries no relevance term.
func Additive(sentences []document.Sentence, vocabulary []string) []float64 {
	n := len(sentences)
	importance := make([]float64, n)
	for i, s := range sentences {
		importance[i] = KeywordBonus(s.Text, vocabulary) + PositionBonus(i, n) + LengthBonus(s.WordCount)
	}
	return importance
}
