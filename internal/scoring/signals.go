// Package scoring implements the per-sentence signals (relevance, position,
// keyword, length) and the blends that turn them into one importance value.
//
// Two families exist. The classical signals are assigned values normalized
// to [0,1] so they can be linearly weighted. The additive signals are small
// bonuses and penalties summed into a raw score where only rank matters.
package scoring

import (
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
)

// Position assigns the classical position bucket: first 1.0, last 0.8,
// first 30% 0.6, up to 70% 0.3, the rest 0.2.
func Position(sentences []document.Sentence) []float64 {
	n := len(sentences)
	scores := make([]float64, n)
	for i := range sentences {
		switch {
		case i == 0:
			scores[i] = 1.0
		case i == n-1:
			scores[i] = 0.8
		case float64(i) < float64(n)*0.3:
			scores[i] = 0.6
		case float64(i) < float64(n)*0.7:
			scores[i] = 0.3
		default:
			scores[i] = 0.2
		}
	}
	return scores
}

// PositionBonus is the additive position signal: +1.5 first, +1.0 last,
// +0.5 in the first 30%, nothing otherwise.
func PositionBonus(i, n int) float64 {
	switch {
	case i == 0:
		return 1.5
	case i == n-1:
		return 1.0
	case float64(i) < float64(n)*0.3:
		return 0.5
	}
	return 0
}

// Keyword returns the raw keyword signal, count × 2.0, for every sentence.
func Keyword(sentences []document.Sentence, vocabulary []string) []float64 {
	scores := make([]float64, len(sentences))
	for i, s := range sentences {
		scores[i] = KeywordBonus(s.Text, vocabulary)
	}
	return scores
}

// KeywordBonus is the raw keyword score of a single sentence.
func KeywordBonus(text string, vocabulary []string) float64 {
	return float64(KeywordCount(text, vocabulary)) * keywordWeight
}

// Length assigns the classical length band by word count: 10-25 → 1.0,
// 5-9 → 0.7, 26-35 → 0.5, anything else 0.2.
func Length(sentences []document.Sentence) []float64 {
	scores := make([]float64, len(sentences))
	for i, s := range sentences {
		w := s.WordCount
		switch {
		case w >= 10 && w <= 25:
			scores[i] = 1.0
		case w >= 5 && w < 10:
			scores[i] = 0.7
		case w > 25 && w <= 35:
			scores[i] = 0.5
		default:
			scores[i] = 0.2
		}
	}
	return scores
}

// LengthBonus is the additive length signal: +0.5 for 10-25 words, -0.5
// above 25, unchanged below 10.
func LengthBonus(words int) float64 {
	switch {
	case words >= 10 && words <= 25:
		return 0.5
	case words > 25:
		return -0.5
	}
	return 0
}

// Normalize divides every value by the maximum, in place. When the maximum
// is not positive the vector is left untouched.
func Normalize(scores []float64) []float64 {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if max <= 0 {
		return scores
	}
	for i := range scores {
		scores[i] /= max
	}
	return scores
}
