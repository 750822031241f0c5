package strategy

import (
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/scoring"
	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/selector"
)

// MaxKeyPoints is the default number of key points returned.
const MaxKeyPoints = 5

// NaiveKeyPoints returns the first max non-empty sentences that mention a
// clinical keyword.
func NaiveKeyPoints(text string, max int) []string {
	if max <= 0 {
		max = MaxKeyPoints
	}
	var points []string
	for _, s := range document.Segment(text, document.NonEmpty) {
		if !scoring.HasKeyword(s.Text, scoring.ClinicalKeywords) {
			continue
		}
		points = append(points, s.Text)
		if len(points) == max {
			break
		}
	}
	return points
}

// ClassicalKeyPoints returns the max most important sentences under the
// classical blend, in document order. Term weighting keeps fewer features
// and no document-frequency filter.
func ClassicalKeyPoints(text string, max int) []string {
	if max <= 0 {
		max = MaxKeyPoints
	}
	sentences := document.Segment(text, document.Informative)
	importance := scoring.Classical(sentences, scoring.ClinicalKeywords, scoring.KeyPointTermWeighting(), scoring.ClassicalWeights)
	top := selector.Top(sentences, importance, max)
	points := make([]string, len(top))
	for i, s := range top {
		points[i] = s.Text
	}
	return points
}
