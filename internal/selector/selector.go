// Package selector picks the top-K sentences by importance and restores
// document order before joining them into a summary.
package selector

import (
	"container/heap"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/document"
)

// Scored pairs a sentence with its importance.
type Scored struct {
	Sentence document.Sentence `json:"sentence"`
	Score    float64           `json:"score"`
}

// Top returns the min(k, len) highest-scoring sentences in ascending index
// order. Equal scores prefer the earlier sentence.
func Top(sentences []document.Sentence, importance []float64, k int) []document.Sentence {
	if k <= 0 || len(sentences) == 0 {
		return nil
	}
	h := &scoredHeap{}
	heap.Init(h)
	for i, s := range sentences {
		heap.Push(h, Scored{Sentence: s, Score: importance[i]})
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	selected := make([]document.Sentence, 0, h.Len())
	for _, sc := range *h {
		selected = append(selected, sc.Sentence)
	}
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Index < selected[j].Index
	})
	return selected
}

// Ranked returns every sentence with its score, best first.
func Ranked(sentences []document.Sentence, importance []float64) []Scored {
	out := make([]Scored, len(sentences))
	for i, s := range sentences {
		out[i] = Scored{Sentence: s, Score: importance[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Sentence.Index < out[j].Sentence.Index
	})
	return out
}

// Join concatenates sentence texts with single spaces.
func Join(sentences []document.Sentence) string {
	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}
	return strings.Join(texts, " ")
}

// scoredHeap is a min-heap whose root is the weakest candidate: lowest
// score, and among equal scores the latest sentence.
type scoredHeap []Scored

func (h scoredHeap) Len() int { return len(h) }

func (h scoredHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Sentence.Index > h[j].Sentence.Index
}

func (h scoredHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredHeap) Push(x any) {
	*h = append(*h, x.(Scored))
}

func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
