package scoring

import (
	"math"
	"sort"
)

// TermWeighting configures the relevance signal. Each sentence is one
// document of the corpus.
type TermWeighting struct {
	// MaxTerms caps the vocabulary to the most frequent terms.
	MaxTerms int
	// MinDocs drops terms that occur in fewer sentences.
	MinDocs int
	// MaxDocRatio drops terms that occur in more than this share of sentences.
	MaxDocRatio float64
}

// DefaultTermWeighting is the relevance configuration of the classical
// strategy.
func DefaultTermWeighting() TermWeighting {
	return TermWeighting{MaxTerms: 1000, MinDocs: 2, MaxDocRatio: 0.8}
}

// KeyPointTermWeighting keeps every term that occurs at all, capped at 500.
func KeyPointTermWeighting() TermWeighting {
	return TermWeighting{MaxTerms: 500, MinDocs: 1, MaxDocRatio: 1.0}
}

type termStat struct {
	term string
	df   int
	tf   int
}

// Relevance scores each sentence by the mean TF-IDF weight of its row over
// the retained vocabulary, then normalizes by the maximum. IDF is smoothed,
// ln((1+n)/(1+df))+1, and each row is L2-normalized. When no term survives
// pruning every score is 0.
func Relevance(texts []string, tw TermWeighting) []float64 {
	n := len(texts)
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}

	counts := make([]map[string]int, n)
	stats := make(map[string]*termStat)
	for i, text := range texts {
		counts[i] = make(map[string]int)
		for _, term := range terms(tokenize(text)) {
			counts[i][term]++
		}
		for term, c := range counts[i] {
			st, ok := stats[term]
			if !ok {
				st = &termStat{term: term}
				stats[term] = st
			}
			st.df++
			st.tf += c
		}
	}

	vocab := pruneVocabulary(stats, n, tw)
	if len(vocab) == 0 {
		return scores
	}
	idf := make(map[string]float64, len(vocab))
	for _, st := range vocab {
		idf[st.term] = math.Log(float64(1+n)/float64(1+st.df)) + 1
	}

	for i := range texts {
		var sum, sumSq float64
		for term, c := range counts[i] {
			w, ok := idf[term]
			if !ok {
				continue
			}
			v := float64(c) * w
			sum += v
			sumSq += v * v
		}
		if sumSq == 0 {
			continue
		}
		scores[i] = sum / math.Sqrt(sumSq) / float64(len(vocab))
	}
	return Normalize(scores)
}

func pruneVocabulary(stats map[string]*termStat, n int, tw TermWeighting) []*termStat {
	maxDocs := tw.MaxDocRatio * float64(n)
	if tw.MaxDocRatio <= 0 {
		maxDocs = float64(n)
	}
	kept := make([]*termStat, 0, len(stats))
	for _, st := range stats {
		if st.df < tw.MinDocs || float64(st.df) > maxDocs {
			continue
		}
		kept = append(kept, st)
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].tf != kept[j].tf {
			return kept[i].tf > kept[j].tf
		}
		return kept[i].term < kept[j].term
	})
	if tw.MaxTerms > 0 && len(kept) > tw.MaxTerms {
		kept = kept[:tw.MaxTerms]
	}
	return kept
}
