// Package document segments raw clinical text into indexed sentences.
// Segmentation splits on runs of sentence-terminal punctuation, trims each
// candidate, and drops the ones a strategy considers uninformative.
package document

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinInformativeLength is the trimmed length a sentence must exceed to be
// scored by the extractive strategies.
const MinInformativeLength = 10

var terminators = regexp.MustCompile(`[.!?]+`)

// Sentence is one candidate sentence. Index is its position in the filtered
// sequence and is the only key used to restore document order.
type Sentence struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// Filter decides whether a trimmed candidate becomes a Sentence.
type Filter func(trimmed string) bool

// NonEmpty keeps every candidate with content.
func NonEmpty(trimmed string) bool {
	return trimmed != ""
}

// Informative keeps candidates longer than MinInformativeLength characters.
func Informative(trimmed string) bool {
	return utf8.RuneCountInString(trimmed) > MinInformativeLength
}

// Document owns the raw text and the sentences derived from it. Raw is never
// modified after construction.
type Document struct {
	Raw       string
	Sentences []Sentence
}

// New segments raw with the given filter.
func New(raw string, keep Filter) *Document {
	return &Document{
		Raw:       raw,
		Sentences: Segment(raw, keep),
	}
}

// Len returns the number of retained sentences.
func (d *Document) Len() int {
	return len(d.Sentences)
}

// Texts returns the sentence texts in document order.
func (d *Document) Texts() []string {
	out := make([]string, len(d.Sentences))
	for i, s := range d.Sentences {
		out[i] = s.Text
	}
	return out
}

// Segment splits text on runs of '.', '!' and '?', discarding the
// delimiters, and returns the trimmed candidates that pass keep.
func Segment(text string, keep Filter) []Sentence {
	if keep == nil {
		keep = NonEmpty
	}
	parts := terminators.Split(text, -1)
	sentences := make([]Sentence, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if !keep(trimmed) {
			continue
		}
		sentences = append(sentences, Sentence{
			Index:     len(sentences),
			Text:      trimmed,
			WordCount: WordCount(trimmed),
		})
	}
	return sentences
}

// WordCount counts whitespace-delimited words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
