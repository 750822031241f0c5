package phi

import (
	"context"
	"regexp"
	"sort"
)

// PatternDetector finds structured PHI with regular expressions. It serves
// as the offline detector for development and the batch tool; it cannot
// find names or free-form addresses.
type PatternDetector struct {
	patterns []typedPattern
}

type typedPattern struct {
	typ Type
	re  *regexp.Regexp
}

// NewPatternDetector builds the default pattern set.
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{patterns: []typedPattern{
		{Email, regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
		{SSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		{Phone, regexp.MustCompile(`(?:\(\d{3}\)\s?|\b\d{3}[-.\s])\d{3}[-.\s]\d{4}\b`)},
		{MedicalRecordNumber, regexp.MustCompile(`(?i)\bMRN[:#\s]*\d{5,10}\b`)},
		{InsuranceID, regexp.MustCompile(`(?i)\b(?:policy|member|insurance)\s*(?:id|no\.?|number)?[:#\s]*[A-Z]{2,4}\d{6,12}\b`)},
		{Date, regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b`)},
	}}
}

func (d *PatternDetector) Detect(ctx context.Context, text string, labels []Type) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[Type]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}
	var entities []Entity
	taken := make([]bool, len(text))
	for _, p := range d.patterns {
		if !want[p.typ] {
			continue
		}
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if overlaps(taken, loc[0], loc[1]) {
				continue
			}
			for i := loc[0]; i < loc[1]; i++ {
				taken[i] = true
			}
			entities = append(entities, Entity{
				Text:       text[loc[0]:loc[1]],
				Type:       p.typ,
				Confidence: 1.0,
				Start:      loc[0],
				End:        loc[1],
			})
		}
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].Start < entities[j].Start })
	return entities, nil
}

func overlaps(taken []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if taken[i] {
			return true
		}
	}
	return false
}
