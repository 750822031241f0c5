package redact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/phi"
)

// Mode selects the substitution algorithm.
type Mode string

const (
	// ModeSpan locates every occurrence of each entity in the original text,
	// resolves overlaps, and rebuilds the output from untouched ranges and
	// placeholders. Placeholders, including those already present in the
	// input, are never re-scanned.
	ModeSpan Mode = "span"
	// ModeText replaces all occurrences of each entity's text in the
	// progressively rewritten string, rightmost first occurrence first.
	// Later replacements see earlier placeholders; last writer wins.
	ModeText Mode = "text"
)

// ParseMode validates a configured mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSpan, ModeText:
		return Mode(s), nil
	case "":
		return ModeSpan, nil
	}
	return "", fmt.Errorf("unknown redaction mode %q", s)
}

// Redactor applies one Mode.
type Redactor struct {
	mode Mode
}

// New returns a Redactor for mode.
func New(mode Mode) *Redactor {
	if mode == "" {
		mode = ModeSpan
	}
	return &Redactor{mode: mode}
}

// Mode returns the configured mode.
func (r *Redactor) Mode() Mode {
	return r.mode
}

// Redact rewrites text. Entities whose text is empty or absent from text
// are skipped silently.
func (r *Redactor) Redact(text string, entities []phi.Entity) string {
	if r.mode == ModeText {
		return ReplaceAll(text, entities)
	}
	return BySpan(text, entities)
}

// ReplaceAll orders entities by the first index of their text, descending,
// then replaces every occurrence of each in the mutated string.
func ReplaceAll(text string, entities []phi.Entity) string {
	ordered := make([]phi.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Text != "" {
			ordered = append(ordered, e)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return strings.Index(text, ordered[i].Text) > strings.Index(text, ordered[j].Text)
	})
	out := text
	for _, e := range ordered {
		out = strings.ReplaceAll(out, e.Text, Placeholder(e.Type))
	}
	return out
}

type span struct {
	start, end  int
	placeholder string
}

// BySpan locates every occurrence of each entity's text in the original
// string, plus the entity's own offsets when they match, keeps the earliest
// and then longest of any overlapping spans, and substitutes from the last
// span backwards so earlier offsets stay valid.
func BySpan(text string, entities []phi.Entity) string {
	spans := locate(text, entities)
	if len(spans) == 0 {
		return text
	}
	out := text
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		out = out[:s.start] + s.placeholder + out[s.end:]
	}
	return out
}

// locate returns the non-overlapping spans BySpan substitutes, in
// ascending start order. Occurrences touching a placeholder already in
// text are skipped.
func locate(text string, entities []phi.Entity) []span {
	masked := existingPlaceholders(text)
	var candidates []span
	add := func(start, end int, ph string) {
		for _, m := range masked {
			if start < m.end && m.start < end {
				return
			}
		}
		candidates = append(candidates, span{start, end, ph})
	}
	for _, e := range entities {
		if e.Text == "" {
			continue
		}
		ph := Placeholder(e.Type)
		if e.Located(text) {
			add(e.Start, e.End, ph)
		}
		for from := 0; from < len(text); {
			i := strings.Index(text[from:], e.Text)
			if i < 0 {
				break
			}
			start := from + i
			add(start, start+len(e.Text), ph)
			from = start + len(e.Text)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].start != candidates[j].start {
			return candidates[i].start < candidates[j].start
		}
		return candidates[i].end > candidates[j].end
	})
	spans := candidates[:0]
	end := -1
	for _, c := range candidates {
		if c.start < end {
			continue
		}
		spans = append(spans, c)
		end = c.end
	}
	return spans
}

// existingPlaceholders returns the ranges of text already occupied by a
// redaction placeholder.
func existingPlaceholders(text string) []span {
	if !strings.Contains(text, "[") {
		return nil
	}
	var ranges []span
	mark := func(ph string) {
		for from := 0; from < len(text); {
			i := strings.Index(text[from:], ph)
			if i < 0 {
				return
			}
			start := from + i
			ranges = append(ranges, span{start: start, end: start + len(ph)})
			from = start + len(ph)
		}
	}
	for _, ph := range placeholders {
		mark(ph)
	}
	mark(DefaultPlaceholder)
	return ranges
}
