package redact

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/internal/phi"
)

func TestPlaceholder(t *testing.T) {
	tests := []struct {
		typ  phi.Type
		want string
	}{
		{phi.Person, "[PERSON]"},
		{phi.MedicalRecordNumber, "[MRN]"},
		{phi.InsuranceID, "[INSURANCE_ID]"},
		{phi.Type("ORGANIZATION"), "[REDACTED]"},
	}
	for _, tt := range tests {
		if got := Placeholder(tt.typ); got != tt.want {
			t.Errorf("Placeholder(%s) = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestRedactAllOccurrences(t *testing.T) {
	entities := []phi.Entity{{Text: "Smith", Type: phi.Person}}
	want := "Dr. [PERSON] saw [PERSON]'s patient."
	for _, mode := range []Mode{ModeSpan, ModeText} {
		t.Run(string(mode), func(t *testing.T) {
			if got := New(mode).Redact("Dr. Smith saw Smith's patient.", entities); got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

func syntheticDocument() (string, []phi.Entity) {
	values := map[phi.Type]string{
		phi.Person:              "Maria Gonzalez",
		phi.Date:                "March 3, 2024",
		phi.Phone:               "555-867-5309",
		phi.Email:               "maria@example.org",
		phi.Address:             "12 Elm Street",
		phi.ID:                  "DL-99812",
		phi.MedicalRecordNumber: "MRN-0045123",
		phi.SSN:                 "078-05-1120",
		phi.InsuranceID:         "BCX44120987",
	}
	var b strings.Builder
	var entities []phi.Entity
	for _, typ := range phi.Labels {
		b.WriteString("Field ")
		b.WriteString(string(typ))
		b.WriteString(" is ")
		start := b.Len()
		b.WriteString(values[typ])
		entities = append(entities, phi.Entity{Text: values[typ], Type: typ, Confidence: 0.9, Start: start, End: b.Len()})
		b.WriteString(". ")
	}
	return b.String(), entities
}

func TestRedactRemovesEveryEntity(t *testing.T) {
	text, entities := syntheticDocument()
	for _, mode := range []Mode{ModeSpan, ModeText} {
		t.Run(string(mode), func(t *testing.T) {
			got := New(mode).Redact(text, entities)
			for _, e := range entities {
				if strings.Contains(got, e.Text) {
					t.Errorf("%s value %q survived redaction", e.Type, e.Text)
				}
				if !strings.Contains(got, Placeholder(e.Type)) {
					t.Errorf("missing placeholder %s", Placeholder(e.Type))
				}
			}
		})
	}
}

func TestRedactIdempotent(t *testing.T) {
	text, entities := syntheticDocument()
	for _, mode := range []Mode{ModeSpan, ModeText} {
		r := New(mode)
		once := r.Redact(text, entities)
		if twice := r.Redact(once, entities); twice != once {
			t.Errorf("%s: second pass changed the text:\n%q\n%q", mode, once, twice)
		}
	}
}

func TestSpanModeLeavesPlaceholdersAlone(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		entities []phi.Entity
		want     string
	}{
		{
			name:     "entity text equals placeholder label",
			text:     "Referred by PERSON.",
			entities: []phi.Entity{{Text: "PERSON", Type: phi.Person}},
			want:     "Referred by [PERSON].",
		},
		{
			name:     "entity text inside another placeholder",
			text:     "ID 4471, see ID desk.",
			entities: []phi.Entity{{Text: "ID", Type: phi.ID}, {Text: "4471", Type: phi.MedicalRecordNumber}},
			want:     "[ID] [MRN], see [ID] desk.",
		},
		{
			name:     "default placeholder",
			text:     "Code REDACTED on file.",
			entities: []phi.Entity{{Text: "REDACTED", Type: phi.Type("UNKNOWN")}},
			want:     "Code [REDACTED] on file.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := BySpan(tt.text, tt.entities)
			if once != tt.want {
				t.Fatalf("first pass: got %q, want %q", once, tt.want)
			}
			if twice := BySpan(once, tt.entities); twice != once {
				t.Errorf("second pass: got %q, want %q", twice, once)
			}
		})
	}
}

func TestRedactMissingEntityIsNoOp(t *testing.T) {
	text := "Patient stable."
	entities := []phi.Entity{{Text: "Jones", Type: phi.Person}, {Text: "", Type: phi.Date}}
	for _, mode := range []Mode{ModeSpan, ModeText} {
		if got := New(mode).Redact(text, entities); got != text {
			t.Errorf("%s: got %q, want unchanged", mode, got)
		}
	}
}

func TestSpanModeResolvesOverlaps(t *testing.T) {
	text := "Seen by John Smith and Smith."
	entities := []phi.Entity{
		{Text: "Smith", Type: phi.Person},
		{Text: "John Smith", Type: phi.ID},
	}
	got := BySpan(text, entities)
	want := "Seen by [ID] and [PERSON]."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTextModeLastWriterWins(t *testing.T) {
	text := "Seen by John Smith and Smith."
	entities := []phi.Entity{
		{Text: "John Smith", Type: phi.ID},
		{Text: "Smith", Type: phi.Person},
	}
	// "Smith" first occurs after "John Smith", so it is replaced first and
	// the longer entity no longer matches.
	got := ReplaceAll(text, entities)
	want := "Seen by John [PERSON] and [PERSON]."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeSpan {
		t.Errorf("empty mode: %v %v", m, err)
	}
	if _, err := ParseMode("offset"); err == nil {
		t.Error("expected unknown mode to fail")
	}
}
