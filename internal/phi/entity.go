// Package phi defines the PHI entity model and the detectors that produce
// entities from clinical text. The tagging model itself lives outside this
// process; detectors are the in-process capability that reaches it.
package phi

import "context"

// Type is a PHI category.
type Type string

const (
	Person              Type = "PERSON"
	Date                Type = "DATE"
	Phone               Type = "PHONE"
	Email               Type = "EMAIL"
	Address             Type = "ADDRESS"
	ID                  Type = "ID"
	MedicalRecordNumber Type = "MEDICAL_RECORD_NUMBER"
	SSN                 Type = "SSN"
	InsuranceID         Type = "INSURANCE_ID"
)

// Labels is the label set requested from the tagging model.
var Labels = []Type{Person, Date, Phone, Email, Address, ID, MedicalRecordNumber, SSN, InsuranceID}

// LabelStrings returns Labels as plain strings.
func LabelStrings() []string {
	out := make([]string, len(Labels))
	for i, l := range Labels {
		out[i] = string(l)
	}
	return out
}

// Entity is one detected span. Start and End are byte offsets into the
// scanned text; Start == End means the detector did not locate the span.
type Entity struct {
	Text       string  `json:"text"`
	Type       Type    `json:"entity_type"`
	Confidence float64 `json:"confidence"`
	Start      int     `json:"start,omitempty"`
	End        int     `json:"end,omitempty"`
}

// Located reports whether the entity carries a usable span for text.
func (e Entity) Located(text string) bool {
	return e.End > e.Start && e.Start >= 0 && e.End <= len(text) && text[e.Start:e.End] == e.Text
}

// Detector finds PHI entities in text.
type Detector interface {
	Detect(ctx context.Context, text string, labels []Type) ([]Entity, error)
}

// CountByType tallies entities per category.
func CountByType(entities []Entity) map[Type]int {
	counts := make(map[Type]int)
	for _, e := range entities {
		counts[e.Type]++
	}
	return counts
}

// AboveThreshold drops entities below the confidence threshold.
func AboveThreshold(entities []Entity, threshold float64) []Entity {
	if threshold <= 0 {
		return entities
	}
	kept := entities[:0:0]
	for _, e := range entities {
		if e.Confidence >= threshold {
			kept = append(kept, e)
		}
	}
	return kept
}
