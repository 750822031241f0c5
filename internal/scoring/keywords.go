package scoring

import "strings"

// ClinicalKeywords is the fixed vocabulary the keyword signal counts. It
// spans diagnosis, treatment and administrative concepts.
var ClinicalKeywords = []string{
	"diagnosis", "treatment", "medication", "symptoms", "patient",
	"doctor", "hospital", "medical", "condition", "disease",
	"prescription", "dosage", "blood pressure", "heart rate",
	"temperature", "lab results", "test results", "procedure",
	"surgery", "therapy", "recovery", "follow-up", "appointment",
}

// keywordWeight is what each matched vocabulary term contributes.
const keywordWeight = 2.0

// KeywordCount returns how many distinct vocabulary terms occur in text,
// case-insensitively. A term counts once no matter how often it repeats.
func KeywordCount(text string, vocabulary []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range vocabulary {
		if strings.Contains(lower, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

// HasKeyword reports whether text contains any vocabulary term.
func HasKeyword(text string, vocabulary []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range vocabulary {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
