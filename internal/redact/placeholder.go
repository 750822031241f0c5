// Package redact rewrites clinical text so that detected PHI spans are
// replaced with category placeholders.
package redact

import "github.com/Adithya-Monish-Kumar-K/mediscrub/internal/phi"

// DefaultPlaceholder replaces entities of an unrecognized type.
const DefaultPlaceholder = "[REDACTED]"

var placeholders = map[phi.Type]string{
	phi.Person:              "[PERSON]",
	phi.Date:                "[DATE]",
	phi.Phone:               "[PHONE]",
	phi.Email:               "[EMAIL]",
	phi.Address:             "[ADDRESS]",
	phi.ID:                  "[ID]",
	phi.MedicalRecordNumber: "[MRN]",
	phi.SSN:                 "[SSN]",
	phi.InsuranceID:         "[INSURANCE_ID]",
}

// Placeholder returns the marker for typ.
func Placeholder(typ phi.Type) string {
	if p, ok := placeholders[typ]; ok {
		return p
	}
	return DefaultPlaceholder
}
