package apikey

import (
	"fmt"
	"strings"
)

// Role is the capability class of a key holder.
type Role string

const (
	// RoleClinician may receive unredacted output.
	RoleClinician Role = "clinician"
	// RoleFrontDesk always receives redacted output.
	RoleFrontDesk Role = "front_desk"
)

// MayViewPHI reports whether the role may see protected health
// information.
func (r Role) MayViewPHI() bool {
	return r == RoleClinician
}

// MustRedact combines a caller's request with the role's capability.
func (r Role) MustRedact(requested bool) bool {
	return requested || !r.MayViewPHI()
}

// ParseRole accepts the role names case-insensitively. Unknown names are
// an error so that a typo never grants PHI access.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleClinician:
		return RoleClinician, nil
	case RoleFrontDesk:
		return RoleFrontDesk, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}
