package evidence

import (
	"encoding/json"
	"fmt"
)

// Claims is the caller-supplied attestation object resolving rules that
// require human judgment. Each group holds boolean attestation fields
// (`*_assessed`, `*_basis_recorded`, `*_scope_declared`).
//
// Claims only ever upgrade a manual_needed verdict to pass; they never
// override a proven not_applicable result.
type Claims struct {
	TechnologySupport map[string]bool `json:"technology_support,omitempty"`
	WCAG20            map[string]bool `json:"wcag20,omitempty"`
	Section508        map[string]bool `json:"section508,omitempty"`
}

// Group returns the named attestation group, or nil if absent.
func (c *Claims) Group(name string) map[string]bool {
	if c == nil {
		return nil
	}
	switch name {
	case "technology_support":
		return c.TechnologySupport
	case "wcag20":
		return c.WCAG20
	case "section508":
		return c.Section508
	}
	return nil
}

// AllTrue reports whether every named field in the group is present and
// true. Partial or absent evidence is not sufficient.
func (c *Claims) AllTrue(group string, fields ...string) bool {
	g := c.Group(group)
	if g == nil || len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !g[f] {
			return false
		}
	}
	return true
}

// ParseClaims decodes a claims attestation document.
func ParseClaims(data []byte) (*Claims, error) {
	var c Claims
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	return &c, nil
}
