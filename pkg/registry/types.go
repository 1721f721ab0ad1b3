// Package registry loads and validates the three versioned rule
// registries (general audit, WCAG 2.0 AA, Section 508 HTML) that drive
// verification. Registries are immutable after load and cached once per
// process; a structurally invalid registry is the only fatal condition in
// the engine.
package registry

// EntryKind discriminates registry entry variants.
type EntryKind string

const (
	KindRule                   EntryKind = "rule"
	KindSuccessCriterion       EntryKind = "success_criterion"
	KindConformanceRequirement EntryKind = "conformance_requirement"
)

// VerificationMode says how an entry can be verified.
type VerificationMode string

const (
	ModeMachine VerificationMode = "machine"
	ModeHybrid  VerificationMode = "hybrid"
	ModeManual  VerificationMode = "manual"
)

// GateLevel is a gating severity for a rule or audit.
type GateLevel string

const (
	GateOff   GateLevel = "off"
	GateWarn  GateLevel = "warn"
	GateError GateLevel = "error"
)

// Applicability says whether an entry always applies or only under a
// registry-supplied condition.
type Applicability string

const (
	ApplicabilityAlways      Applicability = "always"
	ApplicabilityConditional Applicability = "conditional"
)

// MappingStatus is the implementation status of a rule mapping.
type MappingStatus string

const (
	StatusImplemented MappingStatus = "implemented"
	StatusPlanned     MappingStatus = "planned"
	StatusSupporting  MappingStatus = "supporting"
)

// RuleMapping links a registry entry to a concrete verifier rule or PMR
// audit.
type RuleMapping struct {
	System   string        `json:"system"` // "a11y_verifier" or "pmr"
	ID       string        `json:"id"`
	Status   MappingStatus `json:"status"`
	Coverage string        `json:"coverage,omitempty"` // "partial" or "supporting"
}

// Entry is one registry entry: a rule, a success criterion, or a
// conformance requirement.
type Entry struct {
	ID               string           `json:"id"`
	Kind             EntryKind        `json:"kind"`
	Title            string           `json:"title,omitempty"`
	Level            string           `json:"level,omitempty"`     // "A" / "AA" for success criteria
	Principle        string           `json:"principle,omitempty"` // WCAG principle or audit category
	Applicability    Applicability    `json:"applicability"`
	Condition        string           `json:"condition,omitempty"` // CEL, when conditional
	VerificationMode VerificationMode `json:"verification_mode"`
	DefaultGateLevel GateLevel        `json:"default_gate_level"`
	EvidenceReqs     []string         `json:"evidence_requirements,omitempty"`
	RuleMappings     []RuleMapping    `json:"rule_mapping,omitempty"`
}

// MappedTo reports whether the entry has any mapping into system.
func (e *Entry) MappedTo(system string) bool {
	for _, m := range e.RuleMappings {
		if m.System == system {
			return true
		}
	}
	return false
}

// ImplementedRuleIDs returns the ids of implemented mappings into system.
func (e *Entry) ImplementedRuleIDs(system string) []string {
	var ids []string
	for _, m := range e.RuleMappings {
		if m.System == system && m.Status == StatusImplemented {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Scope carries registry-declared entry counts. Section 508 declares
// "specific_entries_total" and "inherited_wcag_entries_total" here.
type Scope struct {
	Counts map[string]int `json:"counts"`
}

// EvidenceRequirement describes one entry in the evidence requirement
// catalog: either the claim fields resolving a manual rule, or a phrase
// list consumed by a heuristic check.
type EvidenceRequirement struct {
	Description string   `json:"description,omitempty"`
	Group       string   `json:"group,omitempty"`  // claim group, e.g. "wcag20"
	Fields      []string `json:"fields,omitempty"` // required all-true booleans
	Phrases     []string `json:"phrases,omitempty"`
}

// ProfileOverride retunes one entry for a profile.
type ProfileOverride struct {
	TargetID   string             `json:"target_id"`
	GateLevel  GateLevel          `json:"gate_level,omitempty"`
	MustPass   *bool              `json:"must_pass,omitempty"`
	Thresholds map[string]float64 `json:"thresholds,omitempty"`
}

// Profile selects default mode and per-entry overrides.
type Profile struct {
	DefaultMode string            `json:"default_mode"`
	Overrides   []ProfileOverride `json:"overrides,omitempty"`
}

// Category is one PMR scoring category. Weights across a registry sum to
// exactly 100.
type Category struct {
	ID     string `json:"id"`
	Weight int    `json:"weight"`
}

// Registry is one versioned rule registry, immutable after load.
type Registry struct {
	SchemaID string                         `json:"schema_id"`
	Version  string                         `json:"version"`
	Scope    Scope                          `json:"scope"`
	Entries  []Entry                        `json:"entries"`
	Catalog  map[string]EvidenceRequirement `json:"evidence_requirement_catalog,omitempty"`
	Profiles map[string]Profile             `json:"profiles,omitempty"`

	// Audit registry only.
	Categories       []Category         `json:"categories,omitempty"`
	ScoreMultipliers map[string]float64 `json:"score_multipliers,omitempty"`
}

// Entry returns the entry with the given id.
func (r *Registry) Entry(id string) (*Entry, bool) {
	for i := range r.Entries {
		if r.Entries[i].ID == id {
			return &r.Entries[i], true
		}
	}
	return nil, false
}

// EntryForRule returns the first entry mapping the given rule id in system.
func (r *Registry) EntryForRule(system, ruleID string) (*Entry, bool) {
	for i := range r.Entries {
		for _, m := range r.Entries[i].RuleMappings {
			if m.System == system && m.ID == ruleID {
				return &r.Entries[i], true
			}
		}
	}
	return nil, false
}

// Profile returns the named profile, falling back to "standard".
func (r *Registry) Profile(name string) (Profile, bool) {
	if p, ok := r.Profiles[name]; ok {
		return p, true
	}
	p, ok := r.Profiles["standard"]
	return p, ok
}

// Phrases returns a phrase list from the evidence requirement catalog.
func (r *Registry) Phrases(catalogID string) []string {
	if req, ok := r.Catalog[catalogID]; ok {
		return req.Phrases
	}
	return nil
}
