package registry

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/cel-go/cel"
)

//go:embed registries/*.json
var embedded embed.FS

// Registry names, also the basenames of the canonical files.
const (
	AuditName = "audit"
	WCAGName  = "wcag20aa"
	S508Name  = "section508"
)

// Expected schema ids, checked during structural validation.
const (
	AuditSchemaID = "fullbleed.registry.audit.v1"
	WCAGSchemaID  = "fullbleed.registry.wcag20aa.v1"
	S508SchemaID  = "fullbleed.registry.section508.v1"
)

// StructuralError is the fatal malformed-registry error. Verification
// cannot proceed past it.
type StructuralError struct {
	Registry string
	Reason   string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("registry %s: structural error: %s", e.Registry, e.Reason)
}

func structural(registry, format string, args ...any) *StructuralError {
	return &StructuralError{Registry: registry, Reason: fmt.Sprintf(format, args...)}
}

// Set is the loaded, validated trio of registries plus their canonical
// texts and compiled applicability conditions. Read-only after load.
type Set struct {
	Audit *Registry
	WCAG  *Registry
	S508  *Registry

	texts      map[string][]byte
	conditions map[string]cel.Program // entry id -> compiled condition
}

var (
	loadOnce sync.Once
	loaded   *Set
	loadErr  error
)

// Load returns the process-wide registry set, loading and validating the
// engine-embedded copies on first call. Safe under concurrent first
// access. A *StructuralError return is fatal to verification.
func Load() (*Set, error) {
	loadOnce.Do(func() {
		loaded, loadErr = loadEmbedded()
	})
	return loaded, loadErr
}

func loadEmbedded() (*Set, error) {
	s := &Set{
		texts:      make(map[string][]byte, 3),
		conditions: make(map[string]cel.Program),
	}
	for _, name := range []string{AuditName, WCAGName, S508Name} {
		data, err := embedded.ReadFile("registries/" + name + ".registry.json")
		if err != nil {
			return nil, structural(name, "embedded copy unreadable: %v", err)
		}
		reg, err := decode(name, data)
		if err != nil {
			return nil, err
		}
		s.texts[name] = data
		switch name {
		case AuditName:
			s.Audit = reg
		case WCAGName:
			s.WCAG = reg
		case S508Name:
			s.S508 = reg
		}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	if err := s.compileConditions(); err != nil {
		return nil, err
	}
	return s, nil
}

func decode(name string, data []byte) (*Registry, error) {
	var reg Registry
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&reg); err != nil {
		return nil, structural(name, "parse: %v", err)
	}
	return &reg, nil
}

// validate enforces the structural contract: schema id correctness,
// version validity, entry-id uniqueness, weight sums, override targets,
// and the Section 508 inherited-count agreement with the WCAG registry.
func (s *Set) validate() error {
	for name, want := range map[string]struct {
		reg      *Registry
		schemaID string
	}{
		AuditName: {s.Audit, AuditSchemaID},
		WCAGName:  {s.WCAG, WCAGSchemaID},
		S508Name:  {s.S508, S508SchemaID},
	} {
		reg := want.reg
		if reg.SchemaID != want.schemaID {
			return structural(name, "schema_id %q, want %q", reg.SchemaID, want.schemaID)
		}
		if _, err := semver.NewVersion(reg.Version); err != nil {
			return structural(name, "version %q is not semver: %v", reg.Version, err)
		}
		seen := make(map[string]bool, len(reg.Entries))
		for _, e := range reg.Entries {
			if e.ID == "" {
				return structural(name, "entry with empty id")
			}
			if seen[e.ID] {
				return structural(name, "duplicate entry id %q", e.ID)
			}
			seen[e.ID] = true
			if e.Applicability == ApplicabilityConditional && e.Condition == "" {
				return structural(name, "entry %q is conditional without a condition", e.ID)
			}
			for _, req := range e.EvidenceReqs {
				if _, ok := reg.Catalog[req]; !ok {
					return structural(name, "entry %q references unknown evidence requirement %q", e.ID, req)
				}
			}
		}
		for profileName, p := range reg.Profiles {
			for _, o := range p.Overrides {
				if !seen[o.TargetID] {
					return structural(name, "profile %q override targets unknown entry %q", profileName, o.TargetID)
				}
			}
		}
	}

	sum := 0
	for _, c := range s.Audit.Categories {
		sum += c.Weight
	}
	if sum != 100 {
		return structural(AuditName, "category weights sum to %d, want 100", sum)
	}

	counts := s.S508.Scope.Counts
	inherited := counts["inherited_wcag_entries_total"]
	if inherited != len(s.WCAG.Entries) {
		return structural(S508Name, "declared inherited_wcag_entries_total %d, WCAG registry has %d entries",
			inherited, len(s.WCAG.Entries))
	}
	if total, ok := counts["total_entries"]; ok {
		if total != counts["specific_entries_total"]+inherited {
			return structural(S508Name, "total_entries %d != specific %d + inherited %d",
				total, counts["specific_entries_total"], inherited)
		}
	}
	if counts["specific_entries_total"] != len(s.S508.Entries) {
		return structural(S508Name, "declared specific_entries_total %d, registry has %d entries",
			counts["specific_entries_total"], len(s.S508.Entries))
	}
	if total, ok := s.WCAG.Scope.Counts["total_entries"]; ok && total != len(s.WCAG.Entries) {
		return structural(WCAGName, "declared total_entries %d, registry has %d entries", total, len(s.WCAG.Entries))
	}
	return nil
}

// compileConditions compiles every conditional entry's CEL expression once
// at load. Conditions are evaluated against a single "input" map.
func (s *Set) compileConditions() error {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return fmt.Errorf("registry: cel env: %w", err)
	}
	for name, reg := range map[string]*Registry{AuditName: s.Audit, WCAGName: s.WCAG, S508Name: s.S508} {
		for _, e := range reg.Entries {
			if e.Applicability != ApplicabilityConditional {
				continue
			}
			ast, issues := env.Compile(e.Condition)
			if issues != nil && issues.Err() != nil {
				return structural(name, "entry %q condition: %v", e.ID, issues.Err())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return structural(name, "entry %q condition program: %v", e.ID, err)
			}
			s.conditions[e.ID] = prg
		}
	}
	return nil
}

// ConditionApplies evaluates a conditional entry's applicability against
// the evidence input. Entries without a compiled condition always apply.
func (s *Set) ConditionApplies(entryID string, input map[string]any) (bool, error) {
	prg, ok := s.conditions[entryID]
	if !ok {
		return true, nil
	}
	val, _, err := prg.Eval(map[string]any{"input": input})
	if err != nil {
		return false, fmt.Errorf("registry: evaluate condition for %q: %w", entryID, err)
	}
	b, ok := val.Value().(bool)
	if !ok {
		return false, fmt.Errorf("registry: condition for %q is not boolean", entryID)
	}
	return b, nil
}

// Text returns the canonical bytes of a loaded registry.
func (s *Set) Text(name string) []byte {
	return s.texts[name]
}

// Names returns the registry names in fingerprint order.
func Names() []string {
	return []string{AuditName, WCAGName, S508Name}
}

// ByName returns a loaded registry by name.
func (s *Set) ByName(name string) *Registry {
	switch name {
	case AuditName:
		return s.Audit
	case WCAGName:
		return s.WCAG
	case S508Name:
		return s.S508
	}
	return nil
}

// VerifyCanonical checks that the embedded registry copies are
// byte-identical to the checked-in canonical files under dir. A mismatch
// is structural: the engine would be verifying against rules nobody
// reviewed.
func (s *Set) VerifyCanonical(dir string) error {
	for _, name := range Names() {
		path := filepath.Join(dir, name+".registry.json")
		disk, err := os.ReadFile(path)
		if err != nil {
			return structural(name, "canonical file %s: %v", path, err)
		}
		if !bytes.Equal(disk, s.texts[name]) {
			return structural(name, "embedded copy differs from canonical file %s", path)
		}
	}
	return nil
}
