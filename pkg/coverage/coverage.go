// Package coverage maps findings onto registry entries and computes the
// composed coverage statistics. Section 508 coverage is additive over
// WCAG coverage: the aggregator adds Section-508-specific totals on top
// of the WCAG totals instead of recomputing them, so nothing is counted
// twice.
package coverage

import (
	"fmt"

	"github.com/fullbleed/verify/pkg/checks"
	"github.com/fullbleed/verify/pkg/registry"
)

// verifierSystem is the mapping system coverage is computed over.
const verifierSystem = "a11y_verifier"

// Summary is the per-registry coverage block.
type Summary struct {
	TotalEntries                         int            `json:"total_entries"`
	MappedEntryCount                     int            `json:"mapped_entry_count"`
	UnmappedEntryCount                   int            `json:"unmapped_entry_count"`
	ImplementedMappedEntryCount          int            `json:"implemented_mapped_entry_count"`
	ImplementedMappedEntryEvaluatedCount int            `json:"implemented_mapped_entry_evaluated_count"`
	ImplementedMappedEntryPendingCount   int            `json:"implemented_mapped_entry_pending_count"`
	SupportingOnlyCount                  int            `json:"supporting_only_count"`
	PlannedOnlyCount                     int            `json:"planned_only_count"`
	ImplementedMappedResultCounts        map[string]int `json:"implemented_mapped_result_counts"`
}

// add accumulates o into s entrywise. Used for the Section 508
// composition law.
func (s *Summary) add(o Summary) {
	s.TotalEntries += o.TotalEntries
	s.MappedEntryCount += o.MappedEntryCount
	s.UnmappedEntryCount += o.UnmappedEntryCount
	s.ImplementedMappedEntryCount += o.ImplementedMappedEntryCount
	s.ImplementedMappedEntryEvaluatedCount += o.ImplementedMappedEntryEvaluatedCount
	s.ImplementedMappedEntryPendingCount += o.ImplementedMappedEntryPendingCount
	s.SupportingOnlyCount += o.SupportingOnlyCount
	s.PlannedOnlyCount += o.PlannedOnlyCount
	for v, n := range o.ImplementedMappedResultCounts {
		s.ImplementedMappedResultCounts[v] += n
	}
}

// validate checks the coverage arithmetic every summary must satisfy.
func (s *Summary) validate(name string) error {
	if s.MappedEntryCount+s.UnmappedEntryCount != s.TotalEntries {
		return fmt.Errorf("coverage %s: mapped %d + unmapped %d != total %d",
			name, s.MappedEntryCount, s.UnmappedEntryCount, s.TotalEntries)
	}
	if s.ImplementedMappedEntryEvaluatedCount+s.ImplementedMappedEntryPendingCount != s.ImplementedMappedEntryCount {
		return fmt.Errorf("coverage %s: evaluated %d + pending %d != implemented %d",
			name, s.ImplementedMappedEntryEvaluatedCount, s.ImplementedMappedEntryPendingCount,
			s.ImplementedMappedEntryCount)
	}
	return nil
}

// Report is the composed coverage block attached to the verifier report.
type Report struct {
	WCAG Summary `json:"wcag20aa"`
	S508 Summary `json:"section508"`
}

// Validate checks the arithmetic of both summaries.
func (r *Report) Validate() error {
	if err := r.WCAG.validate(registry.WCAGName); err != nil {
		return err
	}
	return r.S508.validate(registry.S508Name)
}

// Aggregator computes a coverage report from correlated findings. The
// native engine implementation is preferred when present; the local
// fallback must be behaviorally identical for identical inputs.
type Aggregator interface {
	Name() string
	Aggregate(set *registry.Set, findings []*checks.Finding) (*Report, error)
}

// Local is the fallback aggregator computed inside this engine.
type Local struct{}

// Name identifies the fallback implementation.
func (Local) Name() string { return "local" }

// Aggregate computes WCAG coverage, Section-508-specific coverage, and
// composes the latter additively with the former.
func (Local) Aggregate(set *registry.Set, findings []*checks.Finding) (*Report, error) {
	worst := worstVerdictByRule(findings)

	wcag := summarize(set.WCAG.Entries, worst)
	specific := summarize(set.S508.Entries, worst)

	composed := specific
	composed.ImplementedMappedResultCounts = copyCounts(specific.ImplementedMappedResultCounts)
	composed.add(wcag)
	// Inherited entries are declared, not re-enumerated; trust the scope
	// counts the loader already validated against the WCAG registry.
	composed.TotalEntries = set.S508.Scope.Counts["specific_entries_total"] +
		set.S508.Scope.Counts["inherited_wcag_entries_total"]
	composed.UnmappedEntryCount = composed.TotalEntries - composed.MappedEntryCount

	rep := &Report{WCAG: wcag, S508: composed}
	if err := rep.Validate(); err != nil {
		return nil, err
	}
	return rep, nil
}

// worstVerdictByRule rolls findings up per rule id under the fixed order
// fail > warn > manual_needed > pass > not_applicable.
func worstVerdictByRule(findings []*checks.Finding) map[string]checks.Verdict {
	worst := make(map[string]checks.Verdict)
	for _, f := range findings {
		if cur, ok := worst[f.RuleID]; ok {
			worst[f.RuleID] = checks.Worse(cur, f.Verdict)
		} else {
			worst[f.RuleID] = f.Verdict
		}
	}
	return worst
}

func summarize(entries []registry.Entry, worst map[string]checks.Verdict) Summary {
	s := Summary{
		TotalEntries:                  len(entries),
		ImplementedMappedResultCounts: make(map[string]int),
	}
	for i := range entries {
		e := &entries[i]
		if !e.MappedTo(verifierSystem) {
			s.UnmappedEntryCount++
			continue
		}
		s.MappedEntryCount++

		implemented := e.ImplementedRuleIDs(verifierSystem)
		if len(implemented) == 0 {
			if hasStatus(e, registry.StatusSupporting) {
				s.SupportingOnlyCount++
			} else if hasStatus(e, registry.StatusPlanned) {
				s.PlannedOnlyCount++
			}
			continue
		}
		s.ImplementedMappedEntryCount++

		entryVerdict, evaluated := rollup(implemented, worst)
		if !evaluated {
			s.ImplementedMappedEntryPendingCount++
			continue
		}
		s.ImplementedMappedEntryEvaluatedCount++
		s.ImplementedMappedResultCounts[string(entryVerdict)]++
	}
	return s
}

func hasStatus(e *registry.Entry, status registry.MappingStatus) bool {
	for _, m := range e.RuleMappings {
		if m.System == verifierSystem && m.Status == status {
			return true
		}
	}
	return false
}

// rollup combines the worst verdicts of an entry's implemented rules.
func rollup(ruleIDs []string, worst map[string]checks.Verdict) (checks.Verdict, bool) {
	var out checks.Verdict
	found := false
	for _, id := range ruleIDs {
		v, ok := worst[id]
		if !ok {
			continue
		}
		if !found {
			out = v
			found = true
			continue
		}
		out = checks.Worse(out, v)
	}
	return out, found
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
