// Package checks implements the rule evaluator: every verifier check
// enabled for the active profile runs against its declared evidence
// subset and produces one Finding. Checks are pure given their inputs; a
// check missing required evidence reports manual_needed rather than being
// skipped, and only registry-proven inapplicability yields not_applicable.
package checks

import (
	"github.com/fullbleed/verify/pkg/evidence"
)

// Stage is the pipeline stage a finding was observed at.
type Stage string

const (
	StagePreRender Stage = "pre-render"
	StagePostEmit  Stage = "post-emit"
)

// Verdict is the outcome of one check for one run.
type Verdict string

const (
	VerdictPass          Verdict = "pass"
	VerdictFail          Verdict = "fail"
	VerdictWarn          Verdict = "warn"
	VerdictManualNeeded  Verdict = "manual_needed"
	VerdictNotApplicable Verdict = "not_applicable"
)

// verdictRank orders verdicts worst-first for rollups.
var verdictRank = map[Verdict]int{
	VerdictFail:          0,
	VerdictWarn:          1,
	VerdictManualNeeded:  2,
	VerdictPass:          3,
	VerdictNotApplicable: 4,
}

// Worse returns the worse of two verdicts under the fixed rollup order
// fail > warn > manual_needed > pass > not_applicable.
func Worse(a, b Verdict) Verdict {
	if verdictRank[a] <= verdictRank[b] {
		return a
	}
	return b
}

// Finding is one rule check's result for one evaluation run. Findings are
// produced fresh per call and never persisted.
type Finding struct {
	RuleID        string             `json:"rule_id"`
	Stage         Stage              `json:"stage"`
	Verdict       Verdict            `json:"verdict"`
	Applicability string             `json:"applicability"`
	SourceID      string             `json:"source_id,omitempty"`
	Evidence      []*evidence.Record `json:"evidence"`
	RelatedIDs    []string           `json:"related_ids"`
}

// AddEvidence appends an evidence record.
func (f *Finding) AddEvidence(r *evidence.Record) *Finding {
	f.Evidence = append(f.Evidence, r)
	return f
}
