// Package pmr computes the Paged Media Rank: a weighted quality score
// over the audit registry's categories plus a go/no-go gate. Score and
// gate are independent, a run can score high and still be blocked by a
// single must-pass audit.
package pmr

import (
	"fmt"
	"math"
	"sort"

	"github.com/fullbleed/verify/pkg/checks"
	"github.com/fullbleed/verify/pkg/evidence"
	"github.com/fullbleed/verify/pkg/registry"
)

// AuditResult is one evaluated PMR audit.
type AuditResult struct {
	AuditID  string             `json:"audit_id"`
	Category string             `json:"category"`
	Verdict  checks.Verdict     `json:"verdict"`
	Evidence []*evidence.Record `json:"evidence,omitempty"`
}

// Rank is the weighted score on the 0..100 scale.
type Rank struct {
	Score float64 `json:"score"`
}

// Gate is the go/no-go outcome for the run.
type Gate struct {
	OK             bool     `json:"ok"`
	FailedAuditIDs []string `json:"failed_audit_ids,omitempty"`
}

// Score computes the category-weighted rank. Within a category each
// non-applicable audit is excluded before averaging; a category whose
// audits are all non-applicable contributes its full weight.
func Score(reg *registry.Registry, audits []AuditResult) (Rank, error) {
	byCategory := make(map[string][]AuditResult)
	for _, a := range audits {
		byCategory[a.Category] = append(byCategory[a.Category], a)
	}

	total := 0.0
	for _, cat := range reg.Categories {
		weight := float64(cat.Weight)
		group := byCategory[cat.ID]

		sum, counted := 0.0, 0
		for _, a := range group {
			if a.Verdict == checks.VerdictNotApplicable {
				continue
			}
			mult, ok := reg.ScoreMultipliers[string(a.Verdict)]
			if !ok {
				return Rank{}, fmt.Errorf("pmr: no score multiplier for verdict %q (audit %s)", a.Verdict, a.AuditID)
			}
			sum += mult
			counted++
		}
		if counted == 0 {
			total += weight
			continue
		}
		total += weight * (sum / float64(counted))
	}
	// Two decimals keeps the score stable across float accumulation order.
	return Rank{Score: math.Round(total*100) / 100}, nil
}

// EvaluateGate applies the gate mode. An audit blocks when it failed and
// is either marked must-pass by the active profile or carries an
// effective gate level of error.
func EvaluateGate(reg *registry.Registry, profileName, mode string, audits []AuditResult) Gate {
	if mode == "off" {
		return Gate{OK: true}
	}

	profile, _ := reg.Profile(profileName)
	var failed []string
	for _, a := range audits {
		if a.Verdict != checks.VerdictFail {
			continue
		}
		if mustPass(profile, a.AuditID) || effectiveGateLevel(reg, profile, a.AuditID) == registry.GateError {
			failed = append(failed, a.AuditID)
		}
	}
	sort.Strings(failed)

	ok := true
	if mode == "error" {
		ok = len(failed) == 0
	}
	return Gate{OK: ok, FailedAuditIDs: failed}
}

func mustPass(p registry.Profile, auditID string) bool {
	for _, o := range p.Overrides {
		if o.TargetID == auditID && o.MustPass != nil {
			return *o.MustPass
		}
	}
	return false
}

func effectiveGateLevel(reg *registry.Registry, p registry.Profile, auditID string) registry.GateLevel {
	level := registry.GateWarn
	if e, ok := reg.Entry(auditID); ok {
		level = e.DefaultGateLevel
	}
	for _, o := range p.Overrides {
		if o.TargetID == auditID && o.GateLevel != "" {
			level = o.GateLevel
		}
	}
	return level
}
