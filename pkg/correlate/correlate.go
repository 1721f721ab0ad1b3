// Package correlate merges same-rule findings reported at different
// pipeline stages into one canonical finding. The post-emit finding is
// ground truth: its verdict is preserved unchanged, and pre-render
// findings fold into related ids plus a summary evidence record.
package correlate

import (
	"sort"

	"github.com/fullbleed/verify/pkg/checks"
	"github.com/fullbleed/verify/pkg/evidence"
)

// Result is the correlated finding set plus the counters the
// observability block reports.
type Result struct {
	Findings           []*checks.Finding
	DedupEvents        int
	CorrelatedFindings int

	// mergedPreRender tracks how many pre-render findings folded into
	// each canonical rule, for index construction.
	mergedPreRender map[string]int
}

// IndexRow is one traceability row: emitted per merged rule and per
// gate-failed rule.
type IndexRow struct {
	RuleID               string       `json:"rule_id"`
	CanonicalStage       checks.Stage `json:"canonical_stage"`
	MergedPreRenderCount int          `json:"merged_pre_render_count"`
	GateFailed           bool         `json:"gate_failed"`
}

// Merge folds pre-render findings into their canonical post-emit
// counterparts. Findings without a cross-stage counterpart pass through
// untouched. Each folded finding counts one dedup event; each canonical
// finding that gained related ids counts once as correlated.
func Merge(findings []*checks.Finding) *Result {
	res := &Result{mergedPreRender: make(map[string]int)}

	byRule := make(map[string][]*checks.Finding)
	var ruleOrder []string
	for _, f := range findings {
		if _, seen := byRule[f.RuleID]; !seen {
			ruleOrder = append(ruleOrder, f.RuleID)
		}
		byRule[f.RuleID] = append(byRule[f.RuleID], f)
	}
	sort.Strings(ruleOrder)

	for _, ruleID := range ruleOrder {
		group := byRule[ruleID]
		canonical := pickCanonical(group)
		if canonical == nil {
			// No post-emit counterpart: pre-render findings stand alone.
			res.Findings = append(res.Findings, group...)
			continue
		}

		merged := 0
		var mergedIDs []string
		for _, f := range group {
			if f == canonical {
				continue
			}
			if f.Stage != checks.StagePreRender {
				// A second post-emit finding for the same rule would be an
				// evaluator defect; keep it visible rather than dropping it.
				res.Findings = append(res.Findings, f)
				continue
			}
			id := f.SourceID
			if id == "" {
				id = f.RuleID
			}
			mergedIDs = append(mergedIDs, id)
			merged++
			res.DedupEvents++
		}

		if merged > 0 {
			sort.Strings(mergedIDs)
			canonical.RelatedIDs = append(canonical.RelatedIDs, mergedIDs...)

			summary := evidence.NewRecord()
			summary.Role = "summary"
			summary.OriginStage = string(checks.StagePreRender)
			for _, id := range mergedIDs {
				summary.Set(id, evidence.StringValue(string(checks.StagePreRender)))
			}
			summary.Set("merged_count", evidence.IntValue(int64(merged)))
			canonical.AddEvidence(summary)

			res.CorrelatedFindings++
			res.mergedPreRender[ruleID] = merged
		}
		res.Findings = append(res.Findings, canonical)
	}

	sort.SliceStable(res.Findings, func(i, j int) bool {
		if res.Findings[i].RuleID != res.Findings[j].RuleID {
			return res.Findings[i].RuleID < res.Findings[j].RuleID
		}
		return res.Findings[i].SourceID < res.Findings[j].SourceID
	})
	return res
}

func pickCanonical(group []*checks.Finding) *checks.Finding {
	for _, f := range group {
		if f.Stage == checks.StagePostEmit {
			return f
		}
	}
	return nil
}

// Index builds the correlation index: one row per merged rule and one per
// gate-failed rule, deduplicated and sorted by rule id.
func (r *Result) Index(gateFailed map[string]bool) []IndexRow {
	ids := make(map[string]bool)
	for id := range r.mergedPreRender {
		ids[id] = true
	}
	for id, failed := range gateFailed {
		if failed {
			ids[id] = true
		}
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	stages := make(map[string]checks.Stage)
	for _, f := range r.Findings {
		if _, ok := stages[f.RuleID]; !ok {
			stages[f.RuleID] = f.Stage
		}
	}

	rows := make([]IndexRow, 0, len(sorted))
	for _, id := range sorted {
		stage, ok := stages[id]
		if !ok {
			stage = checks.StagePostEmit
		}
		rows = append(rows, IndexRow{
			RuleID:               id,
			CanonicalStage:       stage,
			MergedPreRenderCount: r.mergedPreRender[id],
			GateFailed:           gateFailed[id],
		})
	}
	return rows
}
