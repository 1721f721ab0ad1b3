package pmr

import (
	"fmt"
	"sort"

	"github.com/fullbleed/verify/pkg/checks"
	"github.com/fullbleed/verify/pkg/evidence"
	"github.com/fullbleed/verify/pkg/registry"
)

// pmrSystem is the mapping system the audit registry uses for its own
// audits.
const pmrSystem = "pmr"

// BuildInput carries everything audit construction needs. Missing
// upstream evidence degrades the affected audit to manual_needed, it
// never fails the run.
type BuildInput struct {
	Set            *registry.Set
	Profile        string
	Mount          *evidence.MountReport
	Parity         *evidence.ParityReport
	Metrics        *evidence.RunMetrics
	Findings       []*checks.Finding
	Thresholds     map[string]float64
	ConditionInput map[string]any
}

func (in *BuildInput) threshold(name string, def float64) float64 {
	if v, ok := in.Thresholds[name]; ok {
		return v
	}
	return def
}

// BuildAudits evaluates every pmr-mapped entry of the audit registry.
// Conditional audits whose registry condition does not hold are reported
// as not_applicable. Results come back sorted by audit id.
func BuildAudits(in *BuildInput) ([]AuditResult, error) {
	var out []AuditResult
	for i := range in.Set.Audit.Entries {
		e := &in.Set.Audit.Entries[i]
		if !e.MappedTo(pmrSystem) {
			continue
		}

		if e.Applicability == registry.ApplicabilityConditional {
			applies, err := in.Set.ConditionApplies(e.ID, in.ConditionInput)
			if err != nil {
				return nil, fmt.Errorf("pmr: condition for %s: %w", e.ID, err)
			}
			if !applies {
				out = append(out, AuditResult{
					AuditID:  e.ID,
					Category: e.Principle,
					Verdict:  checks.VerdictNotApplicable,
					Evidence: []*evidence.Record{evidence.NewRecord().
						Set("condition", evidence.StringValue(e.Condition)).
						Set("condition_result", evidence.BoolValue(false))},
				})
				continue
			}
		}

		res := in.runAudit(e)
		res.AuditID = e.ID
		res.Category = e.Principle
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuditID < out[j].AuditID })
	return out, nil
}

func (in *BuildInput) runAudit(e *registry.Entry) AuditResult {
	switch e.ID {
	case "pmr.layout.page_count_target":
		return in.pageCountTarget()
	case "pmr.layout.overflow_free":
		return in.overflowFree()
	case "pmr.layout.margin_boxes":
		return in.marginBoxes()
	case "pmr.cav.document_only_content":
		return in.mirrorFinding("fb.a11y.cav.document_only_content")
	case "pmr.fidelity.font_embedding":
		return in.boolMetric("fonts_embedded", in.metricFontsEmbedded())
	case "pmr.fidelity.render_determinism":
		return in.boolMetric("render_hash_stable", in.metricRenderHashStable())
	case "pmr.a11y.tagged_output":
		return in.taggedOutput()
	case "pmr.assets.image_resolution":
		return in.imageResolution()
	}
	return manualAudit("no evaluator registered for this audit")
}

func (in *BuildInput) pageCountTarget() AuditResult {
	if in.Parity == nil {
		return manualAudit("page parity data unavailable")
	}
	target := in.Parity.ParityTarget
	if target == 0 {
		target = in.Parity.SourcePageCount
	}
	match := in.Parity.RenderPageCount == target
	rec := evidence.NewRecord().
		Set("source_page_count", evidence.IntValue(int64(in.Parity.SourcePageCount))).
		Set("render_page_count", evidence.IntValue(int64(in.Parity.RenderPageCount))).
		Set("parity_target", evidence.IntValue(int64(target))).
		Set("page_counts_match", evidence.BoolValue(match))
	if !match {
		return AuditResult{Verdict: checks.VerdictFail, Evidence: []*evidence.Record{rec}}
	}
	return AuditResult{Verdict: checks.VerdictPass, Evidence: []*evidence.Record{rec}}
}

func (in *BuildInput) overflowFree() AuditResult {
	if in.Mount == nil {
		return manualAudit("mount report unavailable")
	}
	rec := evidence.NewRecord().
		Set("overflow_count", evidence.IntValue(int64(in.Mount.OverflowCount))).
		Set("content_loss_count", evidence.IntValue(int64(in.Mount.ContentLossCount))).
		Set("mounted_node_count", evidence.IntValue(int64(in.Mount.MountedNodeCount)))
	if in.Mount.OverflowCount > 0 || in.Mount.ContentLossCount > 0 {
		return AuditResult{Verdict: checks.VerdictFail, Evidence: []*evidence.Record{rec}}
	}
	return AuditResult{Verdict: checks.VerdictPass, Evidence: []*evidence.Record{rec}}
}

func (in *BuildInput) marginBoxes() AuditResult {
	if in.Mount == nil || in.Mount.MarginBoxesValid == nil {
		return manualAudit("margin box validity not reported")
	}
	return boolResult("margin_boxes_valid", *in.Mount.MarginBoxesValid)
}

func (in *BuildInput) taggedOutput() AuditResult {
	if in.Mount == nil || in.Mount.TaggedOutput == nil {
		return manualAudit("tagged output flag not reported")
	}
	return boolResult("tagged_output", *in.Mount.TaggedOutput)
}

func (in *BuildInput) metricFontsEmbedded() *bool {
	if in.Metrics == nil {
		return nil
	}
	return in.Metrics.FontsEmbedded
}

func (in *BuildInput) metricRenderHashStable() *bool {
	if in.Metrics == nil {
		return nil
	}
	return in.Metrics.RenderHashStable
}

func (in *BuildInput) boolMetric(name string, v *bool) AuditResult {
	if v == nil {
		return manualAudit(name + " not reported")
	}
	return boolResult(name, *v)
}

func (in *BuildInput) imageResolution() AuditResult {
	if in.Metrics == nil || in.Metrics.ImageMinDPI == 0 {
		return manualAudit("image resolution metrics unavailable")
	}
	min := in.threshold("image_min_dpi", 150)
	rec := evidence.NewRecord().
		Set("image_min_dpi", evidence.IntValue(int64(in.Metrics.ImageMinDPI))).
		Set("threshold", evidence.FloatValue(min))
	if float64(in.Metrics.ImageMinDPI) < min {
		return AuditResult{Verdict: checks.VerdictFail, Evidence: []*evidence.Record{rec}}
	}
	return AuditResult{Verdict: checks.VerdictPass, Evidence: []*evidence.Record{rec}}
}

// mirrorFinding reuses the verdict an accessibility rule already
// produced, so the audit and the finding can never disagree.
func (in *BuildInput) mirrorFinding(ruleID string) AuditResult {
	for _, f := range in.Findings {
		if f.RuleID == ruleID {
			return AuditResult{
				Verdict: f.Verdict,
				Evidence: []*evidence.Record{evidence.NewRecord().
					Set("mirrored_rule_id", evidence.StringValue(ruleID)).
					Set("mirrored_verdict", evidence.StringValue(string(f.Verdict)))},
			}
		}
	}
	return manualAudit("mirrored rule " + ruleID + " produced no finding")
}

func boolResult(name string, ok bool) AuditResult {
	rec := evidence.NewRecord().Set(name, evidence.BoolValue(ok))
	if !ok {
		return AuditResult{Verdict: checks.VerdictFail, Evidence: []*evidence.Record{rec}}
	}
	return AuditResult{Verdict: checks.VerdictPass, Evidence: []*evidence.Record{rec}}
}

func manualAudit(reason string) AuditResult {
	return AuditResult{
		Verdict: checks.VerdictManualNeeded,
		Evidence: []*evidence.Record{evidence.NewRecord().
			Set("reason", evidence.StringValue(reason))},
	}
}
