package correlate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullbleed/verify/pkg/checks"
	"github.com/fullbleed/verify/pkg/evidence"
)

func preRender(rule, source string) *checks.Finding {
	return &checks.Finding{
		RuleID:   rule,
		Stage:    checks.StagePreRender,
		Verdict:  checks.VerdictFail,
		SourceID: source,
		Evidence: []*evidence.Record{
			evidence.NewRecord().Set("diagnostic_code", evidence.StringValue(source)),
		},
	}
}

func postEmit(rule string, verdict checks.Verdict) *checks.Finding {
	return &checks.Finding{RuleID: rule, Stage: checks.StagePostEmit, Verdict: verdict}
}

func TestMerge_CollapsesPreRenderIntoCanonical(t *testing.T) {
	res := Merge([]*checks.Finding{
		preRender("fb.a11y.headings.labeled", "HEADING_EMPTY"),
		preRender("fb.a11y.headings.labeled", "LABEL_EMPTY"),
		preRender("fb.a11y.headings.labeled", "REGION_UNLABELED"),
		postEmit("fb.a11y.headings.labeled", checks.VerdictFail),
		postEmit("fb.a11y.lang.declared", checks.VerdictPass),
	})

	var canonical *checks.Finding
	count := 0
	for _, f := range res.Findings {
		if f.RuleID == "fb.a11y.headings.labeled" {
			canonical = f
			count++
		}
	}
	require.Equal(t, 1, count, "exactly one finding survives for the merged rule")
	require.NotNil(t, canonical)
	assert.Equal(t, checks.StagePostEmit, canonical.Stage)
	assert.Equal(t, checks.VerdictFail, canonical.Verdict, "canonical verdict is preserved unchanged")
	assert.GreaterOrEqual(t, len(canonical.RelatedIDs), 3)
	assert.Contains(t, canonical.RelatedIDs, "HEADING_EMPTY")

	summaries := 0
	for _, rec := range canonical.Evidence {
		if rec.Role == "summary" {
			summaries++
			assert.Equal(t, string(checks.StagePreRender), rec.OriginStage)
			v, ok := rec.Get("HEADING_EMPTY")
			require.True(t, ok)
			assert.Equal(t, string(checks.StagePreRender), v.Str)
		}
	}
	assert.GreaterOrEqual(t, summaries, 1)

	assert.Equal(t, 3, res.DedupEvents)
	assert.Equal(t, 1, res.CorrelatedFindings)
}

func TestMerge_NoCounterpartPassesThrough(t *testing.T) {
	res := Merge([]*checks.Finding{
		preRender("fb.a11y.img.alt_present", "ALT_MISSING"),
		postEmit("fb.a11y.lang.declared", checks.VerdictPass),
	})
	assert.Len(t, res.Findings, 2)
	assert.Zero(t, res.DedupEvents)
	assert.Zero(t, res.CorrelatedFindings)
}

func TestMerge_CanonicalVerdictNotUpgraded(t *testing.T) {
	// Post-emit pass is ground truth even when pre-render flagged failures.
	res := Merge([]*checks.Finding{
		preRender("fb.a11y.headings.labeled", "HEADING_EMPTY"),
		postEmit("fb.a11y.headings.labeled", checks.VerdictPass),
	})
	require.Len(t, res.Findings, 1)
	assert.Equal(t, checks.VerdictPass, res.Findings[0].Verdict)
	assert.Equal(t, 1, res.DedupEvents)
}

func TestIndex_MergedAndGateFailedRows(t *testing.T) {
	res := Merge([]*checks.Finding{
		preRender("fb.a11y.headings.labeled", "HEADING_EMPTY"),
		postEmit("fb.a11y.headings.labeled", checks.VerdictFail),
		postEmit("fb.a11y.lang.declared", checks.VerdictFail),
		postEmit("fb.a11y.title.present", checks.VerdictPass),
	})

	rows := res.Index(map[string]bool{
		"fb.a11y.headings.labeled": true,
		"fb.a11y.lang.declared":    true,
	})
	require.Len(t, rows, 2)

	byID := make(map[string]IndexRow)
	for _, r := range rows {
		byID[r.RuleID] = r
	}
	merged := byID["fb.a11y.headings.labeled"]
	assert.Equal(t, 1, merged.MergedPreRenderCount)
	assert.True(t, merged.GateFailed)
	assert.Equal(t, checks.StagePostEmit, merged.CanonicalStage)

	plain := byID["fb.a11y.lang.declared"]
	assert.Zero(t, plain.MergedPreRenderCount)
	assert.True(t, plain.GateFailed)
}

func TestMerge_Deterministic(t *testing.T) {
	input := func() []*checks.Finding {
		return []*checks.Finding{
			postEmit("fb.a11y.title.present", checks.VerdictPass),
			preRender("fb.a11y.headings.labeled", "LABEL_EMPTY"),
			postEmit("fb.a11y.headings.labeled", checks.VerdictFail),
			preRender("fb.a11y.headings.labeled", "HEADING_EMPTY"),
		}
	}
	a := Merge(input())
	b := Merge(input())
	require.Equal(t, len(a.Findings), len(b.Findings))
	for i := range a.Findings {
		assert.Equal(t, a.Findings[i].RuleID, b.Findings[i].RuleID)
		assert.Equal(t, a.Findings[i].RelatedIDs, b.Findings[i].RelatedIDs)
	}
}
