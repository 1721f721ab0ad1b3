package verify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullbleed/verify/pkg/checks"
	"github.com/fullbleed/verify/pkg/evidence"
)

var fixedTime = time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)

const cleanHTML = `<!DOCTYPE html>
<html lang="en">
<head><title>Quarterly Report</title></head>
<body>
<h1>Overview</h1>
<p>Totals are listed in the summary table.</p>
<table><tr><th>Region</th><th>Total</th></tr><tr><td>East</td><td>10</td></tr></table>
<a href="https://example.com/details">Full details</a>
<img src="chart.png" alt="Revenue by region">
</body>
</html>`

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(nil)
	require.NoError(t, err)
	return e
}

func findingByRule(t *testing.T, res *Result, ruleID string) *checks.Finding {
	t.Helper()
	for _, f := range res.Verifier.Findings {
		if f.RuleID == ruleID {
			return f
		}
	}
	t.Fatalf("no finding for rule %s", ruleID)
	return nil
}

func TestRun_Deterministic(t *testing.T) {
	e := newEngine(t)
	opts := func() *Options {
		return &Options{
			HTML:        cleanHTML,
			Profile:     "standard",
			GeneratedAt: &fixedTime,
			Parity:      &evidence.ParityReport{SourcePageCount: 3, RenderPageCount: 3},
		}
	}

	a, err := e.Run(opts())
	require.NoError(t, err)
	b, err := e.Run(opts())
	require.NoError(t, err)

	assert.Equal(t, a.VerifierJSON, b.VerifierJSON)
	assert.Equal(t, a.PMRJSON, b.PMRJSON)
}

func TestRun_CorrelationCollapse(t *testing.T) {
	e := newEngine(t)
	res, err := e.Run(&Options{
		HTML: `<!DOCTYPE html><html lang="en"><head><title>Doc</title></head><body><h1>Ok</h1><h2></h2></body></html>`,
		PreRender: &evidence.PreRenderReport{Diagnostics: []evidence.Diagnostic{
			{Code: "HEADING_EMPTY", Count: 1},
		}},
		GeneratedAt: &fixedTime,
	})
	require.NoError(t, err)

	count := 0
	var merged *checks.Finding
	for _, f := range res.Verifier.Findings {
		if f.RuleID == "fb.a11y.headings.labeled" {
			merged = f
			count++
		}
	}
	require.Equal(t, 1, count, "pre-render and post-emit findings collapse to one")
	assert.Equal(t, checks.VerdictFail, merged.Verdict)
	assert.Contains(t, merged.RelatedIDs, "HEADING_EMPTY")

	assert.Equal(t, 1, res.Verifier.Observability.DedupEventCount)
	assert.Equal(t, 1, res.Verifier.Observability.CorrelatedFindings)
}

func TestRun_CAVPageParityGate(t *testing.T) {
	e := newEngine(t)
	res, err := e.Run(&Options{
		HTML:        cleanHTML,
		Profile:     "cav",
		Parity:      &evidence.ParityReport{SourcePageCount: 1, RenderPageCount: 2, ParityTarget: 1},
		GeneratedAt: &fixedTime,
	})
	require.NoError(t, err)

	assert.Equal(t, "error", res.PMR.Mode, "cav defaults to error mode")
	assert.False(t, res.PMR.Gate.OK)
	assert.Contains(t, res.PMR.Gate.FailedAuditIDs, "pmr.layout.page_count_target")
	assert.Contains(t, res.PMR.Gate.FailedAuditIDs, "pmr.cav.document_only_content")

	assert.False(t, res.Verifier.Gate.OK)
	assert.Contains(t, res.Verifier.Gate.FailedRuleIDs, "fb.a11y.cav.document_only_content")

	indexed := make(map[string]bool)
	for _, row := range res.Verifier.Observability.CorrelationIndex {
		indexed[row.RuleID] = row.GateFailed
	}
	assert.True(t, indexed["pmr.layout.page_count_target"])
	assert.True(t, indexed["pmr.cav.document_only_content"])
	assert.True(t, indexed["fb.a11y.cav.document_only_content"])
}

func TestRun_ClaimEvidenceResolvesKeyboardSeed(t *testing.T) {
	e := newEngine(t)

	res, err := e.Run(&Options{
		HTML: cleanHTML,
		Claims: &evidence.Claims{WCAG20: map[string]bool{
			"keyboard_assessed":       true,
			"keyboard_basis_recorded": true,
		}},
		GeneratedAt: &fixedTime,
	})
	require.NoError(t, err)
	assert.Equal(t, checks.VerdictPass,
		findingByRule(t, res, "fb.a11y.keyboard.operable_seed").Verdict)

	res, err = e.Run(&Options{
		HTML: cleanHTML,
		Claims: &evidence.Claims{WCAG20: map[string]bool{
			"keyboard_assessed": true,
		}},
		GeneratedAt: &fixedTime,
	})
	require.NoError(t, err)
	assert.Equal(t, checks.VerdictManualNeeded,
		findingByRule(t, res, "fb.a11y.keyboard.operable_seed").Verdict,
		"a partial attestation never resolves the seed")
}

func TestRun_NotApplicableBeatsClaims(t *testing.T) {
	e := newEngine(t)
	res, err := e.Run(&Options{
		HTML:           cleanHTML,
		DeliveryTarget: "html",
		Claims: &evidence.Claims{Section508: map[string]bool{
			"nonweb_assessed":       true,
			"nonweb_basis_recorded": true,
			"nonweb_scope_declared": true,
		}},
		GeneratedAt: &fixedTime,
	})
	require.NoError(t, err)

	f := findingByRule(t, res, "fb.a11y.s508.nonweb_exceptions")
	assert.Equal(t, checks.VerdictNotApplicable, f.Verdict,
		"registry-proven inapplicability is never overridden by claims")
}

func TestRun_ModeOffAlwaysPasses(t *testing.T) {
	e := newEngine(t)
	res, err := e.Run(&Options{
		HTML:        `<!DOCTYPE html><html><head></head><body><h2></h2></body></html>`,
		Mode:        "off",
		Parity:      &evidence.ParityReport{SourcePageCount: 1, RenderPageCount: 2},
		GeneratedAt: &fixedTime,
	})
	require.NoError(t, err)

	assert.True(t, res.Verifier.Gate.OK)
	assert.Empty(t, res.Verifier.Gate.FailedRuleIDs)
	assert.True(t, res.PMR.Gate.OK)
	assert.Empty(t, res.PMR.Gate.FailedAuditIDs)
}

func TestRun_WarnModeReportsWithoutBlocking(t *testing.T) {
	e := newEngine(t)
	res, err := e.Run(&Options{
		HTML:        cleanHTML,
		Profile:     "standard",
		Mount:       &evidence.MountReport{OverflowCount: 2},
		GeneratedAt: &fixedTime,
	})
	require.NoError(t, err)

	assert.Equal(t, "warn", res.PMR.Mode)
	assert.True(t, res.PMR.Gate.OK)
	assert.Contains(t, res.PMR.Gate.FailedAuditIDs, "pmr.layout.overflow_free")
}

func TestRun_HealthyDocumentScoresFull(t *testing.T) {
	e := newEngine(t)
	trueVal := true
	res, err := e.Run(&Options{
		HTML:    cleanHTML,
		Profile: "standard",
		Mount: &evidence.MountReport{
			MountedNodeCount: 40,
			MarginBoxesValid: &trueVal,
			TaggedOutput:     &trueVal,
		},
		Parity: &evidence.ParityReport{SourcePageCount: 2, RenderPageCount: 2},
		Metrics: &evidence.RunMetrics{
			FontsEmbedded:    &trueVal,
			RenderHashStable: &trueVal,
			ImageMinDPI:      300,
		},
		GeneratedAt: &fixedTime,
	})
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.PMR.Rank.Score)
	assert.True(t, res.PMR.Gate.OK)
	assert.True(t, res.Verifier.Gate.OK)
	assert.NotEmpty(t, res.Verifier.Tooling.ContractFingerprint)
	assert.Equal(t, res.Verifier.Tooling, res.PMR.Tooling)
}

func TestRun_ConfigOverridesProfile(t *testing.T) {
	e := newEngine(t)
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profile: cav\nmode: warn\n"), 0o644))

	res, err := e.Run(&Options{
		HTML:        cleanHTML,
		ConfigPath:  path,
		GeneratedAt: &fixedTime,
	})
	require.NoError(t, err)
	assert.Equal(t, "cav", res.Verifier.Profile)
	assert.Equal(t, "warn", res.Verifier.Mode)
}
