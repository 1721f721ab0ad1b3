// Package verify is the engine entry point: it loads the registries,
// gathers run evidence, evaluates checks, correlates stages, scores the
// Paged Media Rank, and assembles both report envelopes. A run never
// mutates its inputs and performs no network I/O; identical inputs with a
// fixed generated_at produce byte-identical reports.
package verify

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/fullbleed/verify/pkg/checks"
	"github.com/fullbleed/verify/pkg/correlate"
	"github.com/fullbleed/verify/pkg/coverage"
	"github.com/fullbleed/verify/pkg/evidence"
	"github.com/fullbleed/verify/pkg/pmr"
	"github.com/fullbleed/verify/pkg/registry"
	"github.com/fullbleed/verify/pkg/report"
)

const verifierSystem = "a11y_verifier"

// Options configures one verification run. Zero values mean "not
// supplied": missing evidence degrades the affected checks instead of
// failing the run.
type Options struct {
	HTML     string
	HTMLPath string
	CSS      string
	CSSPath  string

	Profile        string // defaults to "standard"
	Mode           string // defaults to the profile's default_mode
	DeliveryTarget string // defaults to "pdf"

	PreRender  *evidence.PreRenderReport
	Mount      *evidence.MountReport
	Parity     *evidence.ParityReport
	Metrics    *evidence.RunMetrics
	RasterPath string
	Claims     *evidence.Claims

	// GeneratedAt pins the report timestamp; nil means time.Now.
	GeneratedAt *time.Time

	// RegistryDir, when set, requires the embedded registries to match
	// the canonical files on disk byte for byte.
	RegistryDir string

	// ConfigPath points at an optional YAML run configuration.
	ConfigPath string

	Thresholds map[string]float64
}

// Result is one completed run: both envelopes, assembled and encoded.
type Result struct {
	Verifier     *report.Verifier
	PMR          *report.PMR
	VerifierJSON []byte
	PMRJSON      []byte
}

// Engine evaluates documents against the loaded registries. It is safe
// for concurrent use.
type Engine struct {
	set    *registry.Set
	eval   *checks.Evaluator
	logger *slog.Logger
}

// New loads and validates the embedded registries. A structural registry
// defect is the only fatal construction error.
func New(logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	set, err := registry.Load()
	if err != nil {
		return nil, err
	}
	return &Engine{
		set:    set,
		eval:   checks.NewEvaluator(logger),
		logger: logger.With("component", "verify"),
	}, nil
}

// Run executes one verification run.
func (e *Engine) Run(opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.ConfigPath != "" {
		cfg, err := LoadRunConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.apply(opts)
	}
	if opts.RegistryDir != "" {
		if err := e.set.VerifyCanonical(opts.RegistryDir); err != nil {
			return nil, err
		}
	}

	profile := opts.Profile
	if profile == "" {
		profile = "standard"
	}
	mode := opts.Mode
	if mode == "" {
		mode = e.defaultMode(profile)
	}
	target := opts.DeliveryTarget
	if target == "" {
		target = "pdf"
	}

	in, err := e.buildInput(opts, profile, target)
	if err != nil {
		return nil, err
	}

	res := correlate.Merge(e.eval.Evaluate(in))

	cov := e.aggregateCoverage(opts.Metrics, res.Findings)

	gate, gateFailed := e.verifierGate(profile, mode, res.Findings)

	audits, err := pmr.BuildAudits(&pmr.BuildInput{
		Set:        e.set,
		Profile:    profile,
		Mount:      opts.Mount,
		Parity:     opts.Parity,
		Metrics:    opts.Metrics,
		Findings:   res.Findings,
		Thresholds: in.Thresholds,
		ConditionInput: map[string]any{
			"profile":         profile,
			"delivery_target": target,
			"has_raster":      in.Raster != nil,
			"has_mount":       opts.Mount != nil,
		},
	})
	if err != nil {
		return nil, err
	}
	rank, err := pmr.Score(e.set.Audit, audits)
	if err != nil {
		return nil, err
	}
	pmrGate := pmr.EvaluateGate(e.set.Audit, profile, mode, audits)
	for _, id := range pmrGate.FailedAuditIDs {
		gateFailed[id] = true
	}

	tooling, err := report.NewTooling(e.set)
	if err != nil {
		return nil, err
	}
	generatedAt := time.Now().UTC()
	if opts.GeneratedAt != nil {
		generatedAt = opts.GeneratedAt.UTC()
	}
	index := res.Index(gateFailed)

	verifier := report.NewVerifier(generatedAt, profile, mode, gate, res, cov, index, tooling)
	rankRep := report.NewPMR(generatedAt, profile, mode, rank, pmrGate, audits, index, tooling)

	verifierJSON, err := report.Encode(verifier)
	if err != nil {
		return nil, err
	}
	if err := report.ValidateVerifier(verifierJSON); err != nil {
		return nil, err
	}
	pmrJSON, err := report.Encode(rankRep)
	if err != nil {
		return nil, err
	}
	if err := report.ValidatePMR(pmrJSON); err != nil {
		return nil, err
	}

	e.logger.Info("run complete",
		"profile", profile,
		"mode", mode,
		"verifier_gate_ok", gate.OK,
		"pmr_gate_ok", pmrGate.OK,
		"pmr_score", rank.Score,
		"findings", len(res.Findings))

	return &Result{
		Verifier:     verifier,
		PMR:          rankRep,
		VerifierJSON: verifierJSON,
		PMRJSON:      pmrJSON,
	}, nil
}

func (e *Engine) buildInput(opts *Options, profile, target string) (*checks.Input, error) {
	htmlText := opts.HTML
	if htmlText == "" && opts.HTMLPath != "" {
		data, err := os.ReadFile(opts.HTMLPath)
		if err != nil {
			return nil, fmt.Errorf("read document %q: %w", opts.HTMLPath, err)
		}
		htmlText = string(data)
	}
	cssText := opts.CSS
	if cssText == "" && opts.CSSPath != "" {
		data, err := os.ReadFile(opts.CSSPath)
		if err != nil {
			return nil, fmt.Errorf("read stylesheet %q: %w", opts.CSSPath, err)
		}
		cssText = string(data)
	}

	var doc *html.Node
	if htmlText != "" {
		parsed, err := html.Parse(strings.NewReader(htmlText))
		if err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		doc = parsed
	}

	var raster image.Image
	if opts.RasterPath != "" {
		f, err := os.Open(opts.RasterPath)
		if err != nil {
			return nil, fmt.Errorf("open raster %q: %w", opts.RasterPath, err)
		}
		raster, err = png.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode raster %q: %w", opts.RasterPath, err)
		}
	}

	return &checks.Input{
		HTML:           htmlText,
		CSS:            cssText,
		Doc:            doc,
		Profile:        profile,
		DeliveryTarget: target,
		PreRender:      opts.PreRender,
		Mount:          opts.Mount,
		Parity:         opts.Parity,
		Metrics:        opts.Metrics,
		Raster:         raster,
		Claims:         opts.Claims,
		Registries:     e.set,
		Thresholds:     e.thresholds(profile, opts.Thresholds),
		Logger:         e.logger,
	}, nil
}

// defaultMode comes from the audit registry's profile definition.
func (e *Engine) defaultMode(profile string) string {
	if p, ok := e.set.Audit.Profile(profile); ok && p.DefaultMode != "" {
		return p.DefaultMode
	}
	return "warn"
}

// thresholds merges profile override thresholds from every registry, then
// explicit run thresholds on top.
func (e *Engine) thresholds(profile string, extra map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for _, name := range registry.Names() {
		p, ok := e.set.ByName(name).Profile(profile)
		if !ok {
			continue
		}
		for _, o := range p.Overrides {
			for k, v := range o.Thresholds {
				out[k] = v
			}
		}
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// aggregateCoverage prefers the engine-native coverage block and falls
// back to the local aggregator when the payload is absent or defective.
func (e *Engine) aggregateCoverage(metrics *evidence.RunMetrics, findings []*checks.Finding) *coverage.Report {
	agg := coverage.Select(metrics)
	cov, err := agg.Aggregate(e.set, findings)
	if err == nil {
		return cov
	}
	if agg.Name() != "local" {
		e.logger.Warn("native coverage rejected, falling back to local aggregation", "error", err)
		if cov, err = (coverage.Local{}).Aggregate(e.set, findings); err == nil {
			return cov
		}
	}
	// The local aggregator over validated registries cannot produce
	// inconsistent arithmetic; reaching this means a registry defect the
	// loader should have caught.
	e.logger.Error("coverage aggregation failed", "error", err)
	return &coverage.Report{
		WCAG: coverage.Summary{ImplementedMappedResultCounts: map[string]int{}},
		S508: coverage.Summary{ImplementedMappedResultCounts: map[string]int{}},
	}
}

// verifierGate decides the go/no-go outcome for the verifier envelope. A
// rule blocks when it failed and is must-pass for the profile or gated at
// error level.
func (e *Engine) verifierGate(profile, mode string, findings []*checks.Finding) (report.Gate, map[string]bool) {
	gateFailed := make(map[string]bool)
	if mode == "off" {
		return report.Gate{OK: true}, gateFailed
	}

	var failed []string
	for _, f := range findings {
		if f.Verdict != checks.VerdictFail {
			continue
		}
		if e.ruleBlocks(profile, f.RuleID) {
			failed = append(failed, f.RuleID)
			gateFailed[f.RuleID] = true
		}
	}
	sort.Strings(failed)

	ok := true
	if mode == "error" {
		ok = len(failed) == 0
	}
	return report.Gate{OK: ok, FailedRuleIDs: failed}, gateFailed
}

func (e *Engine) ruleBlocks(profile, ruleID string) bool {
	for _, name := range registry.Names() {
		reg := e.set.ByName(name)
		entry, ok := reg.EntryForRule(verifierSystem, ruleID)
		if !ok {
			continue
		}
		level := entry.DefaultGateLevel
		must := false
		if p, found := reg.Profile(profile); found {
			for _, o := range p.Overrides {
				if o.TargetID != entry.ID && o.TargetID != ruleID {
					continue
				}
				if o.GateLevel != "" {
					level = o.GateLevel
				}
				if o.MustPass != nil {
					must = *o.MustPass
				}
			}
		}
		if must || level == registry.GateError {
			return true
		}
	}
	return false
}
