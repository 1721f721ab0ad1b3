package checks

import (
	"errors"
	"image"
	"log/slog"
	"sort"

	"golang.org/x/net/html"

	"github.com/fullbleed/verify/pkg/evidence"
	"github.com/fullbleed/verify/pkg/registry"
)

// ErrEvidenceUnavailable marks a check input that was declared but not
// supplied. It is never fatal; the affected check degrades to
// manual_needed.
var ErrEvidenceUnavailable = errors.New("required evidence unavailable")

// Input is the full evidence context one evaluation run sees. All fields
// except Registries and Profile are optional; checks degrade per field.
type Input struct {
	HTML           string
	CSS            string
	Doc            *html.Node
	Profile        string
	DeliveryTarget string // "pdf" or "html"

	PreRender *evidence.PreRenderReport
	Mount     *evidence.MountReport
	Parity    *evidence.ParityReport
	Metrics   *evidence.RunMetrics
	Raster    image.Image
	Claims    *evidence.Claims

	Registries *registry.Set
	Thresholds map[string]float64
	Logger     *slog.Logger
}

// Threshold returns a profile-resolved threshold with a default.
func (in *Input) Threshold(name string, def float64) float64 {
	if v, ok := in.Thresholds[name]; ok {
		return v
	}
	return def
}

// conditionInput is the evidence view CEL applicability conditions see.
func (in *Input) conditionInput() map[string]any {
	return map[string]any{
		"profile":         in.Profile,
		"delivery_target": in.DeliveryTarget,
		"has_raster":      in.Raster != nil,
		"has_mount":       in.Mount != nil,
	}
}

// Check is one verifier rule check. Run must not panic; every failure
// mode is expressed through the returned Finding.
type Check interface {
	ID() string
	Run(in *Input) *Finding
}

// diagnosticRules maps upstream pre-render diagnostic codes onto the
// canonical rule each one anticipates.
var diagnosticRules = map[string]string{
	"HEADING_EMPTY":         "fb.a11y.headings.labeled",
	"LABEL_EMPTY":           "fb.a11y.headings.labeled",
	"REGION_UNLABELED":      "fb.a11y.headings.labeled",
	"ALT_MISSING":           "fb.a11y.img.alt_present",
	"LANG_MISSING":          "fb.a11y.lang.declared",
	"TITLE_MISSING":         "fb.a11y.title.present",
	"LINK_EMPTY":            "fb.a11y.link.purpose",
	"TABLE_HEADERS_MISSING": "fb.a11y.table.headers",
}

// Evaluator runs the registered checks for a profile.
type Evaluator struct {
	checks []Check
	logger *slog.Logger
}

// NewEvaluator creates an evaluator with the full built-in check set.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		checks: []Check{
			&headingsLabeled{},
			&langDeclared{},
			&titlePresent{},
			&imgAltPresent{},
			&tableHeaders{},
			&linkPurpose{},
			&sensoryCharacteristics{},
			&focusVisible{},
			&contrastMinimum{},
			&keyboardOperableSeed{},
			&technologySupportBaseline{},
			&nonwebExceptions{},
			&documentOnlyContent{},
		},
		logger: logger.With("component", "checks"),
	}
}

// Evaluate runs every check, applies conditional applicability and the
// claim evidence resolver, and appends pre-render findings derived from
// upstream diagnostics. Output order is deterministic.
func (e *Evaluator) Evaluate(in *Input) []*Finding {
	condInput := in.conditionInput()
	findings := make([]*Finding, 0, len(e.checks))

	for _, c := range e.checks {
		entry := e.entryFor(in, c.ID())

		f := e.runOne(in, c, entry, condInput)
		if entry != nil {
			f.Applicability = string(entry.Applicability)
		} else if f.Applicability == "" {
			f.Applicability = string(registry.ApplicabilityAlways)
		}
		e.resolveClaims(in, entry, f)
		findings = append(findings, f)
	}

	findings = append(findings, e.diagnosticFindings(in)...)

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].RuleID != findings[j].RuleID {
			return findings[i].RuleID < findings[j].RuleID
		}
		return findings[i].SourceID < findings[j].SourceID
	})
	return findings
}

func (e *Evaluator) runOne(in *Input, c Check, entry *registry.Entry, condInput map[string]any) *Finding {
	if entry != nil && entry.Applicability == registry.ApplicabilityConditional {
		applies, err := in.Registries.ConditionApplies(entry.ID, condInput)
		if err != nil {
			e.logger.Warn("applicability condition failed, degrading to manual",
				"rule", c.ID(), "error", err)
			return manualNeeded(c.ID(), "applicability condition unevaluable")
		}
		if !applies {
			return &Finding{
				RuleID:        c.ID(),
				Stage:         StagePostEmit,
				Verdict:       VerdictNotApplicable,
				Applicability: string(registry.ApplicabilityConditional),
				Evidence: []*evidence.Record{
					evidence.NewRecord().
						Set("condition", evidence.StringValue(entry.Condition)).
						Set("delivery_target", evidence.StringValue(in.DeliveryTarget)).
						Set("profile", evidence.StringValue(in.Profile)),
				},
			}
		}
	}
	return c.Run(in)
}

// entryFor finds the registry entry owning a rule id, searching every
// registry in fingerprint order.
func (e *Evaluator) entryFor(in *Input, ruleID string) *registry.Entry {
	for _, name := range registry.Names() {
		if entry, ok := in.Registries.ByName(name).EntryForRule("a11y_verifier", ruleID); ok {
			return entry
		}
	}
	return nil
}

// resolveClaims upgrades a manual_needed finding to pass when the entry's
// claim evidence requirements are fully attested. Proven not_applicable
// results are never overridden.
func (e *Evaluator) resolveClaims(in *Input, entry *registry.Entry, f *Finding) {
	if entry == nil || f.Verdict != VerdictManualNeeded {
		return
	}
	reg := e.registryOf(in, entry)
	if reg == nil {
		return
	}
	for _, reqID := range entry.EvidenceReqs {
		req, ok := reg.Catalog[reqID]
		if !ok || req.Group == "" || len(req.Fields) == 0 {
			continue
		}
		if in.Claims.AllTrue(req.Group, req.Fields...) {
			f.Verdict = VerdictPass
			f.AddEvidence(evidence.NewRecord().
				Set("claim_group", evidence.StringValue(req.Group)).
				Set("claim_fields", evidence.StringsValue(req.Fields)).
				Set("attested", evidence.BoolValue(true)))
			return
		}
	}
}

func (e *Evaluator) registryOf(in *Input, entry *registry.Entry) *registry.Registry {
	for _, name := range registry.Names() {
		reg := in.Registries.ByName(name)
		if _, ok := reg.Entry(entry.ID); ok {
			return reg
		}
	}
	return nil
}

// diagnosticFindings converts upstream pre-render diagnostics into
// pre-render findings against their canonical rules.
func (e *Evaluator) diagnosticFindings(in *Input) []*Finding {
	if in.PreRender == nil {
		return nil
	}
	out := make([]*Finding, 0, len(in.PreRender.Diagnostics))
	for _, d := range in.PreRender.Diagnostics {
		ruleID, ok := diagnosticRules[d.Code]
		if !ok {
			e.logger.Debug("unmapped pre-render diagnostic", "code", d.Code)
			continue
		}
		rec := evidence.NewRecord().
			Set("diagnostic_code", evidence.StringValue(d.Code)).
			Set("count", evidence.IntValue(int64(d.Count)))
		if d.Detail != "" {
			rec.Set("detail", evidence.StringValue(d.Detail))
		}
		out = append(out, &Finding{
			RuleID:        ruleID,
			Stage:         StagePreRender,
			Verdict:       VerdictFail,
			Applicability: string(registry.ApplicabilityAlways),
			SourceID:      d.Code,
			Evidence:      []*evidence.Record{rec},
		})
	}
	return out
}

// manualNeeded builds the degraded finding for missing evidence.
func manualNeeded(ruleID, reason string) *Finding {
	return &Finding{
		RuleID:        ruleID,
		Stage:         StagePostEmit,
		Verdict:       VerdictManualNeeded,
		Applicability: string(registry.ApplicabilityAlways),
		Evidence: []*evidence.Record{
			evidence.NewRecord().Set("reason", evidence.StringValue(reason)),
		},
	}
}

// finding builds a post-emit finding with one evidence record.
func finding(ruleID string, verdict Verdict, rec *evidence.Record) *Finding {
	f := &Finding{
		RuleID:        ruleID,
		Stage:         StagePostEmit,
		Verdict:       verdict,
		Applicability: string(registry.ApplicabilityAlways),
	}
	if rec != nil {
		f.Evidence = []*evidence.Record{rec}
	}
	return f
}
