// Package report assembles, fingerprints, and schema-validates the two
// machine-readable report envelopes: the accessibility verifier report
// and the Paged Media Rank report. Envelopes are deterministic: the same
// inputs and the same generated_at produce byte-identical JSON.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fullbleed/verify/pkg/checks"
	"github.com/fullbleed/verify/pkg/correlate"
	"github.com/fullbleed/verify/pkg/coverage"
	"github.com/fullbleed/verify/pkg/pmr"
)

const (
	// VerifierSchema identifies the accessibility verifier envelope.
	VerifierSchema = "fullbleed.a11y.verify.v1"
	// PMRSchema identifies the Paged Media Rank envelope.
	PMRSchema = "fullbleed.pmr.v1"

	// ContractID names the verification contract both envelopes carry.
	ContractID = "fullbleed.verify"
	// ContractVersion is bumped whenever registry semantics change.
	ContractVersion = "1.2.0"
)

// Gate is the verifier go/no-go outcome.
type Gate struct {
	OK            bool     `json:"ok"`
	FailedRuleIDs []string `json:"failed_rule_ids,omitempty"`
}

// Tooling identifies the contract a report was produced under. The
// fingerprint covers the exact registry bytes, so two reports with equal
// fingerprints were judged by identical rules.
type Tooling struct {
	ContractID          string `json:"contract_id"`
	ContractVersion     string `json:"contract_version"`
	ContractFingerprint string `json:"contract_fingerprint"`
}

// Observability carries the run counters CI dashboards consume.
type Observability struct {
	ReportedFindingCount int                  `json:"reported_finding_count,omitempty"`
	ReportedAuditCount   int                  `json:"reported_audit_count,omitempty"`
	StageCounts          map[string]int       `json:"stage_counts,omitempty"`
	VerdictCounts        map[string]int       `json:"verdict_counts"`
	CategoryCounts       map[string]int       `json:"category_counts,omitempty"`
	DedupEventCount      int                  `json:"dedup_event_count"`
	CorrelatedFindings   int                  `json:"correlated_finding_count"`
	CorrelationIndex     []correlate.IndexRow `json:"correlation_index"`
}

// Verifier is the fullbleed.a11y.verify.v1 envelope.
type Verifier struct {
	Schema        string            `json:"schema"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Profile       string            `json:"profile"`
	Mode          string            `json:"mode"`
	Gate          Gate              `json:"gate"`
	Findings      []*checks.Finding `json:"findings"`
	Coverage      *coverage.Report  `json:"coverage"`
	Observability Observability     `json:"observability"`
	Tooling       Tooling           `json:"tooling"`
}

// PMR is the fullbleed.pmr.v1 envelope.
type PMR struct {
	Schema        string            `json:"schema"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Profile       string            `json:"profile"`
	Mode          string            `json:"mode"`
	Rank          pmr.Rank          `json:"rank"`
	Gate          pmr.Gate          `json:"gate"`
	Audits        []pmr.AuditResult `json:"audits"`
	Observability Observability     `json:"observability"`
	Tooling       Tooling           `json:"tooling"`
}

// NewVerifier assembles the verifier envelope from correlated findings.
func NewVerifier(generatedAt time.Time, profile, mode string, gate Gate,
	res *correlate.Result, cov *coverage.Report, index []correlate.IndexRow, tooling Tooling) *Verifier {

	findings := res.Findings
	if findings == nil {
		findings = []*checks.Finding{}
	}

	stageCounts := make(map[string]int)
	verdictCounts := make(map[string]int)
	for _, f := range findings {
		stageCounts[string(f.Stage)]++
		verdictCounts[string(f.Verdict)]++
	}
	if index == nil {
		index = []correlate.IndexRow{}
	}

	return &Verifier{
		Schema:      VerifierSchema,
		GeneratedAt: generatedAt.UTC(),
		Profile:     profile,
		Mode:        mode,
		Gate:        gate,
		Findings:    findings,
		Coverage:    cov,
		Observability: Observability{
			ReportedFindingCount: len(findings),
			StageCounts:          stageCounts,
			VerdictCounts:        verdictCounts,
			DedupEventCount:      res.DedupEvents,
			CorrelatedFindings:   res.CorrelatedFindings,
			CorrelationIndex:     index,
		},
		Tooling: tooling,
	}
}

// NewPMR assembles the rank envelope.
func NewPMR(generatedAt time.Time, profile, mode string, rank pmr.Rank, gate pmr.Gate,
	audits []pmr.AuditResult, index []correlate.IndexRow, tooling Tooling) *PMR {

	if audits == nil {
		audits = []pmr.AuditResult{}
	}
	verdictCounts := make(map[string]int)
	categoryCounts := make(map[string]int)
	for _, a := range audits {
		verdictCounts[string(a.Verdict)]++
		categoryCounts[a.Category]++
	}
	if index == nil {
		index = []correlate.IndexRow{}
	}

	return &PMR{
		Schema:      PMRSchema,
		GeneratedAt: generatedAt.UTC(),
		Profile:     profile,
		Mode:        mode,
		Rank:        rank,
		Gate:        gate,
		Audits:      audits,
		Observability: Observability{
			ReportedAuditCount: len(audits),
			VerdictCounts:      verdictCounts,
			CategoryCounts:     categoryCounts,
			CorrelationIndex:   index,
		},
		Tooling: tooling,
	}
}

// Encode marshals an envelope with stable two-space indentation.
func Encode(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: encode: %w", err)
	}
	return append(out, '\n'), nil
}
