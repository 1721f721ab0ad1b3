package coverage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fullbleed/verify/pkg/checks"
	"github.com/fullbleed/verify/pkg/evidence"
	"github.com/fullbleed/verify/pkg/registry"
)

// Native adopts the coverage block computed by the rendering engine
// itself. Its payload arrives in the run metrics; the aggregator only
// decodes and validates it. Any defect in the payload is returned as an
// error so the caller can fall back to the local aggregator.
type Native struct {
	raw json.RawMessage
}

// Name identifies the engine-provided implementation.
func (Native) Name() string { return "native" }

// Aggregate decodes the engine payload and checks its arithmetic against
// the loaded registries. Findings are not consulted; the engine already
// folded them in.
func (n Native) Aggregate(set *registry.Set, _ []*checks.Finding) (*Report, error) {
	if len(n.raw) == 0 {
		return nil, fmt.Errorf("native coverage: empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(n.raw))
	dec.DisallowUnknownFields()

	var rep Report
	if err := dec.Decode(&rep); err != nil {
		return nil, fmt.Errorf("native coverage: decode: %w", err)
	}
	if rep.WCAG.ImplementedMappedResultCounts == nil {
		rep.WCAG.ImplementedMappedResultCounts = make(map[string]int)
	}
	if rep.S508.ImplementedMappedResultCounts == nil {
		rep.S508.ImplementedMappedResultCounts = make(map[string]int)
	}

	if got, want := rep.WCAG.TotalEntries, len(set.WCAG.Entries); got != want {
		return nil, fmt.Errorf("native coverage: wcag total %d, registry has %d", got, want)
	}
	wantS508 := set.S508.Scope.Counts["specific_entries_total"] +
		set.S508.Scope.Counts["inherited_wcag_entries_total"]
	if got := rep.S508.TotalEntries; got != wantS508 {
		return nil, fmt.Errorf("native coverage: section508 total %d, registry declares %d", got, wantS508)
	}
	if err := rep.Validate(); err != nil {
		return nil, fmt.Errorf("native coverage: %w", err)
	}
	return &rep, nil
}

// Select picks the native aggregator when the run metrics carry an engine
// coverage payload, the local fallback otherwise.
func Select(metrics *evidence.RunMetrics) Aggregator {
	if metrics != nil && len(metrics.NativeCoverage) > 0 {
		return Native{raw: metrics.NativeCoverage}
	}
	return Local{}
}
