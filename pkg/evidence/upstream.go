package evidence

import (
	"encoding/json"
	"fmt"
)

// Diagnostic is one authoring-stage accessibility diagnostic reported by
// the upstream pre-render pipeline.
type Diagnostic struct {
	Code   string `json:"code"`
	Count  int    `json:"count"`
	Detail string `json:"detail,omitempty"`
}

// PreRenderReport carries the upstream pre-render accessibility
// diagnostics for the document under verification.
type PreRenderReport struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// GlyphBox is a rendered glyph position in raster coordinates, used by the
// contrast heuristic to sample foreground and background pixels.
type GlyphBox struct {
	Page int `json:"page"`
	X    int `json:"x"`
	Y    int `json:"y"`
	W    int `json:"w"`
	H    int `json:"h"`
}

// MountReport carries mount-validation results from the render pipeline:
// overflow and content-loss counts plus rendered-tree facts the post-emit
// checks consume.
type MountReport struct {
	OverflowCount    int        `json:"overflow_count"`
	ContentLossCount int        `json:"content_loss_count"`
	MountedNodeCount int        `json:"mounted_node_count"`
	MarginBoxesValid *bool      `json:"margin_boxes_valid,omitempty"`
	TaggedOutput     *bool      `json:"tagged_output,omitempty"`
	GlyphBoxes       []GlyphBox `json:"glyph_boxes,omitempty"`
}

// ParityReport carries declared-source versus rendered page counts.
// ParityTarget is the declared target page count; zero means the source
// count is the target.
type ParityReport struct {
	SourcePageCount int `json:"source_page_count"`
	RenderPageCount int `json:"render_page_count"`
	ParityTarget    int `json:"parity_target,omitempty"`
}

// RunMetrics carries renderer run metrics. NativeCoverage, when present,
// is the engine-computed coverage block preferred over the local fallback.
type RunMetrics struct {
	RenderMillis     int64           `json:"render_millis,omitempty"`
	FontsEmbedded    *bool           `json:"fonts_embedded,omitempty"`
	RenderHashStable *bool           `json:"render_hash_stable,omitempty"`
	ImageMinDPI      int             `json:"image_min_dpi,omitempty"`
	NativeCoverage   json.RawMessage `json:"native_coverage,omitempty"`
}

// ParsePreRenderReport decodes an upstream pre-render diagnostics report.
func ParsePreRenderReport(data []byte) (*PreRenderReport, error) {
	var r PreRenderReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("evidence: parse pre-render report: %w", err)
	}
	return &r, nil
}

// ParseMountReport decodes a mount-validation report.
func ParseMountReport(data []byte) (*MountReport, error) {
	var r MountReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("evidence: parse mount report: %w", err)
	}
	return &r, nil
}

// ParseParityReport decodes a page-count parity report.
func ParseParityReport(data []byte) (*ParityReport, error) {
	var r ParityReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("evidence: parse parity report: %w", err)
	}
	return &r, nil
}

// ParseRunMetrics decodes a renderer run-metrics report.
func ParseRunMetrics(data []byte) (*RunMetrics, error) {
	var r RunMetrics
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("evidence: parse run metrics: %w", err)
	}
	return &r, nil
}
