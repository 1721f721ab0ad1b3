package checks

import (
	"image"
	"math"

	"github.com/fullbleed/verify/pkg/evidence"
)

// contrastMinimum samples the rendered-preview raster at reported glyph
// positions and estimates the worst foreground/background contrast ratio.
// It needs both the raster and the mount report's glyph boxes; absent
// either, the check degrades to manual review.
type contrastMinimum struct{}

func (contrastMinimum) ID() string { return "fb.a11y.contrast.minimum" }

func (c contrastMinimum) Run(in *Input) *Finding {
	if in.Raster == nil {
		return manualNeeded(c.ID(), "rendered-preview raster unavailable")
	}
	if in.Mount == nil || len(in.Mount.GlyphBoxes) == 0 {
		return manualNeeded(c.ID(), "glyph positions unavailable")
	}

	threshold := in.Threshold("contrast_ratio", 4.5)
	minRatio := math.Inf(1)
	sampled := 0
	for _, box := range in.Mount.GlyphBoxes {
		ratio, ok := sampleContrast(in.Raster, box.X, box.Y, box.W, box.H)
		if !ok {
			continue
		}
		sampled++
		if ratio < minRatio {
			minRatio = ratio
		}
	}
	if sampled == 0 {
		return manualNeeded(c.ID(), "no glyph box intersects the raster")
	}

	rec := evidence.NewRecord().
		Set("sampled_glyph_count", evidence.IntValue(int64(sampled))).
		Set("min_contrast_ratio", evidence.FloatValue(round2(minRatio))).
		Set("threshold", evidence.FloatValue(threshold))
	if minRatio < threshold {
		return finding(c.ID(), VerdictFail, rec)
	}
	return finding(c.ID(), VerdictPass, rec)
}

// sampleContrast compares the glyph-center pixel against a pixel just
// outside the glyph box, a cheap stand-in for full glyph segmentation.
func sampleContrast(img image.Image, x, y, w, h int) (float64, bool) {
	bounds := img.Bounds()
	cx, cy := x+w/2, y+h/2
	bx, by := x-2, y+h/2
	if bx < bounds.Min.X {
		bx = x + w + 2
	}
	if !inBounds(bounds, cx, cy) || !inBounds(bounds, bx, by) {
		return 0, false
	}
	fg := relativeLuminance(img.At(cx, cy).RGBA())
	bg := relativeLuminance(img.At(bx, by).RGBA())
	lighter, darker := fg, bg
	if darker > lighter {
		lighter, darker = darker, lighter
	}
	return (lighter + 0.05) / (darker + 0.05), true
}

func inBounds(b image.Rectangle, x, y int) bool {
	return x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y
}

// relativeLuminance implements the WCAG 2.0 relative luminance formula
// over 16-bit premultiplied channel values.
func relativeLuminance(r, g, b, _ uint32) float64 {
	lin := func(c uint32) float64 {
		s := float64(c) / 0xffff
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(r) + 0.7152*lin(g) + 0.0722*lin(b)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
