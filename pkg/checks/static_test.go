package checks

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullbleed/verify/pkg/evidence"
	"github.com/fullbleed/verify/pkg/registry"
)

func parseDoc(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func testInput(t *testing.T, markup string) *Input {
	t.Helper()
	set, err := registry.Load()
	require.NoError(t, err)
	in := &Input{
		Profile:        "standard",
		DeliveryTarget: "pdf",
		Registries:     set,
	}
	if markup != "" {
		in.HTML = markup
		in.Doc = parseDoc(t, markup)
	}
	return in
}

func TestHeadingsLabeled(t *testing.T) {
	in := testInput(t, `<html><body><h1>Title</h1><h2></h2><label></label></body></html>`)
	f := headingsLabeled{}.Run(in)
	assert.Equal(t, VerdictFail, f.Verdict)

	v, ok := f.Evidence[0].Get("empty_heading_count")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.Int)
	v, _ = f.Evidence[0].Get("empty_label_count")
	assert.Equal(t, int64(1), v.Int)

	in = testInput(t, `<html><body><h1>Title</h1><h2 aria-label="Totals"></h2><section aria-label="Summary"></section></body></html>`)
	assert.Equal(t, VerdictPass, headingsLabeled{}.Run(in).Verdict)

	in = testInput(t, "")
	assert.Equal(t, VerdictManualNeeded, headingsLabeled{}.Run(in).Verdict)
}

func TestLangDeclared(t *testing.T) {
	assert.Equal(t, VerdictPass,
		langDeclared{}.Run(testInput(t, `<html lang="en"><body></body></html>`)).Verdict)
	assert.Equal(t, VerdictFail,
		langDeclared{}.Run(testInput(t, `<html><body></body></html>`)).Verdict)
	assert.Equal(t, VerdictFail,
		langDeclared{}.Run(testInput(t, `<html lang=" "><body></body></html>`)).Verdict)
}

func TestTitlePresent(t *testing.T) {
	assert.Equal(t, VerdictPass,
		titlePresent{}.Run(testInput(t, `<html><head><title>Report</title></head></html>`)).Verdict)
	assert.Equal(t, VerdictFail,
		titlePresent{}.Run(testInput(t, `<html><head><title></title></head></html>`)).Verdict)
}

func TestImgAltPresent(t *testing.T) {
	assert.Equal(t, VerdictNotApplicable,
		imgAltPresent{}.Run(testInput(t, `<html><body><p>text</p></body></html>`)).Verdict)
	assert.Equal(t, VerdictPass,
		imgAltPresent{}.Run(testInput(t, `<html><body><img src="a.png" alt="chart"><img src="b.png" alt=""></body></html>`)).Verdict,
		"empty alt is an explicit decorative marker")
	assert.Equal(t, VerdictFail,
		imgAltPresent{}.Run(testInput(t, `<html><body><img src="a.png"></body></html>`)).Verdict)
}

func TestTableHeaders(t *testing.T) {
	assert.Equal(t, VerdictNotApplicable,
		tableHeaders{}.Run(testInput(t, `<html><body></body></html>`)).Verdict)
	assert.Equal(t, VerdictPass,
		tableHeaders{}.Run(testInput(t, `<html><body><table><tr><th>A</th></tr></table></body></html>`)).Verdict)
	assert.Equal(t, VerdictFail,
		tableHeaders{}.Run(testInput(t, `<html><body><table><tr><td>1</td></tr></table></body></html>`)).Verdict)
}

func TestLinkPurpose(t *testing.T) {
	assert.Equal(t, VerdictNotApplicable,
		linkPurpose{}.Run(testInput(t, `<html><body><a name="anchor"></a></body></html>`)).Verdict)
	assert.Equal(t, VerdictPass,
		linkPurpose{}.Run(testInput(t, `<html><body><a href="/d">Details</a><a href="/i" aria-label="Index"></a></body></html>`)).Verdict)
	assert.Equal(t, VerdictFail,
		linkPurpose{}.Run(testInput(t, `<html><body><a href="/d"></a></body></html>`)).Verdict)
}

func TestSensoryCharacteristics(t *testing.T) {
	f := sensoryCharacteristics{}.Run(testInput(t,
		`<html><body><p>Click the button to the right of the form.</p></body></html>`))
	assert.Equal(t, VerdictWarn, f.Verdict)
	v, ok := f.Evidence[0].Get("matched_phrases")
	require.True(t, ok)
	assert.Contains(t, v.StrList, "to the right")

	assert.Equal(t, VerdictPass, sensoryCharacteristics{}.Run(testInput(t,
		`<html><body><p>Select Submit to continue.</p></body></html>`)).Verdict)
}

func TestFocusVisible(t *testing.T) {
	in := testInput(t, `<html></html>`)
	assert.Equal(t, VerdictManualNeeded, focusVisible{}.Run(in).Verdict)

	in.CSS = `p { color: black } a:focus { outline: none; }`
	assert.Equal(t, VerdictFail, focusVisible{}.Run(in).Verdict)

	in.CSS = `a:focus { outline: none; box-shadow: 0 0 2px blue; }`
	assert.Equal(t, VerdictPass, focusVisible{}.Run(in).Verdict)

	in.CSS = `p { color: black }`
	f := focusVisible{}.Run(in)
	assert.Equal(t, VerdictPass, f.Verdict, "no :focus rule keeps the default ring")
}

func glyphRaster(fg color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.White)
		}
	}
	for y := 20; y < 30; y++ {
		for x := 20; x < 30; x++ {
			img.Set(x, y, fg)
		}
	}
	return img
}

func TestContrastMinimum(t *testing.T) {
	box := evidence.GlyphBox{Page: 1, X: 20, Y: 20, W: 10, H: 10}

	in := testInput(t, `<html></html>`)
	assert.Equal(t, VerdictManualNeeded, contrastMinimum{}.Run(in).Verdict)

	in.Raster = glyphRaster(color.Black)
	in.Mount = &evidence.MountReport{GlyphBoxes: []evidence.GlyphBox{box}}
	f := contrastMinimum{}.Run(in)
	assert.Equal(t, VerdictPass, f.Verdict)
	v, ok := f.Evidence[0].Get("min_contrast_ratio")
	require.True(t, ok)
	assert.Greater(t, v.Float, 20.0)

	in.Raster = glyphRaster(color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff})
	assert.Equal(t, VerdictFail, contrastMinimum{}.Run(in).Verdict)

	in.Mount = &evidence.MountReport{GlyphBoxes: []evidence.GlyphBox{{Page: 1, X: 500, Y: 500, W: 5, H: 5}}}
	assert.Equal(t, VerdictManualNeeded, contrastMinimum{}.Run(in).Verdict,
		"boxes outside the raster leave nothing to sample")
}

func TestDocumentOnlyContent(t *testing.T) {
	in := testInput(t, `<html><body><p>Final copy.</p></body></html>`)
	assert.Equal(t, VerdictManualNeeded, documentOnlyContent{}.Run(in).Verdict)

	in.Parity = &evidence.ParityReport{SourcePageCount: 2, RenderPageCount: 2}
	assert.Equal(t, VerdictPass, documentOnlyContent{}.Run(in).Verdict)

	in.Parity = &evidence.ParityReport{SourcePageCount: 1, RenderPageCount: 2}
	assert.Equal(t, VerdictFail, documentOnlyContent{}.Run(in).Verdict)

	leaked := testInput(t, `<html><body><p>do not publish</p></body></html>`)
	leaked.Parity = &evidence.ParityReport{SourcePageCount: 1, RenderPageCount: 1}
	f := documentOnlyContent{}.Run(leaked)
	assert.Equal(t, VerdictFail, f.Verdict, "marker matching is case insensitive")
	v, ok := f.Evidence[0].Get("leaked_markers")
	require.True(t, ok)
	assert.Contains(t, v.StrList, "DO NOT PUBLISH")
}
