package checks

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/fullbleed/verify/pkg/evidence"
)

// documentOnlyContent is the canonical-accessible-variant check: the
// rendered page count must match the declared source count, and no
// review-pipeline text may leak into the delivered document. The registry
// scopes it to the "cav" profile family.
type documentOnlyContent struct{}

func (documentOnlyContent) ID() string { return "fb.a11y.cav.document_only_content" }

func (c documentOnlyContent) Run(in *Input) *Finding {
	if in.Parity == nil {
		return manualNeeded(c.ID(), "page-count parity data unavailable")
	}
	if in.Doc == nil {
		return manualNeeded(c.ID(), "document markup unavailable")
	}

	leaks := reviewQueueLeaks(in)
	countsMatch := in.Parity.SourcePageCount == in.Parity.RenderPageCount

	rec := evidence.NewRecord().
		Set("source_page_count", evidence.IntValue(int64(in.Parity.SourcePageCount))).
		Set("render_page_count", evidence.IntValue(int64(in.Parity.RenderPageCount))).
		Set("page_counts_match", evidence.BoolValue(countsMatch)).
		Set("leaked_markers", evidence.StringsValue(leaks))

	if !countsMatch || len(leaks) > 0 {
		return finding(c.ID(), VerdictFail, rec)
	}
	return finding(c.ID(), VerdictPass, rec)
}

// reviewQueueLeaks scans the normalized document text for the registry's
// review-pipeline markers.
func reviewQueueLeaks(in *Input) []string {
	markers := in.Registries.Audit.Phrases("phrases.review_queue")
	text := strings.ToUpper(norm.NFC.String(textContent(in.Doc)))
	var leaks []string
	for _, m := range markers {
		if strings.Contains(text, strings.ToUpper(norm.NFC.String(m))) {
			leaks = append(leaks, m)
		}
	}
	return leaks
}
