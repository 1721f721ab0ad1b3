package checks

import (
	"strings"

	"github.com/fullbleed/verify/pkg/evidence"
)

// focusVisible verifies the stylesheet keeps keyboard focus visible: a
// :focus rule must exist, and it must not suppress the outline without a
// replacement indicator.
type focusVisible struct{}

func (focusVisible) ID() string { return "fb.a11y.focus.visible" }

func (c focusVisible) Run(in *Input) *Finding {
	if strings.TrimSpace(in.CSS) == "" {
		return manualNeeded(c.ID(), "computed stylesheet unavailable")
	}

	blocks := focusRuleBlocks(in.CSS)
	rec := evidence.NewRecord().
		Set("focus_rule_count", evidence.IntValue(int64(len(blocks))))

	if len(blocks) == 0 {
		// Browsers keep the default focus ring when no :focus rule exists.
		rec.Set("default_indicator", evidence.BoolValue(true))
		return finding(c.ID(), VerdictPass, rec)
	}

	suppressed := 0
	for _, body := range blocks {
		if suppressesOutline(body) && !declaresIndicator(body) {
			suppressed++
		}
	}
	rec.Set("suppressed_without_replacement", evidence.IntValue(int64(suppressed)))
	if suppressed > 0 {
		return finding(c.ID(), VerdictFail, rec)
	}
	return finding(c.ID(), VerdictPass, rec)
}

// focusRuleBlocks extracts the declaration bodies of rules whose selector
// mentions :focus. A tokenizer is deliberately not used: the inputs are
// renderer-computed stylesheets, already normalized.
func focusRuleBlocks(css string) []string {
	var blocks []string
	rest := css
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		selector := rest[:open]
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			break
		}
		body := rest[open+1 : open+close]
		if strings.Contains(selector, ":focus") {
			blocks = append(blocks, body)
		}
		rest = rest[open+close+1:]
	}
	return blocks
}

func suppressesOutline(body string) bool {
	b := strings.ToLower(body)
	return strings.Contains(b, "outline:none") ||
		strings.Contains(b, "outline: none") ||
		strings.Contains(b, "outline:0") ||
		strings.Contains(b, "outline: 0")
}

func declaresIndicator(body string) bool {
	b := strings.ToLower(body)
	for _, prop := range []string{"box-shadow", "border", "background", "text-decoration"} {
		if strings.Contains(b, prop) {
			return true
		}
	}
	return false
}
