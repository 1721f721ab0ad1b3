package checks

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/fullbleed/verify/pkg/evidence"
)

// walk visits every element node in document order.
func walk(n *html.Node, visit func(*html.Node)) {
	if n == nil {
		return
	}
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// textContent collects the node's text, whitespace-collapsed.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// headingsLabeled verifies every heading, label, and labeled region
// carries non-empty descriptive text.
type headingsLabeled struct{}

func (headingsLabeled) ID() string { return "fb.a11y.headings.labeled" }

func (c headingsLabeled) Run(in *Input) *Finding {
	if in.Doc == nil {
		return manualNeeded(c.ID(), "document markup unavailable")
	}
	var emptyHeadings, emptyLabels, unlabeledRegions int64
	walk(in.Doc, func(n *html.Node) {
		switch {
		case headingTags[n.Data]:
			if textContent(n) == "" {
				if v, ok := attr(n, "aria-label"); !ok || v == "" {
					emptyHeadings++
				}
			}
		case n.Data == "label":
			if textContent(n) == "" {
				emptyLabels++
			}
		case n.Data == "section" || hasRole(n, "region"):
			if v, ok := attr(n, "aria-label"); !ok || v == "" {
				if _, ok := attr(n, "aria-labelledby"); !ok {
					unlabeledRegions++
				}
			}
		}
	})
	rec := evidence.NewRecord().
		Set("empty_heading_count", evidence.IntValue(emptyHeadings)).
		Set("empty_label_count", evidence.IntValue(emptyLabels)).
		Set("unlabeled_region_count", evidence.IntValue(unlabeledRegions))
	if emptyHeadings+emptyLabels+unlabeledRegions > 0 {
		return finding(c.ID(), VerdictFail, rec)
	}
	return finding(c.ID(), VerdictPass, rec)
}

func hasRole(n *html.Node, role string) bool {
	v, ok := attr(n, "role")
	return ok && v == role
}

// langDeclared verifies the root html element declares a language.
type langDeclared struct{}

func (langDeclared) ID() string { return "fb.a11y.lang.declared" }

func (c langDeclared) Run(in *Input) *Finding {
	if in.Doc == nil {
		return manualNeeded(c.ID(), "document markup unavailable")
	}
	lang := ""
	walk(in.Doc, func(n *html.Node) {
		if n.Data == "html" && lang == "" {
			if v, ok := attr(n, "lang"); ok {
				lang = v
			}
		}
	})
	rec := evidence.NewRecord().Set("lang", evidence.StringValue(lang))
	if strings.TrimSpace(lang) == "" {
		return finding(c.ID(), VerdictFail, rec)
	}
	return finding(c.ID(), VerdictPass, rec)
}

// titlePresent verifies the document has a non-empty title.
type titlePresent struct{}

func (titlePresent) ID() string { return "fb.a11y.title.present" }

func (c titlePresent) Run(in *Input) *Finding {
	if in.Doc == nil {
		return manualNeeded(c.ID(), "document markup unavailable")
	}
	title := ""
	walk(in.Doc, func(n *html.Node) {
		if n.Data == "title" && title == "" {
			title = textContent(n)
		}
	})
	rec := evidence.NewRecord().Set("title", evidence.StringValue(title))
	if title == "" {
		return finding(c.ID(), VerdictFail, rec)
	}
	return finding(c.ID(), VerdictPass, rec)
}

// imgAltPresent verifies every img carries an alt attribute. An empty alt
// is an explicit decorative marker and counts as present.
type imgAltPresent struct{}

func (imgAltPresent) ID() string { return "fb.a11y.img.alt_present" }

func (c imgAltPresent) Run(in *Input) *Finding {
	if in.Doc == nil {
		return manualNeeded(c.ID(), "document markup unavailable")
	}
	var total, missing int64
	walk(in.Doc, func(n *html.Node) {
		if n.Data != "img" {
			return
		}
		total++
		if _, ok := attr(n, "alt"); !ok {
			missing++
		}
	})
	rec := evidence.NewRecord().
		Set("img_count", evidence.IntValue(total)).
		Set("missing_alt_count", evidence.IntValue(missing))
	switch {
	case total == 0:
		return finding(c.ID(), VerdictNotApplicable, rec)
	case missing > 0:
		return finding(c.ID(), VerdictFail, rec)
	default:
		return finding(c.ID(), VerdictPass, rec)
	}
}

// tableHeaders verifies data tables declare header cells.
type tableHeaders struct{}

func (tableHeaders) ID() string { return "fb.a11y.table.headers" }

func (c tableHeaders) Run(in *Input) *Finding {
	if in.Doc == nil {
		return manualNeeded(c.ID(), "document markup unavailable")
	}
	var tables, headerless int64
	walk(in.Doc, func(n *html.Node) {
		if n.Data != "table" {
			return
		}
		tables++
		hasTH := false
		walk(n, func(inner *html.Node) {
			if inner.Data == "th" {
				hasTH = true
			}
		})
		if !hasTH {
			headerless++
		}
	})
	rec := evidence.NewRecord().
		Set("table_count", evidence.IntValue(tables)).
		Set("headerless_table_count", evidence.IntValue(headerless))
	switch {
	case tables == 0:
		return finding(c.ID(), VerdictNotApplicable, rec)
	case headerless > 0:
		return finding(c.ID(), VerdictFail, rec)
	default:
		return finding(c.ID(), VerdictPass, rec)
	}
}

// linkPurpose verifies anchors expose discernible text.
type linkPurpose struct{}

func (linkPurpose) ID() string { return "fb.a11y.link.purpose" }

func (c linkPurpose) Run(in *Input) *Finding {
	if in.Doc == nil {
		return manualNeeded(c.ID(), "document markup unavailable")
	}
	var links, unnamed int64
	walk(in.Doc, func(n *html.Node) {
		if n.Data != "a" {
			return
		}
		if _, ok := attr(n, "href"); !ok {
			return
		}
		links++
		if textContent(n) == "" {
			if v, ok := attr(n, "aria-label"); !ok || v == "" {
				unnamed++
			}
		}
	})
	rec := evidence.NewRecord().
		Set("link_count", evidence.IntValue(links)).
		Set("unnamed_link_count", evidence.IntValue(unnamed))
	switch {
	case links == 0:
		return finding(c.ID(), VerdictNotApplicable, rec)
	case unnamed > 0:
		return finding(c.ID(), VerdictFail, rec)
	default:
		return finding(c.ID(), VerdictPass, rec)
	}
}

// sensoryCharacteristics scans document text for instructions that rely
// on sensory characteristics alone. The phrase list is registry-supplied.
type sensoryCharacteristics struct{}

func (sensoryCharacteristics) ID() string { return "fb.a11y.sensory.characteristics" }

func (c sensoryCharacteristics) Run(in *Input) *Finding {
	if in.Doc == nil {
		return manualNeeded(c.ID(), "document markup unavailable")
	}
	phrases := in.Registries.WCAG.Phrases("phrases.sensory")
	if len(phrases) == 0 {
		return manualNeeded(c.ID(), "sensory phrase list unavailable")
	}
	text := strings.ToLower(norm.NFC.String(textContent(in.Doc)))
	var hits []string
	for _, p := range phrases {
		if strings.Contains(text, strings.ToLower(norm.NFC.String(p))) {
			hits = append(hits, p)
		}
	}
	rec := evidence.NewRecord().
		Set("phrase_count", evidence.IntValue(int64(len(phrases)))).
		Set("matched_phrases", evidence.StringsValue(hits))
	if len(hits) > 0 {
		// A phrase match is a heuristic signal, not proof of reliance.
		return finding(c.ID(), VerdictWarn, rec)
	}
	return finding(c.ID(), VerdictPass, rec)
}
