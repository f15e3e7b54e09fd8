// Package diagnose inspects a page snapshot after the chat input could not be
// found, to tell the operator whether a login prompt is in the way and which
// of the configured selectors exist in the markup at all.
package diagnose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Report is the result of one analysis.
type Report struct {
	Title       string
	LoginPrompt bool
	// LoginText is the text of the first visible node carrying a login marker.
	LoginText string
	// Matches counts elements per configured selector. Invalid selectors count zero.
	Matches map[string]int
}

// Missing returns the selectors with no match, sorted.
func (r Report) Missing() []string {
	var out []string
	for sel, n := range r.Matches {
		if n == 0 {
			out = append(out, sel)
		}
	}
	sort.Strings(out)
	return out
}

// Summary renders the report as one operator-facing line.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "page %q", r.Title)
	if r.LoginPrompt {
		fmt.Fprintf(&b, ", login prompt visible (%q), please log in manually", r.LoginText)
	} else {
		b.WriteString(", no login prompt")
	}
	found := len(r.Matches) - len(r.Missing())
	fmt.Fprintf(&b, ", %d/%d selectors present", found, len(r.Matches))
	return b.String()
}

// Analyzer holds the markers and selectors to look for.
type Analyzer struct {
	loginXPath string
	selectors  []string
}

// New creates an Analyzer. markers are substrings of login prompts such as
// "登录"; selectors are the CSS selectors whose presence should be reported.
func New(markers []string, selectors ...[]string) *Analyzer {
	a := &Analyzer{loginXPath: loginXPath(markers)}
	seen := map[string]bool{}
	for _, group := range selectors {
		for _, sel := range group {
			if sel == "" || seen[sel] {
				continue
			}
			seen[sel] = true
			a.selectors = append(a.selectors, sel)
		}
	}
	return a
}

// Analyze parses markup and builds a Report.
func (a *Analyzer) Analyze(markup string) (Report, error) {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return Report{}, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	report := Report{Matches: make(map[string]int, len(a.selectors))}
	if titleNode := htmlquery.FindOne(doc, "//title"); titleNode != nil {
		report.Title = strings.TrimSpace(htmlquery.InnerText(titleNode))
	}

	if a.loginXPath != "" {
		nodes, err := htmlquery.QueryAll(doc, a.loginXPath)
		if err != nil {
			return Report{}, fmt.Errorf("invalid login marker expression: %w", err)
		}
		for _, n := range nodes {
			if hidden(n) {
				continue
			}
			report.LoginPrompt = true
			report.LoginText = strings.TrimSpace(htmlquery.InnerText(n))
			break
		}
	}

	gq := goquery.NewDocumentFromNode(doc)
	for _, sel := range a.selectors {
		report.Matches[sel] = gq.Find(sel).Length()
	}
	return report, nil
}

// loginXPath matches text-bearing elements containing any marker, outside
// the document head and script bodies.
func loginXPath(markers []string) string {
	var conds []string
	for _, m := range markers {
		if m == "" {
			continue
		}
		conds = append(conds, fmt.Sprintf("contains(text(), %s)", xpathLiteral(m)))
	}
	if len(conds) == 0 {
		return ""
	}
	return fmt.Sprintf("//body//*[not(self::script or self::style or self::noscript)][%s]", strings.Join(conds, " or "))
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}

// hidden approximates visibility from static markup: the node or an ancestor
// carries the hidden attribute, aria-hidden="true", or an inline display:none.
func hidden(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		for _, attr := range n.Attr {
			switch attr.Key {
			case "hidden":
				return true
			case "aria-hidden":
				if attr.Val == "true" {
					return true
				}
			case "style":
				style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return true
				}
			}
		}
	}
	return false
}
