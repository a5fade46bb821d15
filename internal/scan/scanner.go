// Package scan matches indicator link patterns and keywords against page content.
package scan

import (
	"strings"
	"unicode/utf8"

	"leadscout/internal/domain"
)

const contextWindow = 50

// Match is one raw finding from a page.
type Match struct {
	Method domain.Method
	Proof  string
}

// Scanner checks pages against an indicator. Keyword matching is the weakest
// signal and is off unless enabled.
type Scanner struct {
	Links    bool
	Keywords bool
}

func New(links, keywords bool) Scanner { return Scanner{Links: links, Keywords: keywords} }

// Scan returns at most one link match followed by at most one keyword match.
// Link patterns are tried in configured order against hyperlink targets, then
// against the raw page source.
func (s Scanner) Scan(page *domain.Page, ind domain.TargetIndicator) []Match {
	if page == nil {
		return nil
	}
	var out []Match
	if s.Links {
		if m, ok := matchLinks(page, ind.LinkPatterns); ok {
			out = append(out, m)
		}
	}
	if s.Keywords {
		if m, ok := matchKeywords(page.Text, ind.Keywords); ok {
			out = append(out, m)
		}
	}
	return out
}

// Evidence returns the strongest match as evidence, or nil.
func (s Scanner) Evidence(page *domain.Page, ind domain.TargetIndicator) *domain.IndicatorEvidence {
	return Best(ind.Name, s.Scan(page, ind))
}

// Best picks the highest-confidence match; the first one wins ties.
func Best(indicator string, matches []Match) *domain.IndicatorEvidence {
	var best *domain.IndicatorEvidence
	for _, m := range matches {
		if best == nil || m.Method.Confidence() > best.Confidence {
			ev := domain.NewEvidence(indicator, m.Method, m.Proof)
			best = &ev
		}
	}
	return best
}

func matchLinks(page *domain.Page, patterns []string) (Match, bool) {
	for _, p := range patterns {
		needle := strings.ToLower(p)
		if needle == "" {
			continue
		}
		for _, l := range page.Links {
			if strings.Contains(strings.ToLower(l.Href), needle) {
				proof := l.Href
				if text := truncate(l.Text, contextWindow); text != "" {
					proof += " (" + text + ")"
				}
				return Match{Method: domain.MethodLink, Proof: proof}, true
			}
		}
	}
	if page.Source == "" {
		return Match{}, false
	}
	source := strings.ToLower(page.Source)
	for _, p := range patterns {
		if p != "" && strings.Contains(source, strings.ToLower(p)) {
			return Match{Method: domain.MethodLink, Proof: "reference in page source: " + p}, true
		}
	}
	return Match{}, false
}

func matchKeywords(text string, keywords []string) (Match, bool) {
	if text == "" {
		return Match{}, false
	}
	lower := strings.ToLower(text)
	// slice the original only when lowercasing kept byte offsets aligned
	display := text
	if len(lower) != len(text) {
		display = lower
	}
	for _, kw := range keywords {
		needle := strings.ToLower(kw)
		if needle == "" {
			continue
		}
		idx := strings.Index(lower, needle)
		if idx < 0 {
			continue
		}
		start := max(0, idx-contextWindow)
		end := min(len(display), idx+len(needle)+contextWindow)
		for start > 0 && !utf8.RuneStart(display[start]) {
			start--
		}
		for end < len(display) && !utf8.RuneStart(display[end]) {
			end++
		}
		return Match{Method: domain.MethodKeyword, Proof: strings.TrimSpace(display[start:end])}, true
	}
	return Match{}, false
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
