// Package normalize derives base domains, identity keys and candidate
// subdomain segments from company names and websites.
package normalize

import (
	"net"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"leadscout/internal/domain"
)

// DefaultTLD is appended to name-derived guesses. Never part of a stored domain.
const DefaultTLD = ".com"

var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "llp": true, "ltd": true,
	"limited": true, "corp": true, "corporation": true, "co": true, "plc": true,
	"gmbh": true, "lp": true,
}

// fold lowercases and strips diacritics ("Avionté" -> "avionte").
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// label keeps only characters valid in a DNS label and trims edge hyphens.
func label(s string) string {
	var b strings.Builder
	for _, r := range fold(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

// Host extracts the lowercased host from a website, tolerating missing schemes.
func Host(website string) string {
	raw := strings.TrimSpace(website)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	return strings.TrimPrefix(host, "www.")
}

// BaseDomain returns the registrable domain (eTLD+1) of a website. Scheme,
// www., credentials, port and path are dropped. Empty when no host is present.
func BaseDomain(website string) string {
	host := Host(website)
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}

// SiteLabel returns the second-level label of a website: "abc-staffing" for
// "https://www.abc-staffing.co.uk/jobs".
func SiteLabel(website string) string {
	base := BaseDomain(website)
	if base == "" || net.ParseIP(base) != nil {
		return ""
	}
	suffix, _ := publicsuffix.PublicSuffix(base)
	lbl := strings.TrimSuffix(base, "."+suffix)
	if i := strings.LastIndex(lbl, "."); i >= 0 {
		lbl = lbl[i+1:]
	}
	return label(lbl)
}

// Candidates returns company segments in probe precedence order, duplicates
// collapsed to their first occurrence:
//
//	website label, spaces removed, hyphens removed, underscores removed, first word
//
// The rules are heuristics; a company with an unconventional vendor subdomain
// will simply not be found.
func Candidates(name, website string) []domain.CandidateDomain {
	lower := fold(strings.TrimSpace(name))
	var firstWord string
	if fields := strings.Fields(lower); len(fields) > 0 {
		firstWord = fields[0]
	}

	raw := []domain.CandidateDomain{
		{Segment: SiteLabel(website), Transform: domain.TransformWebsite},
		{Segment: label(strings.ReplaceAll(lower, " ", "")), Transform: domain.TransformSpacesRemoved},
		{Segment: label(strings.ReplaceAll(lower, "-", "")), Transform: domain.TransformHyphensRemoved},
		{Segment: label(strings.ReplaceAll(lower, "_", "")), Transform: domain.TransformUnderscoresRemoved},
		{Segment: label(firstWord), Transform: domain.TransformFirstWord},
	}

	seen := make(map[string]bool, len(raw))
	out := make([]domain.CandidateDomain, 0, len(raw))
	for _, c := range raw {
		if c.Segment == "" || seen[c.Segment] {
			continue
		}
		seen[c.Segment] = true
		out = append(out, c)
	}
	return out
}

// GuessDomain derives a display-only domain guess from a company name.
func GuessDomain(name string) string {
	lbl := label(strings.ReplaceAll(fold(name), " ", ""))
	if lbl == "" {
		return ""
	}
	return lbl + DefaultTLD
}

// NameKey normalizes a company name for deduplication: folded, legal
// suffixes dropped, alphanumerics only.
func NameKey(name string) string {
	words := strings.FieldsFunc(fold(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	})
	for len(words) > 1 && legalSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	var b strings.Builder
	for _, w := range words {
		for _, r := range w {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// IdentityKey is NameKey plus the website's second-level label when one is
// known. Two registrable domains sharing a label ("abc.com", "abc.net") map to
// the same key; the assembler flags that as an identity conflict.
func IdentityKey(name, website string) string {
	key := NameKey(name)
	if lbl := SiteLabel(website); lbl != "" {
		return key + "|" + lbl
	}
	if base := BaseDomain(website); base != "" {
		return key + "|" + base
	}
	return key
}
