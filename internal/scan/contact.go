package scan

import (
	"regexp"
	"strings"

	"leadscout/internal/domain"
)

var (
	emailRe    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe    = regexp.MustCompile(`\+?1?[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	nonDigitRe = regexp.MustCompile(`\D`)

	emailNoise = []string{"example", "test", "noreply", "no-reply"}
)

func noisy(email string, extra ...string) bool {
	e := strings.ToLower(email)
	for _, n := range append(emailNoise, extra...) {
		if strings.Contains(e, n) {
			return true
		}
	}
	return false
}

// ExtractContact pulls an email address and phone number from a page,
// preferring mailto: and tel: links over text matches.
func ExtractContact(page *domain.Page) domain.Contact {
	var c domain.Contact
	if page == nil {
		return c
	}
	for _, l := range page.Links {
		href := strings.ToLower(strings.TrimSpace(l.Href))
		switch {
		case c.Email == "" && strings.HasPrefix(href, "mailto:"):
			addr := strings.TrimSpace(strings.SplitN(strings.TrimPrefix(href, "mailto:"), "?", 2)[0])
			if strings.Contains(addr, "@") && !noisy(addr) {
				c.Email = addr
			}
		case c.Phone == "" && strings.HasPrefix(href, "tel:"):
			digits := nonDigitRe.ReplaceAllString(strings.TrimPrefix(href, "tel:"), "")
			if len(digits) >= 10 {
				c.Phone = digits
			}
		}
	}

	if c.Email == "" {
		for _, e := range emailRe.FindAllString(page.Text, -1) {
			if !noisy(e, "email", "contact") {
				c.Email = e
				break
			}
		}
	}
	if c.Phone == "" {
		for _, p := range phoneRe.FindAllString(page.Text, -1) {
			if len(nonDigitRe.ReplaceAllString(p, "")) >= 10 {
				c.Phone = strings.TrimSpace(p)
				break
			}
		}
	}
	return c
}
