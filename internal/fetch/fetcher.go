// Package fetch retrieves company pages and reduces them to text and links.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"leadscout/internal/domain"
)

// Fetcher returns page content or a fetch error. Callers treat errors as
// "no match", never as a verification failure.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*domain.Page, error)
}

// HTTPFetcher fetches pages over HTTP and parses them with goquery.
type HTTPFetcher struct {
	client   *http.Client
	ua       string
	maxBytes int64
}

func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	return &HTTPFetcher{client: NewClient(cfg), ua: cfg.UserAgent, maxBytes: cfg.MaxBodyBytes}
}

// WithClient swaps the underlying client; tests use httptest clients.
func (f *HTTPFetcher) WithClient(c *http.Client) *HTTPFetcher {
	f.client = c
	return f
}

// EnsureScheme adds https:// to bare hosts.
func EnsureScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*domain.Page, error) {
	target := EnsureScheme(rawURL)
	if _, err := url.ParseRequestURI(target); err != nil {
		return nil, domain.NetworkFailure("fetch", rawURL, fmt.Errorf("invalid URL: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, domain.NetworkFailure("fetch", target, err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, domain.NetworkFailure("fetch", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NetworkFailure("fetch", target, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	limit := f.maxBytes
	if limit <= 0 {
		limit = DefaultConfig().MaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, domain.NetworkFailure("fetch", target, fmt.Errorf("read body: %w", err))
	}

	page, err := Parse(body)
	if err != nil {
		return nil, domain.NetworkFailure("fetch", target, err)
	}
	page.URL = resp.Request.URL.String()
	return page, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Parse reduces an HTML document to visible text, hyperlinks and the meta
// description. Script, style and noscript content is dropped from the text
// but kept in Source.
func Parse(body []byte) (*domain.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &domain.Page{Source: string(body), FetchedAt: time.Now().UTC()}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		page.Links = append(page.Links, domain.Link{
			Href: href,
			Text: strings.TrimSpace(whitespaceRe.ReplaceAllString(s.Text(), " ")),
		})
	})

	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		page.Description = strings.TrimSpace(desc)
	}

	doc.Find("script, style, noscript").Remove()
	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}
	page.Text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	return page, nil
}

var urlTokenRe = regexp.MustCompile(`(?i)\b(?:https?://)?(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}(?:/[^\s"'<>)]*)?`)

// FromText wraps plain source text (a post, a review, a listing) as a Page.
// URL-like tokens become links so link patterns can match them.
func FromText(text string) *domain.Page {
	page := &domain.Page{Text: text}
	for _, tok := range urlTokenRe.FindAllString(text, -1) {
		page.Links = append(page.Links, domain.Link{Href: strings.TrimRight(tok, ".,;:")})
	}
	return page
}
