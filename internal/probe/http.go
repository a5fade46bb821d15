package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadscout/internal/domain"
)

// Prober checks whether a URL answers with a success status.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (bool, error)
}

// HTTPProber issues HEAD requests and falls back to a one-byte ranged GET
// when the server rejects HEAD.
type HTTPProber struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPProber builds a prober with its own client and redirect cap.
func NewHTTPProber(timeout time.Duration, userAgent string) *HTTPProber {
	return &HTTPProber{
		Client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		UserAgent: userAgent,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, rawURL string) (bool, error) {
	status, err := p.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return false, err
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = p.do(ctx, http.MethodGet, rawURL)
		if err != nil {
			return false, err
		}
	}
	return status >= 200 && status < 300, nil
}

func (p *HTTPProber) do(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, domain.NetworkFailure("probe."+method, rawURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}
