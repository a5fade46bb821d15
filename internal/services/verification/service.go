// Package verification decides which indicators apply to one company by
// combining subdomain probes with link and keyword scans.
package verification

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"leadscout/internal/domain"
	"leadscout/internal/evidence"
	"leadscout/internal/fetch"
	"leadscout/internal/metrics"
	"leadscout/internal/normalize"
	"leadscout/internal/probe"
	"leadscout/internal/scan"
)

// SubdomainVerifier is satisfied by *probe.Verifier.
type SubdomainVerifier interface {
	Verify(ctx context.Context, candidates []domain.CandidateDomain, ind domain.TargetIndicator) probe.Result
}

type Service struct {
	verifier SubdomainVerifier
	fetcher  fetch.Fetcher
	scanner  scan.Scanner
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func New(verifier SubdomainVerifier, fetcher fetch.Fetcher, scanner scan.Scanner, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{verifier: verifier, fetcher: fetcher, scanner: scanner, logger: logger, metrics: m}
}

// CheckResult is the outcome of checking one company against a snapshot.
type CheckResult struct {
	Evidence    map[string]domain.IndicatorEvidence `json:"indicator_evidence"`
	Contact     domain.Contact                      `json:"contact"`
	Description string                              `json:"description,omitempty"`
	PageURL     string                              `json:"page_url,omitempty"`
}

// VerifySubdomain probes only the indicator's subdomain pattern.
func (s *Service) VerifySubdomain(ctx context.Context, company domain.Company, ind domain.TargetIndicator) *domain.IndicatorEvidence {
	res := s.verifier.Verify(ctx, normalize.Candidates(company.Name, company.Website), ind)
	if !res.Found {
		return nil
	}
	ev := domain.NewEvidence(ind.Name, domain.MethodSubdomain, res.Proof)
	return &ev
}

// ScanWebsite fetches a page and scans it. Fetch failures count as no match.
func (s *Service) ScanWebsite(ctx context.Context, website string, ind domain.TargetIndicator) *domain.IndicatorEvidence {
	page := s.fetch(ctx, website)
	return s.scanPage(page, ind)
}

// Verify returns the strongest evidence for one indicator, or nil.
func (s *Service) Verify(ctx context.Context, company domain.Company, ind domain.TargetIndicator) *domain.IndicatorEvidence {
	agg := evidence.NewAggregator()
	agg.Offer(s.VerifySubdomain(ctx, company, ind))
	if company.Website != "" {
		agg.Offer(s.ScanWebsite(ctx, company.Website, ind))
	}
	if ev, ok := agg.Kept(ind.Name); ok {
		return &ev
	}
	return nil
}

// Scan matches plain page text against one indicator without any network I/O.
func (s *Service) Scan(pageText string, ind domain.TargetIndicator) *domain.IndicatorEvidence {
	if strings.TrimSpace(pageText) == "" {
		return nil
	}
	return s.scanPage(fetch.FromText(pageText), ind)
}

// Check evaluates every indicator for one company. The website is fetched
// once and shared; indicators are probed concurrently.
func (s *Service) Check(ctx context.Context, company domain.Company, pageText string, indicators []domain.TargetIndicator) CheckResult {
	var site, text *domain.Page
	if company.Website != "" {
		site = s.fetch(ctx, company.Website)
	}
	if strings.TrimSpace(pageText) != "" {
		text = fetch.FromText(pageText)
	}
	candidates := normalize.Candidates(company.Name, company.Website)

	agg := evidence.NewAggregator()
	g, gctx := errgroup.WithContext(ctx)
	for _, ind := range indicators {
		g.Go(func() error {
			if res := s.verifier.Verify(gctx, candidates, ind); res.Found {
				ev := domain.NewEvidence(ind.Name, domain.MethodSubdomain, res.Proof)
				agg.Offer(&ev)
			}
			agg.Offer(s.scanPage(site, ind))
			agg.Offer(s.scanPage(text, ind))
			return nil
		})
	}
	_ = g.Wait()

	out := CheckResult{Evidence: agg.All()}
	if site != nil {
		out.Contact = scan.ExtractContact(site)
		out.Description = site.Description
		out.PageURL = site.URL
	}
	if text != nil {
		fill(&out.Contact, scan.ExtractContact(text))
	}
	s.logger.Debug("verification.checked", "company", company.Name, "indicators", len(indicators), "matched", len(out.Evidence))
	return out
}

func (s *Service) fetch(ctx context.Context, website string) *domain.Page {
	if website == "" || s.fetcher == nil {
		return nil
	}
	page, err := s.fetcher.Fetch(ctx, website)
	if err != nil {
		s.logger.Debug("fetch.failed", "url", website, "error", err)
		return nil
	}
	return page
}

func (s *Service) scanPage(page *domain.Page, ind domain.TargetIndicator) *domain.IndicatorEvidence {
	if page == nil {
		return nil
	}
	ev := s.scanner.Evidence(page, ind)
	if ev != nil {
		s.metrics.ScanMatch(string(ev.Method))
	}
	return ev
}

func fill(dst *domain.Contact, src domain.Contact) {
	if dst.Email == "" {
		dst.Email = src.Email
	}
	if dst.Phone == "" {
		dst.Phone = src.Phone
	}
	if dst.Address == "" {
		dst.Address = src.Address
	}
}
