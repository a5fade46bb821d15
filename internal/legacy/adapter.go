// Package legacy maps older single-vendor checks onto generic indicators.
package legacy

import (
	"context"
	"strings"

	"leadscout/internal/domain"
	"leadscout/internal/normalize"
	"leadscout/internal/ports"
)

// Verifier is satisfied by *verification.Service.
type Verifier interface {
	VerifySubdomain(ctx context.Context, company domain.Company, ind domain.TargetIndicator) *domain.IndicatorEvidence
	Verify(ctx context.Context, company domain.Company, ind domain.TargetIndicator) *domain.IndicatorEvidence
}

var aliases = map[string]string{
	"avionte":   "Avionté",
	"mindscope": "Mindscope",
	"bullhorn":  "Bullhorn",
}

type Adapter struct {
	indicators ports.Indicators
	verifier   Verifier
}

func New(ind ports.Indicators, v Verifier) *Adapter {
	return &Adapter{indicators: ind, verifier: v}
}

// Resolve finds the indicator behind a legacy name such as "avionte".
func (a *Adapter) Resolve(legacyName string) (domain.TargetIndicator, error) {
	name := strings.TrimSpace(legacyName)
	if alias, ok := aliases[strings.ToLower(name)]; ok {
		name = alias
	}
	ind, ok := a.indicators.Current().Get(name)
	if !ok {
		return domain.TargetIndicator{}, domain.NotFound("legacy.resolve", legacyName)
	}
	return ind, nil
}

// CheckSubdomain probes the indicator's subdomain for a company domain such
// as "primlogix.com".
func (a *Adapter) CheckSubdomain(ctx context.Context, legacyName, companyDomain string) (bool, string, error) {
	ind, err := a.Resolve(legacyName)
	if err != nil {
		return false, "", err
	}
	company := domain.Company{Name: normalize.SiteLabel(companyDomain), Website: companyDomain}
	return found(a.verifier.VerifySubdomain(ctx, company, ind))
}

// CheckWebsite runs every method for the indicator against a website.
func (a *Adapter) CheckWebsite(ctx context.Context, legacyName, url string) (bool, string, error) {
	if strings.TrimSpace(url) == "" {
		return false, "", nil
	}
	ind, err := a.Resolve(legacyName)
	if err != nil {
		return false, "", err
	}
	company := domain.Company{Name: normalize.SiteLabel(url), Website: url}
	return found(a.verifier.Verify(ctx, company, ind))
}

func (a *Adapter) CheckAvionteSubdomain(ctx context.Context, companyDomain string) (bool, string) {
	ok, proof, _ := a.CheckSubdomain(ctx, "avionte", companyDomain)
	return ok, proof
}

func (a *Adapter) CheckWebsiteForAvionte(ctx context.Context, url string) (bool, string) {
	ok, proof, _ := a.CheckWebsite(ctx, "avionte", url)
	return ok, proof
}

func found(ev *domain.IndicatorEvidence) (bool, string, error) {
	if ev == nil {
		return false, "", nil
	}
	return true, ev.Proof, nil
}
