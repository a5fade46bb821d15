package ports

import (
	"context"

	"leadscout/internal/domain"
	"leadscout/internal/indicators"
	"leadscout/internal/services/verification"
)

// Indicators exposes the current immutable indicator snapshot.
type Indicators interface {
	Current() *indicators.Snapshot
}

// Verifier checks one company against indicators.
type Verifier interface {
	Verify(ctx context.Context, company domain.Company, ind domain.TargetIndicator) *domain.IndicatorEvidence
	Scan(pageText string, ind domain.TargetIndicator) *domain.IndicatorEvidence
	Check(ctx context.Context, company domain.Company, pageText string, inds []domain.TargetIndicator) verification.CheckResult
}

// Discovery ingests observations into leads.
type Discovery interface {
	Ingest(ctx context.Context, obs domain.Observation) (domain.CompanyLead, error)
	Finalize(ctx context.Context) []domain.CompanyLead
}

// Leads reads assembled leads.
type Leads interface {
	Snapshot(key string) (domain.CompanyLead, bool)
	All() []domain.CompanyLead
	Finalize(key string) (domain.CompanyLead, error)
}
