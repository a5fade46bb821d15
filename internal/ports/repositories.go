package ports

import (
	"context"

	"leadscout/internal/domain"
)

// LeadSink persists lead snapshots. Writes carrying an older Version than the
// stored record are dropped.
type LeadSink interface {
	SaveLead(ctx context.Context, lead domain.CompanyLead) error
}

// LeadStore is a sink that can also return what it holds.
type LeadStore interface {
	LeadSink
	LoadLeads(ctx context.Context) ([]domain.CompanyLead, error)
}
