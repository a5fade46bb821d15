// Package discovery turns source observations into scored leads.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"leadscout/internal/domain"
	"leadscout/internal/evidence"
	"leadscout/internal/leads"
	"leadscout/internal/ports"
	"leadscout/internal/services/verification"
)

// Checker is satisfied by *verification.Service.
type Checker interface {
	Check(ctx context.Context, company domain.Company, pageText string, inds []domain.TargetIndicator) verification.CheckResult
}

type Service struct {
	indicators ports.Indicators
	checker    Checker
	assembler  *leads.Assembler
	sink       ports.LeadSink
	logger     *slog.Logger
}

// New wires the service. sink may be nil, in which case leads live only in
// the assembler.
func New(ind ports.Indicators, checker Checker, assembler *leads.Assembler, sink ports.LeadSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{indicators: ind, checker: checker, assembler: assembler, sink: sink, logger: logger}
}

// Ingest verifies an observation against the current indicator snapshot,
// merges the findings into its lead and persists the result.
func (s *Service) Ingest(ctx context.Context, obs domain.Observation) (domain.CompanyLead, error) {
	if strings.TrimSpace(obs.CompanyName) == "" {
		return domain.CompanyLead{}, domain.InvalidObservation("discovery.ingest", "missing company name")
	}

	snap := s.indicators.Current()
	res := s.checker.Check(ctx, obs.Company(), obs.PageText, snap.Indicators())
	obs = attach(obs, res)

	lead, err := s.assembler.Merge(obs)
	if err != nil {
		return domain.CompanyLead{}, err
	}
	s.persist(ctx, lead)
	s.logger.Info("lead.merged", "key", lead.Key, "source", obs.Source, "score", lead.Score, "indicators", lead.Indicators())
	return lead, nil
}

// attach adds check findings to a copy of the observation.
func attach(obs domain.Observation, res verification.CheckResult) domain.Observation {
	merged := make(map[string]domain.IndicatorEvidence, len(obs.Evidence)+len(res.Evidence))
	for name, ev := range obs.Evidence {
		ev.Indicator = name
		merged[name] = ev
	}
	for name, ev := range res.Evidence {
		ev.Indicator = name
		ev.Source = obs.Source
		ev.Sources = nil
		kept, _ := evidence.Prefer(merged[name], ev)
		merged[name] = kept
	}
	obs.Evidence = merged

	if obs.Contact.Email == "" {
		obs.Contact.Email = res.Contact.Email
	}
	if obs.Contact.Phone == "" {
		obs.Contact.Phone = res.Contact.Phone
	}
	if obs.Description == "" {
		obs.Description = res.Description
	}
	return obs
}

// IngestAll ingests observations with up to parallel in flight. Rejected
// observations are reported together and do not stop the others.
func (s *Service) IngestAll(ctx context.Context, observations []domain.Observation, parallel int) ([]domain.CompanyLead, error) {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]*domain.CompanyLead, len(observations))
	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, obs := range observations {
		g.Go(func() error {
			lead, err := s.Ingest(gctx, obs)
			if err != nil {
				s.logger.Warn("observation.rejected", "source", obs.Source, "company", obs.CompanyName, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			results[i] = &lead
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.CompanyLead, 0, len(observations))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, errors.Join(errs...)
}

// Finalize closes the run: every lead becomes FINAL and is persisted.
func (s *Service) Finalize(ctx context.Context) []domain.CompanyLead {
	finalized := s.assembler.FinalizeAll()
	for _, lead := range finalized {
		s.persist(ctx, lead)
	}
	s.logger.Info("leads.finalized", "count", len(finalized))
	return finalized
}

// Restore seeds the assembler from a store, typically on startup.
func (s *Service) Restore(ctx context.Context, store ports.LeadStore) (int, error) {
	stored, err := store.LoadLeads(ctx)
	if err != nil {
		return 0, err
	}
	return s.assembler.Restore(stored...), nil
}

func (s *Service) persist(ctx context.Context, lead domain.CompanyLead) {
	if s.sink == nil {
		return
	}
	if err := s.sink.SaveLead(ctx, lead); err != nil {
		s.logger.Warn("lead.persist_failed", "key", lead.Key, "version", lead.Version, "error", err)
	}
}
