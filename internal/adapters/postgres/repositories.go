package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"leadscout/internal/domain"
	"leadscout/internal/ports"
)

var (
	_ ports.LeadStore        = (*DB)(nil)
	_ ports.ObservationQueue = (*DB)(nil)
)

// SaveLead upserts a lead. A stored row with an equal or newer version wins.
func (db *DB) SaveLead(ctx context.Context, lead domain.CompanyLead) error {
	record, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("encode lead %s: %w", lead.Key, err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO leads (key, company_name, website, base_domain, state, score, version, record, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (key) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			website      = EXCLUDED.website,
			base_domain  = EXCLUDED.base_domain,
			state        = EXCLUDED.state,
			score        = EXCLUDED.score,
			version      = EXCLUDED.version,
			record       = EXCLUDED.record,
			updated_at   = now()
		WHERE leads.version < EXCLUDED.version
	`, lead.Key, lead.CompanyName, lead.Website, lead.BaseDomain, string(lead.State), lead.Score, lead.Version, record)
	return err
}

// LoadLeads returns every stored lead, highest score first.
func (db *DB) LoadLeads(ctx context.Context) ([]domain.CompanyLead, error) {
	rows, err := db.Pool.Query(ctx, `SELECT record FROM leads ORDER BY score DESC, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CompanyLead
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var lead domain.CompanyLead
		if err := json.Unmarshal(raw, &lead); err != nil {
			return nil, fmt.Errorf("decode lead: %w", err)
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}
