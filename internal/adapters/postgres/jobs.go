package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"leadscout/internal/domain"
	"leadscout/internal/ports"
)

// Enqueue stores an observation as a queued job.
func (db *DB) Enqueue(ctx context.Context, obs domain.Observation) (string, error) {
	payload, err := json.Marshal(obs)
	if err != nil {
		return "", fmt.Errorf("encode observation: %w", err)
	}
	id := uuid.NewString()
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO observation_jobs (id, source, company_name, payload)
		VALUES ($1, $2, $3, $4)
	`, id, obs.Source, obs.CompanyName, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

type claimResult int

const (
	claimNone claimResult = iota
	claimOK
	claimRejected
)

const (
	claimNextSQL = `
		SELECT id, payload, attempts FROM observation_jobs
		WHERE status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`
	claimByIDSQL = `
		SELECT id, payload, attempts FROM observation_jobs
		WHERE id = $1 AND status = 'queued'
		FOR UPDATE SKIP LOCKED
	`
)

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
// Jobs whose payload no longer decodes are failed in place and skipped.
func (db *DB) ClaimNext(ctx context.Context) (ports.ObservationJob, bool, error) {
	for {
		job, res, err := db.claim(ctx, claimNextSQL)
		if err != nil || res == claimNone {
			return job, false, err
		}
		if res == claimOK {
			return job, true, nil
		}
	}
}

// StartInline claims one specific queued job for synchronous processing.
func (db *DB) StartInline(ctx context.Context, jobID string) (ports.ObservationJob, error) {
	job, res, err := db.claim(ctx, claimByIDSQL, jobID)
	switch {
	case err != nil:
		return job, err
	case res == claimNone:
		return job, domain.NotFound("jobs.start", jobID)
	case res == claimRejected:
		return job, domain.InvalidObservation("jobs.start", "undecodable payload for job "+jobID)
	}
	return job, nil
}

func (db *DB) claim(ctx context.Context, query string, args ...any) (job ports.ObservationJob, res claimResult, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, claimNone, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()
	return claimIn(ctx, tx, query, args...)
}

// claimIn locks the row the query selects and moves it out of 'queued':
// to 'running' when the payload decodes, to 'failed' when it does not.
func claimIn(ctx context.Context, tx pgx.Tx, query string, args ...any) (job ports.ObservationJob, res claimResult, err error) {
	var payload []byte
	err = tx.QueryRow(ctx, query, args...).Scan(&job.ID, &payload, &job.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, claimNone, nil
	}
	if err != nil {
		return job, claimNone, err
	}

	if derr := json.Unmarshal(payload, &job.Observation); derr != nil {
		_, err = tx.Exec(ctx, `
			UPDATE observation_jobs SET status='failed', error=$2, attempts=attempts+1, finished_at=now() WHERE id=$1
		`, job.ID, fmt.Sprintf("decode payload: %v", derr))
		if err != nil {
			return job, claimNone, err
		}
		return job, claimRejected, nil
	}

	if _, err = tx.Exec(ctx, `
		UPDATE observation_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
	`, job.ID); err != nil {
		return job, claimNone, err
	}
	job.Attempts++
	return job, claimOK, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string, leadKey string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE observation_jobs SET status='completed', lead_key=$2, error=NULL, finished_at=now() WHERE id=$1
	`, jobID, leadKey)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE observation_jobs SET status='failed', error=$2, finished_at=now() WHERE id=$1
	`, jobID, reason)
	return err
}
