package discoveryrunner

import (
	"context"
	"log/slog"
	"time"

	"leadscout/internal/domain"
	"leadscout/internal/ports"
)

// Ingester performs the discovery work for one observation.
type Ingester interface {
	Ingest(ctx context.Context, obs domain.Observation) (domain.CompanyLead, error)
}

// Run starts worker goroutines that claim observation jobs and ingest them.
// It returns immediately; workers stop when ctx is cancelled.
func Run(ctx context.Context, queue ports.ObservationQueue, ingester Ingester, concurrency int, pollInterval time.Duration, logger *slog.Logger) {
	if concurrency < 1 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	jobsCh := make(chan ports.ObservationJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		defer close(jobsCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := queue.ClaimNext(ctx)
					if err != nil {
						if ctx.Err() == nil {
							logger.Error("job.claim_failed", "error", err)
						}
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				process(ctx, queue, ingester, job, logger.With("worker", idx))
			}
		}(i)
	}
}

// ProcessInline starts and ingests a specific queued job synchronously using
// the same logic as the background workers.
func ProcessInline(ctx context.Context, queue ports.ObservationQueue, ingester Ingester, jobID string, logger *slog.Logger) (domain.CompanyLead, error) {
	if logger == nil {
		logger = slog.Default()
	}
	job, err := queue.StartInline(ctx, jobID)
	if err != nil {
		return domain.CompanyLead{}, err
	}
	return process(ctx, queue, ingester, job, logger)
}

func process(ctx context.Context, queue ports.ObservationQueue, ingester Ingester, job ports.ObservationJob, logger *slog.Logger) (domain.CompanyLead, error) {
	lead, err := ingester.Ingest(ctx, job.Observation)
	if err != nil {
		if mErr := queue.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
			logger.Error("job.mark_failed", "job", job.ID, "error", mErr)
		}
		logger.Warn("job.failed", "job", job.ID, "attempts", job.Attempts, "error", err)
		return domain.CompanyLead{}, err
	}
	if err := queue.MarkCompleted(ctx, job.ID, lead.Key); err != nil {
		logger.Error("job.mark_completed", "job", job.ID, "error", err)
	}
	return lead, nil
}
