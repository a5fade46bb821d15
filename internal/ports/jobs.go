package ports

import (
	"context"

	"leadscout/internal/domain"
)

type ObservationJob struct {
	ID          string
	Observation domain.Observation
	Attempts    int
}

// ObservationQueue supports enqueueing, claiming and completing observation jobs.
type ObservationQueue interface {
	Enqueue(ctx context.Context, obs domain.Observation) (jobID string, err error)
	ClaimNext(ctx context.Context) (job ObservationJob, found bool, err error)
	MarkCompleted(ctx context.Context, jobID string, leadKey string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	StartInline(ctx context.Context, jobID string) (ObservationJob, error)
}
