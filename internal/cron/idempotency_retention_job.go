package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/entrega-app/entrega-backend/pkg/logger"
)

const defaultIdempotencyRetention = 72 * time.Hour

type idempotencyRetentionStore interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// IdempotencyRetentionJobParams configure the idempotency cleanup job.
type IdempotencyRetentionJobParams struct {
	Logger    *logger.Logger
	Store     idempotencyRetentionStore
	Retention time.Duration
}

// NewIdempotencyRetentionJob builds the job that prunes expired idempotency
// records. A pruned fingerprint means a later retry with the same key
// executes the business logic again, which is the documented contract.
func NewIdempotencyRetentionJob(params IdempotencyRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultIdempotencyRetention
	}
	return &idempotencyRetentionJob{
		logg:      params.Logger,
		store:     params.Store,
		retention: retention,
		now:       time.Now,
	}, nil
}

type idempotencyRetentionJob struct {
	logg      *logger.Logger
	store     idempotencyRetentionStore
	retention time.Duration
	now       func() time.Time
}

func (j *idempotencyRetentionJob) Name() string { return "idempotency-retention" }

func (j *idempotencyRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.store.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("idempotency retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "idempotency retention cleanup complete")
	return nil
}
