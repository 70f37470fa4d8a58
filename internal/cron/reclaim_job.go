package cron

import (
	"context"
	"fmt"

	"github.com/entrega-app/entrega-backend/pkg/logger"
	"github.com/entrega-app/entrega-backend/pkg/metrics"
)

type staleReclaimer interface {
	ReclaimStale(ctx context.Context) (int, error)
}

// ReclaimAssignmentsJobParams configure the assignment reclaim job.
type ReclaimAssignmentsJobParams struct {
	Logger    *logger.Logger
	Reclaimer staleReclaimer
	Metrics   *metrics.JobMetrics
}

// NewReclaimAssignmentsJob builds the job that sweeps stale driver
// assignments back to confirmed.
func NewReclaimAssignmentsJob(params ReclaimAssignmentsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reclaimer == nil {
		return nil, fmt.Errorf("reclaimer required")
	}
	return &reclaimAssignmentsJob{
		logg:      params.Logger,
		reclaimer: params.Reclaimer,
		metrics:   params.Metrics,
	}, nil
}

type reclaimAssignmentsJob struct {
	logg      *logger.Logger
	reclaimer staleReclaimer
	metrics   *metrics.JobMetrics
}

func (j *reclaimAssignmentsJob) Name() string { return "reclaim-assignments" }

func (j *reclaimAssignmentsJob) Run(ctx context.Context) error {
	reclaimed, err := j.reclaimer.ReclaimStale(ctx)
	j.metrics.AddReclaimed(reclaimed)
	if err != nil {
		// Partial sweeps still count; the error carries every failed order.
		return fmt.Errorf("reclaim sweep (%d reclaimed): %w", reclaimed, err)
	}
	if reclaimed > 0 {
		logCtx := j.logg.WithField(ctx, "reclaimed", reclaimed)
		j.logg.Info(logCtx, "stale assignments reverted")
	}
	return nil
}
