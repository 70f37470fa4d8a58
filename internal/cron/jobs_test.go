package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/entrega-app/entrega-backend/pkg/logger"
)

type fakeReclaimer struct {
	reclaimed int
	err       error
	calls     int
}

func (f *fakeReclaimer) ReclaimStale(context.Context) (int, error) {
	f.calls++
	return f.reclaimed, f.err
}

func TestReclaimAssignmentsJob(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	reclaimer := &fakeReclaimer{reclaimed: 3}

	job, err := NewReclaimAssignmentsJob(ReclaimAssignmentsJobParams{
		Logger:    logg,
		Reclaimer: reclaimer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "reclaim-assignments" {
		t.Fatalf("unexpected job name %s", job.Name())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if reclaimer.calls != 1 {
		t.Fatalf("expected one sweep, got %d", reclaimer.calls)
	}
}

func TestReclaimAssignmentsJobSurfacesSweepErrors(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	reclaimer := &fakeReclaimer{reclaimed: 1, err: errors.New("order locked")}

	job, err := NewReclaimAssignmentsJob(ReclaimAssignmentsJobParams{
		Logger:    logg,
		Reclaimer: reclaimer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected sweep error to propagate")
	}
}

type fakeRetentionStore struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakeRetentionStore) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func TestIdempotencyRetentionJob(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	store := &fakeRetentionStore{deleted: 12}

	job, err := NewIdempotencyRetentionJob(IdempotencyRetentionJobParams{
		Logger:    logg,
		Store:     store,
		Retention: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "idempotency-retention" {
		t.Fatalf("unexpected job name %s", job.Name())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	age := time.Since(store.cutoff)
	if age < 23*time.Hour || age > 25*time.Hour {
		t.Fatalf("cutoff should sit one retention window in the past, got %v", store.cutoff)
	}
}

func TestIdempotencyRetentionJobError(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	store := &fakeRetentionStore{err: errors.New("db down")}

	job, err := NewIdempotencyRetentionJob(IdempotencyRetentionJobParams{
		Logger: logg,
		Store:  store,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected store error to propagate")
	}
}
