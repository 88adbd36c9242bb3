package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dandantas/magpie/internal/model"
	"github.com/dandantas/magpie/internal/queue"
)

// Maintenance task names used as lock keys
const (
	taskPromoteDelayed = "promote-delayed-jobs"
	taskRequeueStuck   = "requeue-stuck-requests"

	moveDueBatch = 100
)

// MaintenanceStore lists requests that need janitor attention
type MaintenanceStore interface {
	FindStuckProcessing(ctx context.Context, olderThan time.Duration) ([]model.ProfileRequest, error)
}

// LockStore provides the distributed locks guarding maintenance tasks
type LockStore interface {
	AcquireLock(ctx context.Context, task string, podID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, task string, podID string) error
	ReleaseAllLocks(ctx context.Context, podID string) error
}

// Janitor runs periodic queue maintenance: promoting due delayed retries back
// onto the wait list, and re-enqueueing requests stuck in processing after a
// consumer died mid-job. Each task is guarded by a TTL lock so only one pod
// performs maintenance at a time.
type Janitor struct {
	queue    *queue.Queue
	store    MaintenanceStore
	locks    LockStore
	podID    string
	stuckAge time.Duration
	lockTTL  time.Duration
	cron     *cron.Cron
}

// NewJanitor creates a maintenance janitor
func NewJanitor(q *queue.Queue, store MaintenanceStore, locks LockStore, stuckAge time.Duration, lockTTL time.Duration) *Janitor {
	podID, err := os.Hostname()
	if err != nil {
		podID = uuid.New().String()
		slog.Warn("Failed to get hostname, using UUID as pod ID", "pod_id", podID)
	}

	return &Janitor{
		queue:    q,
		store:    store,
		locks:    locks,
		podID:    podID,
		stuckAge: stuckAge,
		lockTTL:  lockTTL,
	}
}

// Start schedules the maintenance jobs
func (j *Janitor) Start(ctx context.Context) {
	slog.Info("Starting maintenance janitor",
		"pod_id", j.podID,
		"stuck_age", j.stuckAge,
	)

	j.cron = cron.New()
	j.cron.Schedule(cron.Every(5*time.Second), cron.FuncJob(func() {
		j.promoteDelayed(ctx)
	}))
	j.cron.Schedule(cron.Every(time.Minute), cron.FuncJob(func() {
		j.requeueStuck(ctx)
	}))
	j.cron.Start()
}

// Stop halts scheduling, waits for running tasks, and releases held locks
func (j *Janitor) Stop(ctx context.Context) {
	slog.Info("Stopping maintenance janitor", "pod_id", j.podID)

	if j.cron != nil {
		stopCtx := j.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}

	if err := j.locks.ReleaseAllLocks(ctx, j.podID); err != nil {
		slog.Error("Failed to release maintenance locks", "error", err)
	}
}

// promoteDelayed moves due delayed retries back onto the wait list
func (j *Janitor) promoteDelayed(ctx context.Context) {
	acquired, err := j.locks.AcquireLock(ctx, taskPromoteDelayed, j.podID, j.lockTTL)
	if err != nil {
		slog.Error("Failed to acquire maintenance lock", "task", taskPromoteDelayed, "error", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := j.locks.ReleaseLock(ctx, taskPromoteDelayed, j.podID); err != nil {
			slog.Error("Failed to release maintenance lock", "task", taskPromoteDelayed, "error", err)
		}
	}()

	moved, err := j.queue.MoveDue(ctx, time.Now().UTC(), moveDueBatch)
	if err != nil {
		slog.Error("Failed to promote delayed jobs", "error", err)
		return
	}
	if moved > 0 {
		slog.Info("Promoted delayed jobs", "count", moved)
	}
}

// requeueStuck re-enqueues requests whose consumer died after claiming them.
// The enqueue de-duplicates by request id, so a request whose job still
// exists in any form is left alone.
func (j *Janitor) requeueStuck(ctx context.Context) {
	acquired, err := j.locks.AcquireLock(ctx, taskRequeueStuck, j.podID, j.lockTTL)
	if err != nil {
		slog.Error("Failed to acquire maintenance lock", "task", taskRequeueStuck, "error", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := j.locks.ReleaseLock(ctx, taskRequeueStuck, j.podID); err != nil {
			slog.Error("Failed to release maintenance lock", "task", taskRequeueStuck, "error", err)
		}
	}()

	stuck, err := j.store.FindStuckProcessing(ctx, j.stuckAge)
	if err != nil {
		slog.Error("Failed to list stuck requests", "error", err)
		return
	}

	for _, request := range stuck {
		payload, err := json.Marshal(model.UnitOfWork{
			RequestID:   request.RequestID,
			Usernames:   request.Usernames,
			CallbackURL: request.CallbackURL,
		})
		if err != nil {
			slog.Error("Failed to marshal unit of work", "request_id", request.RequestID, "error", err)
			continue
		}

		enqueued, err := j.queue.Enqueue(ctx, request.RequestID, payload)
		if err != nil {
			slog.Error("Failed to requeue stuck request", "request_id", request.RequestID, "error", err)
			continue
		}
		if enqueued {
			slog.Warn("Requeued stuck request",
				"request_id", request.RequestID,
				"updated_at", request.UpdatedAt,
			)
		}
	}
}
