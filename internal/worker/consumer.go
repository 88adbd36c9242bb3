// Package worker drains the asynchronous job queue and runs the per-request
// processing pipeline: claim, resolve, finalize, callback.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dandantas/magpie/internal/model"
	"github.com/dandantas/magpie/internal/queue"
	"github.com/dandantas/magpie/internal/service"
)

const dequeueBlock = 5 * time.Second

// CallbackSender delivers the completion webhook for a finished request
type CallbackSender interface {
	Deliver(ctx context.Context, requestID string, url string) error
}

// Consumer runs a bounded pool of workers draining the job queue. Each unit
// of work is one request's remaining processing.
type Consumer struct {
	queue       *queue.Queue
	store       service.RequestStore
	resolver    service.ProfileResolver
	callbacks   CallbackSender
	concurrency int
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewConsumer creates a job consumer with the given worker count
func NewConsumer(q *queue.Queue, store service.RequestStore, resolver service.ProfileResolver, callbacks CallbackSender, concurrency int) *Consumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Consumer{
		queue:       q,
		store:       store,
		resolver:    resolver,
		callbacks:   callbacks,
		concurrency: concurrency,
	}
}

// Start launches the worker goroutines
func (c *Consumer) Start(ctx context.Context) {
	slog.Info("Starting job consumer", "workers", c.concurrency)

	ctx, c.cancel = context.WithCancel(ctx)
	for i := 0; i < c.concurrency; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}
}

// Stop signals the workers and waits for in-flight jobs to finish
func (c *Consumer) Stop() {
	slog.Info("Stopping job consumer")
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	slog.Info("Job consumer stopped")
}

func (c *Consumer) worker(ctx context.Context, id int) {
	defer c.wg.Done()

	slog.Debug("Worker started", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Worker stopped", "worker_id", id)
			return
		default:
		}

		job, err := c.queue.Dequeue(ctx, dequeueBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Failed to dequeue job", "worker_id", id, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		c.handle(ctx, id, job)
	}
}

func (c *Consumer) handle(ctx context.Context, workerID int, job *queue.Job) {
	slog.Info("Worker processing job",
		"worker_id", workerID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)

	var unit model.UnitOfWork
	if err := json.Unmarshal(job.Payload, &unit); err != nil {
		// Poison payload can never succeed; drop it rather than retry.
		slog.Error("Dropping job with malformed payload", "job_id", job.ID, "error", err)
		if completeErr := c.queue.Complete(ctx, job.ID); completeErr != nil {
			slog.Error("Failed to drop malformed job", "job_id", job.ID, "error", completeErr)
		}
		return
	}

	if err := c.Process(ctx, unit); err != nil {
		if failErr := c.queue.Fail(ctx, job, err); failErr != nil {
			slog.Error("Failed to record job failure", "job_id", job.ID, "error", failErr)
		}
		return
	}

	if err := c.queue.Complete(ctx, job.ID); err != nil {
		slog.Error("Failed to complete job", "job_id", job.ID, "error", err)
	}
}

// Process runs one unit of work end to end. Whatever happens during fetch
// orchestration, the request receives a terminal write: a resolver failure is
// converted into error outcomes for every unreached username so the request
// can never sit in processing forever.
func (c *Consumer) Process(ctx context.Context, unit model.UnitOfWork) error {
	claimed, err := c.store.ClaimProcessing(ctx, unit.RequestID)
	if err != nil {
		return err
	}
	if !claimed {
		status, err := c.store.GetStatus(ctx, unit.RequestID)
		if err != nil {
			return err
		}
		// A processing request means an earlier delivery died after the
		// claim; at-least-once redelivery is allowed to finish the work.
		// Anything terminal (or missing) is dropped without progress writes.
		if status != model.StatusProcessing {
			slog.Info("Skipping job for non-claimable request",
				"request_id", unit.RequestID,
				"status", string(status),
			)
			return nil
		}
	}

	outcomes, resolveErr := c.resolver.Resolve(ctx, unit.Usernames, unit.RequestID)
	if resolveErr != nil {
		slog.Error("Batch resolution failed, finalizing with errors",
			"request_id", unit.RequestID,
			"resolved", len(outcomes),
			"error", resolveErr,
		)
		outcomes = fillUnreached(unit.Usernames, outcomes, resolveErr)
	}

	progress := computeProgress(outcomes)
	if err := c.store.FinalizeDone(ctx, unit.RequestID, progress); err != nil {
		return err
	}

	slog.Info("Request finalized",
		"request_id", unit.RequestID,
		"total_process", progress.TotalProcess,
		"total_success", progress.TotalSuccess,
		"total_error", progress.TotalError,
	)

	if unit.CallbackURL != "" {
		if err := c.callbacks.Deliver(ctx, unit.RequestID, unit.CallbackURL); err != nil {
			// Recorded on the request by the dispatcher; never bubbles up to
			// affect the request's terminal status or trigger a queue retry.
			slog.Error("Callback delivery failed",
				"request_id", unit.RequestID,
				"error", err,
			)
		}
	}

	return nil
}

// computeProgress aggregates outcomes into the final progress write.
// TotalProcess always equals TotalError + TotalSuccess.
func computeProgress(outcomes []model.ProfileOutcome) model.Progress {
	progress := model.Progress{
		TotalProcess: len(outcomes),
		Result:       outcomes,
	}
	for _, outcome := range outcomes {
		if outcome.Status == model.OutcomeSuccess {
			progress.TotalSuccess++
		} else {
			progress.TotalError++
		}
	}
	return progress
}

// fillUnreached appends an error outcome for every username the resolver
// never produced a result for
func fillUnreached(usernames []string, outcomes []model.ProfileOutcome, cause error) []model.ProfileOutcome {
	seen := make(map[string]bool, len(outcomes))
	for _, outcome := range outcomes {
		seen[strings.ToLower(outcome.Username)] = true
	}

	for _, username := range usernames {
		if seen[strings.ToLower(username)] {
			continue
		}
		outcomes = append(outcomes, model.ProfileOutcome{
			Username: username,
			Status:   model.OutcomeError,
			Message:  cause.Error(),
		})
	}
	return outcomes
}
