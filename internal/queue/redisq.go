// Package queue implements a small Redis-backed job queue with at-least-once
// delivery, per-job de-duplication, and delayed retries with exponential
// backoff. Job ids are chosen by the caller; enqueueing an id that is already
// waiting or active is a no-op, which is what makes one-unit-of-work-per-
// request hold.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Job states stored in the per-job hash
const (
	StateWaiting = "waiting"
	StateActive  = "active"
	StateDelayed = "delayed"
	StateFailed  = "failed"
)

// Failed job hashes are kept around briefly for inspection, then expire.
const failedJobRetention = 24 * time.Hour

// Job is one dequeued unit of work
type Job struct {
	ID      string
	Payload []byte
	Attempt int
}

// Queue is a named Redis job queue
type Queue struct {
	rdb         goredis.UniversalClient
	name        string
	maxAttempts int
	backoffBase time.Duration
}

// New creates a queue. maxAttempts bounds handler retries; backoffBase is the
// first retry delay, doubling per attempt.
func New(rdb goredis.UniversalClient, name string, maxAttempts int, backoffBase time.Duration) *Queue {
	return &Queue{
		rdb:         rdb,
		name:        name,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// retryDelay doubles the base delay per completed attempt
func (q *Queue) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return q.backoffBase << (attempt - 1)
}

func (q *Queue) waitKey() string    { return "queue:" + q.name + ":wait" }
func (q *Queue) delayedKey() string { return "queue:" + q.name + ":delayed" }
func (q *Queue) jobKey(jobID string) string {
	return "queue:" + q.name + ":job:" + jobID
}

// Enqueue adds a job keyed by jobID. Returns false without enqueueing when a
// job with the same id already exists in any non-terminal state.
func (q *Queue) Enqueue(ctx context.Context, jobID string, payload []byte) (bool, error) {
	created, err := q.rdb.HSetNX(ctx, q.jobKey(jobID), "state", StateWaiting).Result()
	if err != nil {
		return false, fmt.Errorf("failed to register job: %w", err)
	}
	if !created {
		return false, nil
	}

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID), "payload", payload, "attempts", 0, "enqueued_at", time.Now().UTC().Unix())
	pipe.LPush(ctx, q.waitKey(), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return true, nil
}

// Dequeue blocks up to the given duration for the next waiting job. Returns
// (nil, nil) on timeout or when the popped job was removed in the meantime.
func (q *Queue) Dequeue(ctx context.Context, block time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, block, q.waitKey()).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	if len(res) != 2 {
		return nil, nil
	}
	jobID := res[1]

	pipe := q.rdb.TxPipeline()
	payloadCmd := pipe.HGet(ctx, q.jobKey(jobID), "payload")
	attemptCmd := pipe.HIncrBy(ctx, q.jobKey(jobID), "attempts", 1)
	pipe.HSet(ctx, q.jobKey(jobID), "state", StateActive)
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("failed to activate job %s: %w", jobID, err)
	}

	payload, err := payloadCmd.Bytes()
	if err != nil {
		// Job hash was removed between pop and read; drop it.
		slog.Warn("Dequeued job without payload, dropping", "queue", q.name, "job_id", jobID)
		_ = q.rdb.Del(ctx, q.jobKey(jobID)).Err()
		return nil, nil
	}

	return &Job{
		ID:      jobID,
		Payload: payload,
		Attempt: int(attemptCmd.Val()),
	}, nil
}

// Complete removes a finished job
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	if err := q.rdb.Del(ctx, q.jobKey(jobID)).Err(); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// Fail records a handler failure. Jobs below the attempt cap are parked in
// the delayed set with exponential backoff; the rest are marked failed and
// retained briefly for inspection.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) error {
	if job.Attempt >= q.maxAttempts {
		pipe := q.rdb.TxPipeline()
		pipe.HSet(ctx, q.jobKey(job.ID), "state", StateFailed, "error", cause.Error())
		pipe.Expire(ctx, q.jobKey(job.ID), failedJobRetention)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		slog.Error("Job failed permanently",
			"queue", q.name,
			"job_id", job.ID,
			"attempts", job.Attempt,
			"error", cause,
		)
		return nil
	}

	delay := q.retryDelay(job.Attempt)
	runAt := time.Now().UTC().Add(delay)

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, q.jobKey(job.ID), "state", StateDelayed, "error", cause.Error())
	pipe.ZAdd(ctx, q.delayedKey(), goredis.Z{Score: float64(runAt.Unix()), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delay job: %w", err)
	}

	slog.Warn("Job failed, retrying",
		"queue", q.name,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"next_retry_in", delay.String(),
		"error", cause,
	)
	return nil
}

// MoveDue promotes delayed jobs whose retry time has arrived back onto the
// wait list. Called periodically by the maintenance janitor.
func (q *Queue) MoveDue(ctx context.Context, now time.Time, batch int64) (int, error) {
	ids, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &goredis.ZRangeBy{
		Min:    "-inf",
		Max:    strconv.FormatInt(now.Unix(), 10),
		Offset: 0,
		Count:  batch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list due jobs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := q.rdb.TxPipeline()
	for _, id := range ids {
		pipe.HSet(ctx, q.jobKey(id), "state", StateWaiting)
		pipe.LPush(ctx, q.waitKey(), id)
		pipe.ZRem(ctx, q.delayedKey(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to promote due jobs: %w", err)
	}

	return len(ids), nil
}

// RemoveIfNotStarted removes a job that is still waiting or delayed. Returns
// false when the job has already been picked up by a worker; cancellation of
// a started job is handled cooperatively by the resolver instead.
func (q *Queue) RemoveIfNotStarted(ctx context.Context, jobID string) (bool, error) {
	pipe := q.rdb.TxPipeline()
	waitCmd := pipe.LRem(ctx, q.waitKey(), 0, jobID)
	delayedCmd := pipe.ZRem(ctx, q.delayedKey(), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to remove job: %w", err)
	}

	if waitCmd.Val() == 0 && delayedCmd.Val() == 0 {
		return false, nil
	}

	if err := q.rdb.Del(ctx, q.jobKey(jobID)).Err(); err != nil {
		return false, fmt.Errorf("failed to delete removed job: %w", err)
	}
	return true, nil
}
