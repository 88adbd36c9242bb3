package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dandantas/magpie/internal/cache"
	"github.com/dandantas/magpie/internal/model"
)

// Defaults for the batched fetch loop. The inter-batch delay is a deliberate
// rate-limit courtesy to the remote source.
const (
	DefaultChunkSize  = 10
	DefaultBatchDelay = time.Second
)

// BatchResolver implements the cache-aside fetch engine: batched cache
// lookups, chunked concurrent fetches for the misses, batched cache
// write-back, and a cooperative cancellation check between chunks.
type BatchResolver struct {
	cache      ProfileCache
	fetcher    ProfileFetcher
	poller     StatusPoller
	chunkSize  int
	batchDelay time.Duration
}

// NewBatchResolver creates a batch resolver. Zero chunkSize/batchDelay select
// the defaults.
func NewBatchResolver(profileCache ProfileCache, fetcher ProfileFetcher, poller StatusPoller, chunkSize int, batchDelay time.Duration) *BatchResolver {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if batchDelay <= 0 {
		batchDelay = DefaultBatchDelay
	}
	return &BatchResolver{
		cache:      profileCache,
		fetcher:    fetcher,
		poller:     poller,
		chunkSize:  chunkSize,
		batchDelay: batchDelay,
	}
}

// Resolve resolves usernames into outcomes, preserving input order. When
// requestID is non-empty the request's status is polled before each chunk;
// a cancelled request stops further fetching and the outcomes computed so far
// are returned. Usernames never reached are simply absent from the result,
// so len(outcomes) <= len(usernames), with equality unless truncated.
func (r *BatchResolver) Resolve(ctx context.Context, usernames []string, requestID string) ([]model.ProfileOutcome, error) {
	resolved := make(map[string]model.ProfileOutcome, len(usernames))

	// 1. One batched cache round trip for everything.
	cached := r.cache.MGet(ctx, usernames)

	var misses []string
	for i, username := range usernames {
		if cached[i] != nil {
			resolved[strings.ToLower(username)] = model.ProfileOutcome{
				Username:  username,
				Status:    model.OutcomeSuccess,
				Data:      cached[i],
				FromCache: true,
			}
			continue
		}
		misses = append(misses, username)
	}

	if len(misses) == 0 {
		slog.Info("All profiles retrieved from cache", "count", len(usernames))
		return assemble(usernames, resolved), nil
	}

	slog.Info("Cache lookup complete",
		"hits", len(usernames)-len(misses),
		"misses", len(misses),
	)

	// 2. Process misses in fixed-size chunks, strictly sequentially.
	chunks := chunkUsernames(misses, r.chunkSize)
	for i, chunk := range chunks {
		// Cooperative cancellation check at the chunk boundary.
		if requestID != "" {
			status, err := r.poller.GetStatus(ctx, requestID)
			if err != nil {
				slog.Warn("Cancellation poll failed, continuing", "request_id", requestID, "error", err)
			} else if status == model.StatusCancelled {
				slog.Info("Request cancelled, stopping batch processing",
					"request_id", requestID,
					"chunks_done", i,
					"chunks_total", len(chunks),
				)
				break
			}
		}

		slog.Info("Processing batch",
			"batch", i+1,
			"batches", len(chunks),
			"size", len(chunk),
		)

		outcomes := r.resolveChunk(ctx, chunk)

		// 3. Write successful fetches back in one pipelined operation.
		var entries []cache.Entry
		for _, outcome := range outcomes {
			if outcome.Status == model.OutcomeSuccess {
				entries = append(entries, cache.Entry{Username: outcome.Username, Payload: outcome.Data})
			}
		}
		if len(entries) > 0 {
			r.cache.MSet(ctx, entries)
		}

		for _, outcome := range outcomes {
			resolved[strings.ToLower(outcome.Username)] = outcome
		}

		if i < len(chunks)-1 {
			select {
			case <-time.After(r.batchDelay):
			case <-ctx.Done():
				return assemble(usernames, resolved), ctx.Err()
			}
		}
	}

	return assemble(usernames, resolved), nil
}

// resolveChunk fetches every username in the chunk concurrently. One item's
// failure never aborts its siblings; failures become error outcomes.
func (r *BatchResolver) resolveChunk(ctx context.Context, chunk []string) []model.ProfileOutcome {
	outcomes := make([]model.ProfileOutcome, len(chunk))

	var wg sync.WaitGroup
	for i, username := range chunk {
		wg.Add(1)
		go func(i int, username string) {
			defer wg.Done()

			payload, err := r.fetcher.FetchProfile(ctx, username)
			if err != nil {
				outcomes[i] = model.ProfileOutcome{
					Username: username,
					Status:   model.OutcomeError,
					Message:  err.Error(),
				}
				return
			}

			outcomes[i] = model.ProfileOutcome{
				Username: username,
				Status:   model.OutcomeSuccess,
				Data:     payload,
			}
		}(i, username)
	}
	wg.Wait()

	return outcomes
}

// assemble rebuilds the outcome list in the caller's original input order.
// Usernames never processed (cancellation) are left out.
func assemble(usernames []string, resolved map[string]model.ProfileOutcome) []model.ProfileOutcome {
	outcomes := make([]model.ProfileOutcome, 0, len(usernames))
	for _, username := range usernames {
		if outcome, ok := resolved[strings.ToLower(username)]; ok {
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes
}

func chunkUsernames(usernames []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(usernames); start += size {
		end := start + size
		if end > len(usernames) {
			end = len(usernames)
		}
		chunks = append(chunks, usernames[start:end])
	}
	return chunks
}
