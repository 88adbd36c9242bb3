package service

import (
	"context"

	"github.com/dandantas/magpie/internal/cache"
	"github.com/dandantas/magpie/internal/model"
)

// RequestStore is the persistence surface the pipeline depends on. The Mongo
// implementation lives in internal/database.
type RequestStore interface {
	Create(ctx context.Context, request *model.ProfileRequest) error
	FindByID(ctx context.Context, requestID string) (*model.ProfileRequest, error)
	FindActiveByClient(ctx context.Context, clientID string) (*model.ProfileRequest, error)
	GetStatus(ctx context.Context, requestID string) (model.RequestStatus, error)
	ClaimProcessing(ctx context.Context, requestID string) (bool, error)
	FinalizeDone(ctx context.Context, requestID string, progress model.Progress) error
	Cancel(ctx context.Context, requestID string) error
	UpdateCallback(ctx context.Context, requestID string, response string, retryCount int) error
}

// StatusPoller is the narrow read the resolver uses for cooperative
// cancellation checks at chunk boundaries
type StatusPoller interface {
	GetStatus(ctx context.Context, requestID string) (model.RequestStatus, error)
}

// ProfileCache is the batched cache surface used by the resolver
type ProfileCache interface {
	MGet(ctx context.Context, usernames []string) []*model.ProfilePayload
	MSet(ctx context.Context, entries []cache.Entry)
}

// ProfileFetcher fetches a single profile from the remote source
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, username string) (*model.ProfilePayload, error)
}

// JobQueue is the queue surface the orchestrator depends on
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string, payload []byte) (bool, error)
	RemoveIfNotStarted(ctx context.Context, jobID string) (bool, error)
}

// ProfileResolver resolves a batch of usernames into ordered outcomes
type ProfileResolver interface {
	Resolve(ctx context.Context, usernames []string, requestID string) ([]model.ProfileOutcome, error)
}
