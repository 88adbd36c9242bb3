package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/dandantas/magpie/internal/model"
)

// Process types accepted on submission. Instant resolves inline and returns
// outcomes; callback creates a durable request and processes it off a queue.
const (
	ProcessTypeInstant  = "instant"
	ProcessTypeCallback = "callback"
)

// Usernames start with @, are 2-24 characters of letters, digits, underscore
// or period, and cannot end with a period.
var usernameRe = regexp.MustCompile(`^@[\w.]{2,24}$`)

// SubmitOptions selects the processing mode for a submission
type SubmitOptions struct {
	Type        string
	CallbackURL string
}

// SubmitResult is the union of the two submission modes: Outcomes for
// instant, Request for callback.
type SubmitResult struct {
	Outcomes []model.ProfileOutcome
	Request  *model.RequestStatusView
}

// Orchestrator validates submissions, enforces the one-active-request rule,
// and exposes the public submit/cancel/status surface
type Orchestrator struct {
	store    RequestStore
	queue    JobQueue
	resolver ProfileResolver
}

// NewOrchestrator creates a request orchestrator
func NewOrchestrator(store RequestStore, jobQueue JobQueue, resolver ProfileResolver) *Orchestrator {
	return &Orchestrator{
		store:    store,
		queue:    jobQueue,
		resolver: resolver,
	}
}

// NormalizeUsernames trims each username, ensures the @ prefix, and validates
// the character and length constraints. Any invalid username fails the whole
// submission; there are no partial submissions.
func NormalizeUsernames(usernames []string) ([]string, error) {
	normalized := make([]string, len(usernames))
	for i, raw := range usernames {
		username := strings.TrimSpace(raw)
		if !strings.HasPrefix(username, "@") {
			username = "@" + username
		}
		if !usernameRe.MatchString(username) || strings.HasSuffix(username, ".") {
			return nil, model.NewValidationError(
				"invalid username format: %s. Usernames must start with @, be 2-24 characters long, and can only contain letters, numbers, underscores, and periods (cannot end with a period)",
				username,
			)
		}
		normalized[i] = username
	}
	return normalized, nil
}

// Submit validates and dispatches a batch submission. Instant mode resolves
// a single username synchronously without touching the request store.
// Callback mode creates a pending request, enqueues one unit of work keyed by
// the request id, and returns immediately with a zero-progress snapshot.
func (o *Orchestrator) Submit(ctx context.Context, usernames []string, opts SubmitOptions, clientID string) (*SubmitResult, error) {
	if len(usernames) == 0 {
		return nil, model.NewValidationError("usernames must be a non-empty array of strings")
	}

	normalized, err := NormalizeUsernames(usernames)
	if err != nil {
		return nil, err
	}

	processType := opts.Type
	if processType == "" {
		processType = ProcessTypeInstant
	}

	switch processType {
	case ProcessTypeInstant:
		return o.submitInstant(ctx, normalized)
	case ProcessTypeCallback:
		return o.submitCallback(ctx, normalized, opts.CallbackURL, clientID)
	default:
		return nil, model.NewValidationError("invalid process type: %s", processType)
	}
}

func (o *Orchestrator) submitInstant(ctx context.Context, usernames []string) (*SubmitResult, error) {
	if len(usernames) > 1 {
		return nil, model.NewValidationError("only 1 username is allowed for instant process type")
	}

	outcomes, err := o.resolver.Resolve(ctx, usernames, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profiles: %w", err)
	}

	return &SubmitResult{Outcomes: outcomes}, nil
}

func (o *Orchestrator) submitCallback(ctx context.Context, usernames []string, callbackURL string, clientID string) (*SubmitResult, error) {
	if callbackURL == "" {
		return nil, model.NewValidationError("callback.url is required for callback process type")
	}

	active, err := o.store.FindActiveByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active requests: %w", err)
	}
	if active != nil {
		return nil, model.NewConflictError(active.RequestID)
	}

	request := &model.ProfileRequest{
		RequestID:     uuid.New().String(),
		ClientID:      clientID,
		Usernames:     usernames,
		TotalUsername: len(usernames),
		ProcessStatus: model.StatusPending,
		CallbackURL:   callbackURL,
	}

	if err := o.store.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	payload, err := json.Marshal(model.UnitOfWork{
		RequestID:   request.RequestID,
		Usernames:   usernames,
		CallbackURL: callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal unit of work: %w", err)
	}

	enqueued, err := o.queue.Enqueue(ctx, request.RequestID, payload)
	if err != nil {
		// The record must not occupy the client's active slot if the work
		// never made it onto the queue.
		if cancelErr := o.store.Cancel(ctx, request.RequestID); cancelErr != nil {
			slog.Error("Failed to cancel orphaned request",
				"request_id", request.RequestID,
				"error", cancelErr,
			)
		}
		return nil, fmt.Errorf("failed to enqueue request: %w", err)
	}
	if !enqueued {
		slog.Warn("Job already enqueued for request", "request_id", request.RequestID)
	}

	slog.Info("Request submitted",
		"request_id", request.RequestID,
		"client_id", clientID,
		"total_username", request.TotalUsername,
	)

	view := request.StatusView()
	return &SubmitResult{Request: &view}, nil
}

// Cancel marks a request cancelled after ownership and lifecycle validation,
// then best-effort removes the still-queued unit of work. If the job already
// started, the resolver's chunk-boundary poll is the authoritative stop.
func (o *Orchestrator) Cancel(ctx context.Context, requestID string, clientID string) error {
	request, err := o.loadOwned(ctx, requestID, clientID)
	if err != nil {
		return err
	}

	if request.ProcessStatus.Terminal() {
		return model.NewValidationError("request is already in %s status and cannot be cancelled", request.ProcessStatus)
	}

	if err := o.store.Cancel(ctx, requestID); err != nil {
		return fmt.Errorf("failed to cancel request: %w", err)
	}

	removed, err := o.queue.RemoveIfNotStarted(ctx, requestID)
	if err != nil {
		slog.Warn("Failed to remove queued job", "request_id", requestID, "error", err)
	} else if removed {
		slog.Info("Removed queued job for cancelled request", "request_id", requestID)
	}

	return nil
}

// GetStatus returns the request's progress snapshot after ownership checks
func (o *Orchestrator) GetStatus(ctx context.Context, requestID string, clientID string) (*model.RequestStatusView, error) {
	request, err := o.loadOwned(ctx, requestID, clientID)
	if err != nil {
		return nil, err
	}

	view := request.StatusView()
	return &view, nil
}

func (o *Orchestrator) loadOwned(ctx context.Context, requestID string, clientID string) (*model.ProfileRequest, error) {
	request, err := o.store.FindByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if request == nil {
		return nil, model.NewNotFoundError("request with ID %s not found", requestID)
	}
	if request.ClientID != clientID {
		return nil, model.NewForbiddenError("you do not have permission to access this request")
	}
	return request, nil
}
