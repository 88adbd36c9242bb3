package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dandantas/magpie/internal/model"
)

type stubStore struct {
	mu       sync.Mutex
	requests map[string]*model.ProfileRequest
}

func newStubStore() *stubStore {
	return &stubStore{requests: make(map[string]*model.ProfileRequest)}
}

func (s *stubStore) add(request *model.ProfileRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.RequestID] = request
}

func (s *stubStore) Create(_ context.Context, request *model.ProfileRequest) error {
	s.add(request)
	return nil
}

func (s *stubStore) FindByID(_ context.Context, requestID string) (*model.ProfileRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, nil
	}
	return request, nil
}

func (s *stubStore) FindActiveByClient(_ context.Context, _ string) (*model.ProfileRequest, error) {
	return nil, nil
}

func (s *stubStore) GetStatus(_ context.Context, requestID string) (model.RequestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return "", errors.New("not found")
	}
	return request.ProcessStatus, nil
}

func (s *stubStore) ClaimProcessing(_ context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok || request.ProcessStatus != model.StatusPending {
		return false, nil
	}
	request.ProcessStatus = model.StatusProcessing
	return true, nil
}

func (s *stubStore) FinalizeDone(_ context.Context, requestID string, progress model.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return errors.New("not found")
	}
	request.TotalProcess = progress.TotalProcess
	request.TotalError = progress.TotalError
	request.TotalSuccess = progress.TotalSuccess
	request.Result = progress.Result
	if request.ProcessStatus != model.StatusCancelled {
		request.ProcessStatus = model.StatusDone
	}
	return nil
}

func (s *stubStore) Cancel(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if request, ok := s.requests[requestID]; ok {
		request.ProcessStatus = model.StatusCancelled
	}
	return nil
}

func (s *stubStore) UpdateCallback(_ context.Context, requestID string, response string, retryCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if request, ok := s.requests[requestID]; ok {
		request.CallbackResponse = response
		request.CallbackRetryCount = retryCount
	}
	return nil
}

type stubResolver struct {
	outcomes []model.ProfileOutcome
	err      error
	calls    int
}

func (r *stubResolver) Resolve(_ context.Context, usernames []string, _ string) ([]model.ProfileOutcome, error) {
	r.calls++
	if r.outcomes != nil || r.err != nil {
		return r.outcomes, r.err
	}
	outcomes := make([]model.ProfileOutcome, len(usernames))
	for i, username := range usernames {
		outcomes[i] = model.ProfileOutcome{Username: username, Status: model.OutcomeSuccess}
	}
	return outcomes, nil
}

type stubCallbacks struct {
	deliveries []string
	err        error
}

func (c *stubCallbacks) Deliver(_ context.Context, requestID string, _ string) error {
	c.deliveries = append(c.deliveries, requestID)
	return c.err
}

func pendingRequest(requestID string, usernames []string) *model.ProfileRequest {
	return &model.ProfileRequest{
		RequestID:     requestID,
		ClientID:      "client-1",
		Usernames:     usernames,
		TotalUsername: len(usernames),
		ProcessStatus: model.StatusPending,
	}
}

func TestProcessFinalizesRequest(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	store.add(pendingRequest("req-1", []string{"@alice", "@bob"}))
	callbacks := &stubCallbacks{}
	consumer := NewConsumer(nil, store, &stubResolver{}, callbacks, 1)

	err := consumer.Process(ctx, model.UnitOfWork{
		RequestID:   "req-1",
		Usernames:   []string{"@alice", "@bob"},
		CallbackURL: "https://example.com/hook",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	request := store.requests["req-1"]
	if request.ProcessStatus != model.StatusDone {
		t.Errorf("expected done, got %s", request.ProcessStatus)
	}
	if request.TotalProcess != 2 || request.TotalSuccess != 2 || request.TotalError != 0 {
		t.Errorf("unexpected counts: %+v", request)
	}
	if request.TotalProcess != request.TotalSuccess+request.TotalError {
		t.Errorf("count invariant violated: %+v", request)
	}
	if len(callbacks.deliveries) != 1 || callbacks.deliveries[0] != "req-1" {
		t.Errorf("expected one callback delivery: %v", callbacks.deliveries)
	}
}

func TestProcessMixedOutcomes(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	store.add(pendingRequest("req-1", []string{"@alice", "@bob", "@carol"}))
	resolver := &stubResolver{outcomes: []model.ProfileOutcome{
		{Username: "@alice", Status: model.OutcomeSuccess},
		{Username: "@bob", Status: model.OutcomeError, Message: "profile not found"},
		{Username: "@carol", Status: model.OutcomeSuccess},
	}}
	consumer := NewConsumer(nil, store, resolver, &stubCallbacks{}, 1)

	if err := consumer.Process(ctx, model.UnitOfWork{
		RequestID: "req-1",
		Usernames: []string{"@alice", "@bob", "@carol"},
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	request := store.requests["req-1"]
	if request.TotalProcess != 3 || request.TotalSuccess != 2 || request.TotalError != 1 {
		t.Errorf("unexpected counts: process=%d success=%d error=%d",
			request.TotalProcess, request.TotalSuccess, request.TotalError)
	}
}

func TestProcessResolverFailureStillTerminal(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	store.add(pendingRequest("req-1", []string{"@alice", "@bob", "@carol"}))
	resolver := &stubResolver{
		outcomes: []model.ProfileOutcome{
			{Username: "@alice", Status: model.OutcomeSuccess},
		},
		err: errors.New("context deadline exceeded"),
	}
	consumer := NewConsumer(nil, store, resolver, &stubCallbacks{}, 1)

	if err := consumer.Process(ctx, model.UnitOfWork{
		RequestID: "req-1",
		Usernames: []string{"@alice", "@bob", "@carol"},
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	request := store.requests["req-1"]
	if request.ProcessStatus != model.StatusDone {
		t.Errorf("request must reach a terminal status, got %s", request.ProcessStatus)
	}
	if request.TotalProcess != 3 {
		t.Fatalf("every username must be accounted for, got %d", request.TotalProcess)
	}
	if request.TotalSuccess != 1 || request.TotalError != 2 {
		t.Errorf("unreached usernames should become errors: success=%d error=%d",
			request.TotalSuccess, request.TotalError)
	}
	for _, outcome := range request.Result[1:] {
		if outcome.Status != model.OutcomeError || outcome.Message == "" {
			t.Errorf("unreached outcome should carry the failure cause: %+v", outcome)
		}
	}
}

func TestProcessCancellationTruncationNotBackfilled(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	store.add(pendingRequest("req-1", []string{"@alice", "@bob", "@carol", "@dave"}))
	// A cancelled resolve returns the outcomes computed so far with no error.
	resolver := &stubResolver{outcomes: []model.ProfileOutcome{
		{Username: "@alice", Status: model.OutcomeSuccess},
		{Username: "@bob", Status: model.OutcomeSuccess},
	}}
	consumer := NewConsumer(nil, store, resolver, &stubCallbacks{}, 1)

	if err := consumer.Process(ctx, model.UnitOfWork{
		RequestID: "req-1",
		Usernames: []string{"@alice", "@bob", "@carol", "@dave"},
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	request := store.requests["req-1"]
	if request.TotalProcess != 2 {
		t.Errorf("truncated outcomes must not be padded: got %d", request.TotalProcess)
	}
	if len(request.Result) != 2 {
		t.Errorf("expected 2 recorded outcomes, got %d", len(request.Result))
	}
}

func TestProcessSkipsTerminalRequest(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	store.add(&model.ProfileRequest{
		RequestID:     "req-1",
		ProcessStatus: model.StatusCancelled,
	})
	resolver := &stubResolver{}
	consumer := NewConsumer(nil, store, resolver, &stubCallbacks{}, 1)

	if err := consumer.Process(ctx, model.UnitOfWork{
		RequestID: "req-1",
		Usernames: []string{"@alice"},
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if resolver.calls != 0 {
		t.Errorf("cancelled request must not be resolved")
	}
	if store.requests["req-1"].ProcessStatus != model.StatusCancelled {
		t.Errorf("terminal status must not change")
	}
}

func TestProcessRedeliveryOfProcessingRequest(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	// A prior delivery claimed the request and died before finalizing.
	store.add(&model.ProfileRequest{
		RequestID:     "req-1",
		Usernames:     []string{"@alice"},
		TotalUsername: 1,
		ProcessStatus: model.StatusProcessing,
	})
	resolver := &stubResolver{}
	consumer := NewConsumer(nil, store, resolver, &stubCallbacks{}, 1)

	if err := consumer.Process(ctx, model.UnitOfWork{
		RequestID: "req-1",
		Usernames: []string{"@alice"},
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if resolver.calls != 1 {
		t.Errorf("redelivered processing request should be resumed")
	}
	if store.requests["req-1"].ProcessStatus != model.StatusDone {
		t.Errorf("redelivery should finish the request, got %s", store.requests["req-1"].ProcessStatus)
	}
}

func TestProcessCallbackFailureDoesNotFailJob(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	store.add(pendingRequest("req-1", []string{"@alice"}))
	callbacks := &stubCallbacks{err: errors.New("callback endpoint unreachable")}
	consumer := NewConsumer(nil, store, &stubResolver{}, callbacks, 1)

	err := consumer.Process(ctx, model.UnitOfWork{
		RequestID:   "req-1",
		Usernames:   []string{"@alice"},
		CallbackURL: "https://example.com/hook",
	})
	if err != nil {
		t.Fatalf("callback failure must not fail the job: %v", err)
	}
	if store.requests["req-1"].ProcessStatus != model.StatusDone {
		t.Errorf("request should still be done")
	}
}

func TestProcessSkipsCallbackWithoutURL(t *testing.T) {
	ctx := context.Background()
	store := newStubStore()
	store.add(pendingRequest("req-1", []string{"@alice"}))
	callbacks := &stubCallbacks{}
	consumer := NewConsumer(nil, store, &stubResolver{}, callbacks, 1)

	if err := consumer.Process(ctx, model.UnitOfWork{
		RequestID: "req-1",
		Usernames: []string{"@alice"},
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(callbacks.deliveries) != 0 {
		t.Errorf("no callback expected without a URL")
	}
}

func TestComputeProgressInvariant(t *testing.T) {
	outcomes := []model.ProfileOutcome{
		{Username: "@a", Status: model.OutcomeSuccess},
		{Username: "@b", Status: model.OutcomeError},
		{Username: "@c", Status: model.OutcomeError},
		{Username: "@d", Status: model.OutcomeSuccess},
	}

	progress := computeProgress(outcomes)
	if progress.TotalProcess != 4 {
		t.Errorf("expected 4 processed, got %d", progress.TotalProcess)
	}
	if progress.TotalProcess != progress.TotalSuccess+progress.TotalError {
		t.Errorf("invariant violated: %+v", progress)
	}
	if progress.TotalSuccess != 2 || progress.TotalError != 2 {
		t.Errorf("unexpected split: %+v", progress)
	}
}
