package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dandantas/magpie/internal/cache"
	"github.com/dandantas/magpie/internal/model"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*model.ProfilePayload
	mgets   int
	msets   int
}

var _ ProfileCache = (*fakeCache)(nil)

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*model.ProfilePayload)}
}

func (c *fakeCache) MGet(_ context.Context, usernames []string) []*model.ProfilePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mgets++
	results := make([]*model.ProfilePayload, len(usernames))
	for i, username := range usernames {
		results[i] = c.entries[strings.ToLower(username)]
	}
	return results
}

func (c *fakeCache) MSet(_ context.Context, entries []cache.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msets++
	for _, entry := range entries {
		c.entries[strings.ToLower(entry.Username)] = entry.Payload
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	errs  map[string]error
	calls int
}

var _ ProfileFetcher = (*fakeFetcher)(nil)

func (f *fakeFetcher) FetchProfile(_ context.Context, username string) (*model.ProfilePayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[username]; ok {
		return nil, err
	}
	return &model.ProfilePayload{
		Source: "universal_data",
		User:   model.ProfileUser{Username: strings.TrimPrefix(username, "@")},
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePoller returns the scripted statuses in order, repeating the last one
type fakePoller struct {
	mu       sync.Mutex
	statuses []model.RequestStatus
	idx      int
}

var _ StatusPoller = (*fakePoller)(nil)

func (p *fakePoller) GetStatus(_ context.Context, _ string) (model.RequestStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.statuses) == 0 {
		return model.StatusProcessing, nil
	}
	status := p.statuses[p.idx]
	if p.idx < len(p.statuses)-1 {
		p.idx++
	}
	return status, nil
}

func newTestResolver(c ProfileCache, f ProfileFetcher, p StatusPoller, chunkSize int) *BatchResolver {
	return NewBatchResolver(c, f, p, chunkSize, time.Millisecond)
}

func TestResolvePreservesInputOrder(t *testing.T) {
	ctx := context.Background()
	fetch := &fakeFetcher{}
	resolver := newTestResolver(newFakeCache(), fetch, &fakePoller{}, 5)

	usernames := []string{
		"@alpha", "@bravo", "@charlie", "@delta", "@echo",
		"@foxtrot", "@golf", "@hotel", "@india", "@juliett",
		"@kilo", "@lima",
	}

	outcomes, err := resolver.Resolve(ctx, usernames, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(outcomes) != len(usernames) {
		t.Fatalf("expected %d outcomes, got %d", len(usernames), len(outcomes))
	}
	for i, outcome := range outcomes {
		if outcome.Username != usernames[i] {
			t.Errorf("outcome %d: expected %s, got %s", i, usernames[i], outcome.Username)
		}
		if outcome.Status != model.OutcomeSuccess {
			t.Errorf("outcome %d: expected success, got %s", i, outcome.Status)
		}
		if outcome.FromCache {
			t.Errorf("outcome %d: unexpected cache hit", i)
		}
	}
	if fetch.callCount() != len(usernames) {
		t.Errorf("expected %d fetches, got %d", len(usernames), fetch.callCount())
	}
}

func TestResolveCacheHitSkipsFetch(t *testing.T) {
	ctx := context.Background()
	fetch := &fakeFetcher{}
	cached := newFakeCache()
	resolver := newTestResolver(cached, fetch, &fakePoller{}, 5)

	// First pass populates the cache.
	if _, err := resolver.Resolve(ctx, []string{"@alpha"}, ""); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if fetch.callCount() != 1 {
		t.Fatalf("expected 1 fetch on first pass, got %d", fetch.callCount())
	}

	// Second pass must be served entirely from cache.
	outcomes, err := resolver.Resolve(ctx, []string{"@alpha"}, "")
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if fetch.callCount() != 1 {
		t.Errorf("expected no additional fetches, got %d total", fetch.callCount())
	}
	if len(outcomes) != 1 || !outcomes[0].FromCache {
		t.Errorf("expected a single cache-hit outcome, got %+v", outcomes)
	}
}

func TestResolveItemFailureDoesNotAbortSiblings(t *testing.T) {
	ctx := context.Background()
	fetch := &fakeFetcher{errs: map[string]error{
		"@bravo": model.NewFetchError("fetch exploded"),
	}}
	resolver := newTestResolver(newFakeCache(), fetch, &fakePoller{}, 5)

	outcomes, err := resolver.Resolve(ctx, []string{"@alpha", "@bravo", "@charlie"}, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Status != model.OutcomeSuccess || outcomes[2].Status != model.OutcomeSuccess {
		t.Errorf("sibling items should succeed: %+v", outcomes)
	}
	if outcomes[1].Status != model.OutcomeError || outcomes[1].Message == "" {
		t.Errorf("failed item should carry an error outcome: %+v", outcomes[1])
	}
}

func TestResolveFailuresAreNotCached(t *testing.T) {
	ctx := context.Background()
	fetch := &fakeFetcher{errs: map[string]error{
		"@bravo": model.NewFetchError("fetch exploded"),
	}}
	cached := newFakeCache()
	resolver := newTestResolver(cached, fetch, &fakePoller{}, 5)

	if _, err := resolver.Resolve(ctx, []string{"@alpha", "@bravo"}, ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if _, ok := cached.entries["@alpha"]; !ok {
		t.Errorf("successful fetch should be cached")
	}
	if _, ok := cached.entries["@bravo"]; ok {
		t.Errorf("failed fetch must not be cached")
	}
}

func TestResolveCancellationTruncates(t *testing.T) {
	ctx := context.Background()
	fetch := &fakeFetcher{}
	// First chunk-boundary poll sees processing, every later one cancelled.
	poller := &fakePoller{statuses: []model.RequestStatus{
		model.StatusProcessing,
		model.StatusCancelled,
	}}
	resolver := newTestResolver(newFakeCache(), fetch, poller, 2)

	usernames := []string{"@alpha", "@bravo", "@charlie", "@delta", "@echo", "@foxtrot"}
	outcomes, err := resolver.Resolve(ctx, usernames, "req-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(outcomes) != 2 {
		t.Fatalf("expected outcomes truncated to first chunk, got %d", len(outcomes))
	}
	for i, outcome := range outcomes {
		if outcome.Username != usernames[i] {
			t.Errorf("outcome %d: expected %s, got %s", i, usernames[i], outcome.Username)
		}
	}
	if fetch.callCount() != 2 {
		t.Errorf("expected fetches to stop after cancellation, got %d", fetch.callCount())
	}
}

func TestResolveAllFromCacheSingleRoundTrip(t *testing.T) {
	ctx := context.Background()
	cached := newFakeCache()
	cached.entries["@alpha"] = &model.ProfilePayload{}
	cached.entries["@bravo"] = &model.ProfilePayload{}
	fetch := &fakeFetcher{}
	resolver := newTestResolver(cached, fetch, &fakePoller{}, 5)

	outcomes, err := resolver.Resolve(ctx, []string{"@Alpha", "@BRAVO"}, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, outcome := range outcomes {
		if !outcome.FromCache {
			t.Errorf("expected cache hit for %s", outcome.Username)
		}
	}
	if fetch.callCount() != 0 {
		t.Errorf("expected no fetches, got %d", fetch.callCount())
	}
	if cached.mgets != 1 {
		t.Errorf("expected a single batched cache read, got %d", cached.mgets)
	}
}
