// Package cache implements the profile cache on top of Redis.
//
// The cache is best-effort: every operation degrades to a no-op (or an
// all-miss read) when caching is disabled or Redis misbehaves. Absence of a
// cached profile never fails a request, it only forces a re-fetch.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dandantas/magpie/internal/model"
)

// KeyPrefix namespaces profile entries in the shared Redis keyspace
const KeyPrefix = "tt:profile:"

// Entry is one key/value pair for a batched cache write
type Entry struct {
	Username string
	Payload  *model.ProfilePayload
}

// ProfileCache stores fetched profiles keyed by lower-cased username with a
// fixed TTL. A nil client disables caching entirely.
type ProfileCache struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

// New creates a profile cache. Pass a nil client to run with caching
// disabled; all operations become no-ops.
func New(rdb goredis.UniversalClient, ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		rdb: rdb,
		ttl: ttl,
	}
}

// Enabled reports whether a Redis client is attached
func (c *ProfileCache) Enabled() bool {
	return c.rdb != nil
}

// Key builds the namespaced cache key for a username
func Key(username string) string {
	return KeyPrefix + strings.ToLower(username)
}

// Get retrieves a single cached profile. Returns (nil, false) on miss,
// disabled cache, or any Redis/decode failure.
func (c *ProfileCache) Get(ctx context.Context, username string) (*model.ProfilePayload, bool) {
	if !c.Enabled() {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, Key(username)).Bytes()
	if err == goredis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("Cache get failed", "username", username, "error", err)
		return nil, false
	}

	var payload model.ProfilePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		slog.Warn("Cache entry corrupt, dropping", "username", username, "error", err)
		_ = c.rdb.Del(ctx, Key(username)).Err() // self-heal
		return nil, false
	}

	return &payload, true
}

// MGet retrieves cached profiles for all usernames in one round trip. The
// returned slice is aligned with the input; nil marks a miss. A disabled
// cache or a Redis failure reads as all misses.
func (c *ProfileCache) MGet(ctx context.Context, usernames []string) []*model.ProfilePayload {
	results := make([]*model.ProfilePayload, len(usernames))
	if !c.Enabled() || len(usernames) == 0 {
		return results
	}

	keys := make([]string, len(usernames))
	for i, username := range usernames {
		keys[i] = Key(username)
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Warn("Cache mget failed", "keys", len(keys), "error", err)
		return results
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var payload model.ProfilePayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			slog.Warn("Cache entry corrupt, skipping", "username", usernames[i], "error", err)
			continue
		}
		results[i] = &payload
	}

	return results
}

// Set stores one profile with the configured TTL. Best-effort.
func (c *ProfileCache) Set(ctx context.Context, username string, payload *model.ProfilePayload) {
	if !c.Enabled() || payload == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Cache set marshal failed", "username", username, "error", err)
		return
	}

	if err := c.rdb.Set(ctx, Key(username), raw, c.ttl).Err(); err != nil {
		slog.Warn("Cache set failed", "username", username, "error", err)
	}
}

// MSet stores a batch of profiles in one pipelined round trip. Best-effort.
func (c *ProfileCache) MSet(ctx context.Context, entries []Entry) {
	if !c.Enabled() || len(entries) == 0 {
		return
	}

	pipe := c.rdb.Pipeline()
	for _, entry := range entries {
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			slog.Warn("Cache mset marshal failed", "username", entry.Username, "error", err)
			continue
		}
		pipe.Set(ctx, Key(entry.Username), raw, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("Cache mset failed", "entries", len(entries), "error", err)
	}
}
