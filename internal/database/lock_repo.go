package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandantas/magpie/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LockRepository handles distributed lock operations for maintenance tasks
type LockRepository struct {
	collection *mongo.Collection
}

// NewLockRepository creates a new lock repository
func NewLockRepository(db *MongoDB) *LockRepository {
	return &LockRepository{
		collection: db.GetCollection(CollectionMaintenanceLocks),
	}
}

// AcquireLock attempts to acquire a distributed lock for a maintenance task.
// Returns true if the lock was successfully acquired, false if it's already
// held by another pod. Uses FindOneAndUpdate with upsert for atomicity.
func (r *LockRepository) AcquireLock(ctx context.Context, task string, podID string, ttl time.Duration) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	// Either no lock exists for this task, or the existing lock has expired
	filter := bson.M{
		"task": task,
		"$or": []bson.M{
			{"expires_at": bson.M{"$lt": now}},
			{"expires_at": bson.M{"$exists": false}},
		},
	}

	update := bson.M{
		"$set": bson.M{
			"task":       task,
			"locked_by":  podID,
			"locked_at":  now,
			"expires_at": expiresAt,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result model.MaintenanceLock
	err := r.collection.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Lock is already held by another pod and hasn't expired
			return false, nil
		}
		if mongo.IsDuplicateKeyError(err) {
			// Upsert raced with another holder on the unique task index
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if result.LockedBy != podID {
		return false, nil
	}

	slog.Debug("Successfully acquired lock",
		"task", task,
		"pod_id", podID,
		"expires_at", expiresAt,
	)

	return true, nil
}

// ReleaseLock releases a distributed lock, but only if it's owned by the
// specified pod. This prevents a pod from releasing another pod's lock.
func (r *LockRepository) ReleaseLock(ctx context.Context, task string, podID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"task":      task,
		"locked_by": podID,
	}

	result, err := r.collection.DeleteOne(ctxTimeout, filter)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Debug("Successfully released lock",
			"task", task,
			"pod_id", podID,
		)
	}

	return nil
}

// ReleaseAllLocks releases all locks owned by the specified pod. This is
// typically called during graceful shutdown.
func (r *LockRepository) ReleaseAllLocks(ctx context.Context, podID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, bson.M{"locked_by": podID})
	if err != nil {
		return fmt.Errorf("failed to release all locks: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Info("Released all locks during shutdown",
			"pod_id", podID,
			"count", result.DeletedCount,
		)
	}

	return nil
}
