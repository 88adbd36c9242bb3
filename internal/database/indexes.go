package database

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates all necessary indexes for the collections
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	slog.Info("Creating MongoDB indexes")

	if err := createProfileRequestIndexes(ctx, db); err != nil {
		return err
	}

	if err := createMaintenanceLockIndexes(ctx, db); err != nil {
		return err
	}

	slog.Info("Successfully created all MongoDB indexes")
	return nil
}

func createProfileRequestIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionProfileRequests)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_request_id_unique"),
		},
		{
			// Backs the one-active-request-per-client lookup
			Keys: bson.D{
				{Key: "client_id", Value: 1},
				{Key: "process_status", Value: 1},
			},
			Options: options.Index().SetName("idx_client_id_process_status"),
		},
		{
			Keys: bson.D{
				{Key: "process_status", Value: 1},
				{Key: "updated_at", Value: 1},
			},
			Options: options.Index().SetName("idx_process_status_updated_at"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctxTimeout, indexes)
	if err != nil {
		return err
	}

	slog.Info("Created request_profiles indexes")
	return nil
}

func createMaintenanceLockIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionMaintenanceLocks)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "task", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_task_unique"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_expires_at_ttl"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctxTimeout, indexes)
	if err != nil {
		return err
	}

	slog.Info("Created maintenance_locks indexes")
	return nil
}
