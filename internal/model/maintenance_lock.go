package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaintenanceLock represents a distributed lock for queue maintenance tasks
type MaintenanceLock struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Task      string             `json:"task" bson:"task"`
	LockedBy  string             `json:"locked_by" bson:"locked_by"`   // Pod identifier (hostname)
	LockedAt  time.Time          `json:"locked_at" bson:"locked_at"`   // Lock acquisition timestamp
	ExpiresAt time.Time          `json:"expires_at" bson:"expires_at"` // Lock expiration (TTL)
}
