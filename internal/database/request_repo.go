package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dandantas/magpie/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RequestRepository handles profile request persistence
type RequestRepository struct {
	collection *mongo.Collection
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *MongoDB) *RequestRepository {
	return &RequestRepository{
		collection: db.GetCollection(CollectionProfileRequests),
	}
}

// Create inserts a new profile request record
func (r *RequestRepository) Create(ctx context.Context, request *model.ProfileRequest) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if request.ID.IsZero() {
		request.ID = primitive.NewObjectID()
	}

	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now

	_, err := r.collection.InsertOne(ctxTimeout, request)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &model.DuplicateKeyError{RequestID: request.RequestID}
		}
		return fmt.Errorf("failed to create profile request: %w", err)
	}

	return nil
}

// FindByID retrieves a profile request by request id. Returns (nil, nil) when
// no request exists.
func (r *RequestRepository) FindByID(ctx context.Context, requestID string) (*model.ProfileRequest, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var request model.ProfileRequest
	err := r.collection.FindOne(ctxTimeout, bson.M{"request_id": requestID}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find profile request: %w", err)
	}

	return &request, nil
}

// FindActiveByClient retrieves the client's pending or processing request, if
// any. Returns (nil, nil) when the client has no active request.
func (r *RequestRepository) FindActiveByClient(ctx context.Context, clientID string) (*model.ProfileRequest, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"client_id":      clientID,
		"process_status": bson.M{"$in": []model.RequestStatus{model.StatusPending, model.StatusProcessing}},
	}

	var request model.ProfileRequest
	err := r.collection.FindOne(ctxTimeout, filter).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active request: %w", err)
	}

	return &request, nil
}

// GetStatus retrieves only the lifecycle status of a request. This is the
// cheap poll used by the resolver's cooperative cancellation check. Returns
// an empty status when the request does not exist.
func (r *RequestRepository) GetStatus(ctx context.Context, requestID string) (model.RequestStatus, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetProjection(bson.M{"process_status": 1})

	var result struct {
		ProcessStatus model.RequestStatus `bson:"process_status"`
	}
	err := r.collection.FindOne(ctxTimeout, bson.M{"request_id": requestID}, opts).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get request status: %w", err)
	}

	return result.ProcessStatus, nil
}

// ClaimProcessing atomically transitions a request from pending to
// processing. Returns false when the request is not in pending state, which
// makes duplicate job deliveries safe to drop.
func (r *RequestRepository) ClaimProcessing(ctx context.Context, requestID string) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"request_id":     requestID,
		"process_status": model.StatusPending,
	}
	update := bson.M{
		"$set": bson.M{
			"process_status": model.StatusProcessing,
			"updated_at":     time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctxTimeout, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to claim request: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

// FinalizeDone writes the final progress of a request in a single update.
// Counts and result are always recorded, but a request that was cancelled
// mid-flight keeps its cancelled status rather than being flipped to done.
func (r *RequestRepository) FinalizeDone(ctx context.Context, requestID string, progress model.Progress) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	fields := bson.M{
		"total_process": progress.TotalProcess,
		"total_error":   progress.TotalError,
		"total_success": progress.TotalSuccess,
		"result":        progress.Result,
		"updated_at":    now,
	}

	// First try the normal path: everything not already cancelled goes to done.
	fields["process_status"] = model.StatusDone
	filter := bson.M{
		"request_id":     requestID,
		"process_status": bson.M{"$ne": model.StatusCancelled},
	}
	result, err := r.collection.UpdateOne(ctxTimeout, filter, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to finalize request: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Cancelled mid-flight: record the partial progress, keep the status.
	delete(fields, "process_status")
	result, err = r.collection.UpdateOne(ctxTimeout, bson.M{"request_id": requestID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to record progress on cancelled request: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("request not found: %s", requestID)
	}

	return nil
}

// Cancel marks a request as cancelled. Idempotent at this layer; validation
// of "already terminal" happens in the orchestrator.
func (r *RequestRepository) Cancel(ctx context.Context, requestID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"process_status": model.StatusCancelled,
			"updated_at":     time.Now().UTC(),
		},
	}

	_, err := r.collection.UpdateOne(ctxTimeout, bson.M{"request_id": requestID}, update)
	if err != nil {
		return fmt.Errorf("failed to cancel request: %w", err)
	}

	return nil
}

// UpdateCallback records the outcome of a callback delivery attempt
func (r *RequestRepository) UpdateCallback(ctx context.Context, requestID string, response string, retryCount int) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"callback_response":    response,
			"callback_retry_count": retryCount,
			"updated_at":           time.Now().UTC(),
		},
	}

	_, err := r.collection.UpdateOne(ctxTimeout, bson.M{"request_id": requestID}, update)
	if err != nil {
		return fmt.Errorf("failed to update callback state: %w", err)
	}

	return nil
}

// FindStuckProcessing lists requests that have sat in processing state with
// no progress write for longer than the given age. Used by the maintenance
// janitor to recover from a consumer that died mid-job.
func (r *RequestRepository) FindStuckProcessing(ctx context.Context, olderThan time.Duration) ([]model.ProfileRequest, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"process_status": model.StatusProcessing,
		"updated_at":     bson.M{"$lt": time.Now().UTC().Add(-olderThan)},
	}

	cursor, err := r.collection.Find(ctxTimeout, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck requests: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var requests []model.ProfileRequest
	if err := cursor.All(ctxTimeout, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode stuck requests: %w", err)
	}

	return requests, nil
}
