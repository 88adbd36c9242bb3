package model

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestStatus represents the lifecycle state of a profile request
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusProcessing RequestStatus = "processing"
	StatusDone       RequestStatus = "done"
	StatusCancelled  RequestStatus = "cancelled"
)

// Terminal reports whether no further lifecycle transitions are allowed
func (s RequestStatus) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// Active reports whether the request still occupies the client's single
// active-request slot
func (s RequestStatus) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

// OutcomeStatus is the per-item resolution result
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
)

// ProfileOutcome is the resolution result for a single username. Outcomes are
// only persisted as the final aggregate on a request, never individually.
type ProfileOutcome struct {
	Username  string          `json:"username" bson:"username"`
	Status    OutcomeStatus   `json:"status" bson:"status"`
	Data      *ProfilePayload `json:"data,omitempty" bson:"data,omitempty"`
	Message   string          `json:"message,omitempty" bson:"message,omitempty"`
	FromCache bool            `json:"from_cache,omitempty" bson:"from_cache,omitempty"`
}

// ProfileRequest is the durable record of one batch submission and its
// progress through the pipeline
type ProfileRequest struct {
	ID                 primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	RequestID          string             `json:"request_id" bson:"request_id"`
	ClientID           string             `json:"-" bson:"client_id"`
	Usernames          []string           `json:"-" bson:"usernames"`
	TotalUsername      int                `json:"total_username" bson:"total_username"`
	TotalProcess       int                `json:"total_process" bson:"total_process"`
	TotalError         int                `json:"total_error" bson:"total_error"`
	TotalSuccess       int                `json:"total_success" bson:"total_success"`
	Result             []ProfileOutcome   `json:"result,omitempty" bson:"result,omitempty"`
	ProcessStatus      RequestStatus      `json:"process_status" bson:"process_status"`
	CallbackURL        string             `json:"-" bson:"callback_url,omitempty"`
	CallbackResponse   string             `json:"-" bson:"callback_response,omitempty"`
	CallbackRetryCount int                `json:"-" bson:"callback_retry_count"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"-" bson:"updated_at"`
}

// ProcessPercentage derives the completion percentage, 0 for an empty request
func (r *ProfileRequest) ProcessPercentage() int {
	if r.TotalUsername <= 0 {
		return 0
	}
	return int(math.Round(float64(r.TotalProcess) / float64(r.TotalUsername) * 100))
}

// Progress is the write shape for a finalization update. TotalProcess must
// equal TotalError + TotalSuccess.
type Progress struct {
	TotalProcess int
	TotalError   int
	TotalSuccess int
	Result       []ProfileOutcome
}

// RequestStatusView is the wire shape returned by status polls and embedded
// in callback payloads
type RequestStatusView struct {
	RequestID         string           `json:"request_id"`
	TotalUsername     int              `json:"total_username"`
	TotalProcess      int              `json:"total_process"`
	TotalError        int              `json:"total_error"`
	TotalSuccess      int              `json:"total_success"`
	ProcessPercentage int              `json:"process_percentage"`
	ProcessStatus     RequestStatus    `json:"process_status"`
	CreatedAt         time.Time        `json:"created_at"`
	Result            []ProfileOutcome `json:"result"`
}

// StatusView projects the request into its poll/callback wire shape
func (r *ProfileRequest) StatusView() RequestStatusView {
	return RequestStatusView{
		RequestID:         r.RequestID,
		TotalUsername:     r.TotalUsername,
		TotalProcess:      r.TotalProcess,
		TotalError:        r.TotalError,
		TotalSuccess:      r.TotalSuccess,
		ProcessPercentage: r.ProcessPercentage(),
		ProcessStatus:     r.ProcessStatus,
		CreatedAt:         r.CreatedAt,
		Result:            r.Result,
	}
}

// UnitOfWork is the payload enqueued for asynchronous processing. The job id
// equals the request id so the queue de-duplicates per request.
type UnitOfWork struct {
	RequestID   string   `json:"request_id"`
	Usernames   []string `json:"usernames"`
	CallbackURL string   `json:"callback_url,omitempty"`
}
