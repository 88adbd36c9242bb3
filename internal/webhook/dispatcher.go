// Package webhook delivers completion callbacks to client-supplied URLs with
// bounded retries and a fixed delay between attempts.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dandantas/magpie/internal/model"
)

// Three total attempts with a fixed pause between them. Failures after the
// last attempt are recorded but never escalated.
const (
	maxAttempts       = 3
	defaultRetryDelay = 5 * time.Second
)

// RequestStore is the persistence surface the dispatcher needs: re-reading
// the terminal request to build the payload, and recording delivery results
type RequestStore interface {
	FindByID(ctx context.Context, requestID string) (*model.ProfileRequest, error)
	UpdateCallback(ctx context.Context, requestID string, response string, retryCount int) error
}

// CallbackPayload is the JSON body posted to the client's callback URL
type CallbackPayload struct {
	Status  string                  `json:"status"`
	Message string                  `json:"message"`
	Data    model.RequestStatusView `json:"data"`
}

// Dispatcher handles callback delivery with retry logic
type Dispatcher struct {
	httpClient *http.Client
	store      RequestStore
	retryDelay time.Duration
}

// NewDispatcher creates a callback dispatcher. A zero retryDelay selects the
// default 5 seconds.
func NewDispatcher(store RequestStore, timeout time.Duration, retryDelay time.Duration) *Dispatcher {
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Dispatcher{
		store:      store,
		retryDelay: retryDelay,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Deliver posts the request's terminal snapshot to the callback URL. Each
// attempt re-reads the request and records the response (or transport error)
// plus the zero-indexed retry count on the request record. Delivery failure
// never affects the request's own terminal status.
func (d *Dispatcher) Deliver(ctx context.Context, requestID string, url string) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		request, err := d.store.FindByID(ctx, requestID)
		if err != nil {
			return fmt.Errorf("failed to load request for callback: %w", err)
		}
		if request == nil {
			return fmt.Errorf("request %s not found for callback", requestID)
		}

		slog.Info("Triggering callback",
			"request_id", requestID,
			"url", url,
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
		)

		statusCode, body, err := d.post(ctx, url, request)

		recorded := recordAttempt(statusCode, body, err)
		if updateErr := d.store.UpdateCallback(ctx, requestID, recorded, attempt); updateErr != nil {
			slog.Error("Failed to record callback result",
				"request_id", requestID,
				"error", updateErr,
			)
		}

		if err == nil && statusCode >= 200 && statusCode < 300 {
			slog.Info("Callback delivered",
				"request_id", requestID,
				"status_code", statusCode,
				"attempt", attempt+1,
			)
			return nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("callback returned status %d", statusCode)
		}

		slog.Warn("Callback delivery failed",
			"request_id", requestID,
			"attempt", attempt+1,
			"error", lastErr,
		)

		if attempt < maxAttempts-1 {
			select {
			case <-time.After(d.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("callback delivery failed after %d attempts: %w", maxAttempts, lastErr)
}

// post performs a single delivery attempt
func (d *Dispatcher) post(ctx context.Context, url string, request *model.ProfileRequest) (int, string, error) {
	payload := CallbackPayload{
		Status:  "success",
		Message: "Profiles processed",
		Data:    request.StatusView(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("failed to marshal callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	// Limit response reads; this is only recorded for diagnostics
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		slog.Warn("Failed to read callback response body", "error", err)
	}

	return resp.StatusCode, string(respBody), nil
}

// recordAttempt serializes the attempt result for storage on the request
func recordAttempt(statusCode int, body string, err error) string {
	var record map[string]interface{}
	if err != nil {
		record = map[string]interface{}{"error": err.Error()}
	} else {
		record = map[string]interface{}{"status": statusCode, "body": body}
	}

	raw, marshalErr := json.Marshal(record)
	if marshalErr != nil {
		return `{"error":"failed to serialize callback response"}`
	}
	return string(raw)
}
