package handler

import (
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dandantas/magpie/internal/database"
)

// HealthHandler handles service health and readiness checks
type HealthHandler struct {
	db        *database.MongoDB
	rdb       goredis.UniversalClient
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler. rdb may be nil when caching
// and queueing run against a shared external Redis that is checked elsewhere.
func NewHealthHandler(db *database.MongoDB, rdb goredis.UniversalClient, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		rdb:       rdb,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Timestamp     string `json:"timestamp"`
	MongoDB       string `json:"mongodb"`
	Redis         string `json:"redis"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Ready   bool   `json:"ready"`
	MongoDB string `json:"mongodb"`
	Redis   string `json:"redis"`
}

func (h *HealthHandler) backends(r *http.Request) (mongoStatus, redisStatus string, healthy bool) {
	mongoStatus = "connected"
	healthy = true
	if err := h.db.Client.Ping(r.Context(), nil); err != nil {
		mongoStatus = "disconnected"
		healthy = false
	}

	redisStatus = "connected"
	if h.rdb == nil {
		redisStatus = "disabled"
	} else if err := h.rdb.Ping(r.Context()).Err(); err != nil {
		redisStatus = "disconnected"
		healthy = false
	}

	return mongoStatus, redisStatus, healthy
}

// Health returns the service health status
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	mongoStatus, redisStatus, _ := h.backends(r)

	response := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		MongoDB:       mongoStatus,
		Redis:         redisStatus,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	writeJSON(w, http.StatusOK, response)
}

// Ready returns the service readiness status
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	mongoStatus, redisStatus, healthy := h.backends(r)

	statusCode := http.StatusOK
	if !healthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Ready:   healthy,
		MongoDB: mongoStatus,
		Redis:   redisStatus,
	})
}
