package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger reports whether the device bus is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves GET /healthz for the engine process.
type HealthHandler struct {
	bus    Pinger
	engine *Engine
}

// NewHealthHandler creates a health handler. engine may be nil.
func NewHealthHandler(bus Pinger, engine *Engine) *HealthHandler {
	return &HealthHandler{bus: bus, engine: engine}
}

// ServeHTTP returns 200 OK if Redis is accessible, 503 Service Unavailable otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Check Redis connectivity with timeout
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status: "healthy",
	}
	if h.engine != nil {
		response.ActivePuzzle = h.engine.Active()
	}

	if err := h.bus.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		writeHealth(w, http.StatusServiceUnavailable, response)
		return
	}

	response.Redis = "connected"
	writeHealth(w, http.StatusOK, response)
}

func writeHealth(w http.ResponseWriter, status int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status       string `json:"status"`
	Redis        string `json:"redis,omitempty"`
	ActivePuzzle int    `json:"active_puzzle"`
	Error        string `json:"error,omitempty"`
}
