package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultHealthAddr is where the health server listens unless configured.
const DefaultHealthAddr = ":8080"

// Pinger is the part of the store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer provides HTTP health check endpoints for the bot.
type HealthServer struct {
	store   Pinger
	addr    string
	pending func() int
	logger  *zap.Logger
	server  *http.Server
}

// NewHealthServer creates a health server for store. pending, if non-nil,
// reports the number of transactions waiting for a proof.
func NewHealthServer(store Pinger, addr string, pending func() int, logger *zap.Logger) *HealthServer {
	if addr == "" {
		addr = DefaultHealthAddr
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthServer{
		store:   store,
		addr:    addr,
		pending: pending,
		logger:  logger.With(zap.String("component", "health")),
	}
}

// Start starts the HTTP health check server in the background.
func (h *HealthServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health server stopped", zap.String("addr", h.addr), zap.Error(err))
		}
	}()

	h.logger.Info("health server listening", zap.String("addr", h.addr))
	return nil
}

// Shutdown gracefully shuts down the health check server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if the store answers a ping, 503 Service Unavailable otherwise.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy", Store: "connected"}
	if h.pending != nil {
		n := h.pending()
		response.PendingProofs = &n
	}

	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Store = "disconnected"
		response.Error = err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Debug("failed to write health response", zap.Error(err))
	}
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status        string `json:"status"`
	Store         string `json:"store,omitempty"`
	PendingProofs *int   `json:"pending_proofs,omitempty"`
	Error         string `json:"error,omitempty"`
}
