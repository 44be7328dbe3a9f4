// Package httpapi exposes the gateway pipeline over HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rightsflow/supervisor-gateway/internal/gateway"
	"github.com/rightsflow/supervisor-gateway/internal/metrics"
)

const maxRequestBody = 1 << 20 // 1 MiB

type Handler struct {
	orch    *gateway.Orchestrator
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewHandler(orch *gateway.Orchestrator, rps float64, burst int, logger *zap.Logger) *Handler {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = int(rps) * 2
	}
	return &Handler{
		orch:    orch,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger,
	}
}

// Register wires the handler's routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/query", h.Query)
	mux.HandleFunc("GET /health", h.Health)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !h.limiter.Allow() {
		metrics.RateLimited.Inc()
		metrics.GatewayRequests.WithLabelValues("rate_limited").Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	var req gateway.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		metrics.GatewayRequests.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Prompt == "" {
		metrics.GatewayRequests.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt is required"})
		return
	}

	resp, err := h.orch.Handle(r.Context(), req)
	if err != nil {
		// Opaque failure to the caller; details stay in the logs.
		h.log.Error("Gateway request failed",
			zap.Error(err),
			zap.String("session_id", req.SessionID),
		)
		metrics.GatewayRequests.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "request failed"})
		return
	}

	metrics.GatewayRequests.WithLabelValues("ok").Inc()
	h.log.Info("Gateway request complete",
		zap.String("session_id", resp.SessionID),
		zap.String("intent", resp.Intent.Type),
		zap.Duration("duration", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
