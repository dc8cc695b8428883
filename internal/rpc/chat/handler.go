package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/coordinator"
	"github.com/inkwell-ai/inkwell/internal/frame"
	"github.com/inkwell-ai/inkwell/internal/observability"
	"github.com/inkwell-ai/inkwell/internal/resilience"
	"github.com/inkwell-ai/inkwell/internal/rpc"
	"github.com/inkwell-ai/inkwell/internal/stream"
)

// Authenticator is the external auth collaborator. A failure propagates as an
// immediate 401, never retried.
type Authenticator interface {
	Authenticate(r *http.Request) error
}

// Handler processes chat requests and streams NDJSON frames.
type Handler struct {
	runner  coordinator.Runner
	auth    Authenticator
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHandler constructs a handler instance. auth may be nil to allow all.
func NewHandler(runner coordinator.Runner, auth Authenticator, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: runner, auth: auth, metrics: metrics, logger: logger}
}

// ServeHTTP handles POST /chat with an NDJSON stream of frames. The readiness
// and auth checks run before the response status commits: 401 for failed
// auth, 503 while the model dependency's circuit is open.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.metrics.RecordTransportError("ndjson", "method_not_allowed")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.auth != nil {
		if err := h.auth.Authenticate(r); err != nil {
			h.metrics.RecordTransportError("ndjson", "unauthenticated")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	if err := h.runner.Ready(); err != nil {
		if errors.Is(err, resilience.ErrServiceDegraded) {
			h.metrics.RecordTransportError("ndjson", "service_degraded")
			http.Error(w, "service degraded", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var req rpc.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordTransportError("ndjson", "decode")
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	h.metrics.IncActiveSessions("ndjson")
	defer h.metrics.DecActiveSessions("ndjson")

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	sink := observedSink{sink: stream.NewWriterSink(w), metrics: h.metrics}
	mux := stream.New(sink, h.logger)

	if err := h.runner.Run(r.Context(), coordinator.Request{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Model:          req.ModelID,
		Visibility:     req.Visibility,
	}, mux); err != nil {
		// The status is already committed; the failure travelled in-stream as
		// a finish frame.
		h.metrics.RecordTransportError("ndjson", "runner_error")
		h.logger.Warn("chat turn failed", zap.Error(err))
	}
}

// observedSink counts emitted frames by type on the way to the transport.
type observedSink struct {
	sink    stream.Sink
	metrics *observability.Metrics
}

func (s observedSink) WriteFrame(f frame.Frame) error {
	if err := s.sink.WriteFrame(f); err != nil {
		return err
	}
	s.metrics.RecordFrame(string(f.Type))
	return nil
}
