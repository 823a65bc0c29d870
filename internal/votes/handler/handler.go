package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"foodvote/internal/votes"
	"foodvote/pkg/platform/httputil"
	"foodvote/pkg/platform/middleware/version"
	"foodvote/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// DefaultMaxBodyBytes bounds a vote submission. Two bitmaps for tens of
// thousands of foods fit comfortably.
const DefaultMaxBodyBytes = 64 << 10

// Service defines the interface for vote operations.
type Service interface {
	Submit(ctx context.Context, body []byte) (*votes.Result, error)
}

// Handler wires vote endpoints to the vote service.
type Handler struct {
	service         Service
	logger          *slog.Logger
	maxBodyBytes    int64
	registryVersion func() string
}

// Option configures a Handler.
type Option func(*Handler)

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithRegistryVersion lets responses tell clients their food table is out of
// date.
func WithRegistryVersion(current func() string) Option {
	return func(h *Handler) {
		h.registryVersion = current
	}
}

// New constructs a vote handler with its dependencies.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{
		service:      service,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts vote endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/votes", h.HandleSubmit)
}

// SubmitResponse is returned for an accepted submission.
type SubmitResponse struct {
	Changes int `json:"changes"`
	Applied int `json:"applied"`
	// RegistryStale is set when the client sent a registry version other
	// than the one in service. Its votes still count; it should refetch.
	RegistryStale bool `json:"registry_stale,omitempty"`
}

// HandleSubmit handles POST /votes. The body is a CBOR vote submission.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	body, err := httputil.ReadBody(r, h.maxBodyBytes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Submit(ctx, body)
	if err != nil {
		h.logger.WarnContext(ctx, "vote submission failed",
			"request_id", requestID,
			"client_ip", requestcontext.ClientIP(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.DebugContext(ctx, "vote submitted",
		"request_id", requestID,
		"changes", result.Changes,
		"applied", result.Applied,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	resp := SubmitResponse{Changes: result.Changes, Applied: result.Applied}
	if h.registryVersion != nil {
		resp.RegistryStale = version.Stale(r, h.registryVersion())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
