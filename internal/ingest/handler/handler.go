package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/service"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/httputil"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

// Service defines the ingest operations exposed over HTTP.
type Service interface {
	Track(ctx context.Context, event models.Event) (service.TrackResult, error)
}

// Handler wires the tracking endpoint to the ingest service.
type Handler struct {
	service Service
	logger  *slog.Logger
	guard   func(http.Handler) http.Handler
}

// New constructs an ingest handler. guard, when non-nil, wraps the track
// route (typically a per-IP rate limiter).
func New(service Service, logger *slog.Logger, guard func(http.Handler) http.Handler) *Handler {
	return &Handler{service: service, logger: logger, guard: guard}
}

// Register mounts ingest endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	if h.guard != nil {
		r.With(h.guard).Post("/attribution/track", h.HandleTrack)
		return
	}
	r.Post("/attribution/track", h.HandleTrack)
}

// HandleTrack handles POST /attribution/track requests.
func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TrackRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Track(ctx, req.Event())
	if err != nil {
		h.logger.WarnContext(ctx, "attribution tracking failed",
			"request_id", requestID,
			"type", req.Type,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, FromResult(result))
}
