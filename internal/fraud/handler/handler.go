package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/service"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/httputil"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

// Service defines the fraud review operations exposed over HTTP.
type Service interface {
	Review(ctx context.Context, req service.ReviewRequest) (*service.ReviewResult, error)
	SignalsByActor(ctx context.Context, actorID id.ActorID) ([]models.Signal, error)
}

// Handler serves the admin fraud endpoints. The caller mounts it behind the
// admin guard.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/fraud/review", h.HandleReview)
	r.Get("/fraud/actors/{actorID}/signals", h.HandleSignals)
}

// HandleReview handles POST /fraud/review. The reviewer defaults to the
// authenticated admin subject.
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ReviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	reviewer := req.Reviewer
	if reviewer == "" {
		reviewer = requestcontext.AdminSubject(ctx)
	}

	result, err := h.service.Review(ctx, service.ReviewRequest{
		SignalID: req.signalID,
		Decision: req.decision,
		Reviewer: reviewer,
		Note:     req.Note,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "signal review failed",
			"request_id", requestID,
			"signal_id", req.SignalID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReview(result))
}

// HandleSignals handles GET /fraud/actors/{actorID}/signals.
func (h *Handler) HandleSignals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, err := id.ParseActorID(chi.URLParam(r, "actorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	signals, err := h.service.SignalsByActor(ctx, actorID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list signals",
			"request_id", requestcontext.RequestID(ctx),
			"actor_id", actorID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if signals == nil {
		signals = []models.Signal{}
	}
	httputil.WriteJSON(w, http.StatusOK, SignalsResponse{ActorID: actorID.String(), Signals: signals})
}
