package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/httputil"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

type Service interface {
	State(ctx context.Context, actorID id.ActorID) (*models.State, error)
	Recompute(ctx context.Context, actorID id.ActorID) (*models.State, error)
}

// Handler serves admin reads of actor risk state.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/risk/actors/{actorID}", h.HandleGet)
	r.Post("/risk/actors/{actorID}/recompute", h.HandleRecompute)
}

// HandleGet handles GET /risk/actors/{actorID}. Actors never scored read as
// clean with version 0.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "failed to load risk state", h.service.State)
}

// HandleRecompute handles POST /risk/actors/{actorID}/recompute.
func (h *Handler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "risk recompute failed", h.service.Recompute)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, msg string, op func(context.Context, id.ActorID) (*models.State, error)) {
	ctx := r.Context()
	actorID, err := id.ParseActorID(chi.URLParam(r, "actorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	state, err := op(ctx, actorID)
	if err != nil {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"actor_id", actorID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}
