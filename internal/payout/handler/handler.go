package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/service"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/httputil"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

// Calculator computes an actor's breakdown without side effects.
type Calculator interface {
	Calculate(ctx context.Context, actorID id.ActorID, model models.Model) (*models.Breakdown, error)
}

// Gate owns the payout request lifecycle.
type Gate interface {
	RequestPayout(ctx context.Context, actorID id.ActorID, model models.Model) (*models.Request, error)
	Get(ctx context.Context, requestID id.PayoutRequestID) (*models.Request, error)
	Decide(ctx context.Context, in service.DecideRequest) (*models.Request, error)
}

type Handler struct {
	calc   Calculator
	gate   Gate
	logger *slog.Logger
}

func New(calc Calculator, gate Gate, logger *slog.Logger) *Handler {
	return &Handler{calc: calc, gate: gate, logger: logger}
}

// Register mounts the actor-facing routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/payout/calculate", h.HandleCalculate)
	r.Post("/payout/request", h.HandleRequest)
	r.Get("/payout/requests/{requestID}", h.HandleGet)
}

// RegisterAdmin mounts routes that require the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/payout/requests/{requestID}/decision", h.HandleDecision)
}

// HandleCalculate handles GET /payout/calculate?actorId=&model=.
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	actorID, err := id.ParseActorID(q.Get("actorId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	model, err := models.ParseModel(q.Get("model"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bd, err := h.calc.Calculate(ctx, actorID, model)
	if err != nil {
		h.logger.ErrorContext(ctx, "payout calculation failed",
			"request_id", requestcontext.RequestID(ctx),
			"actor_id", actorID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bd)
}

// HandleRequest handles POST /payout/request. A second open request is a 409
// carrying the existing request; an ineligible actor is a 422 with the reason.
func (h *Handler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PayoutRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	created, err := h.gate.RequestPayout(ctx, req.actorID, req.model)
	if err != nil {
		h.logger.WarnContext(ctx, "payout request refused",
			"request_id", requestID,
			"actor_id", req.ActorID,
			"code", string(dErrors.CodeOf(err)),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleGet handles GET /payout/requests/{requestID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payoutID, err := id.ParsePayoutRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.gate.Get(ctx, payoutID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

// HandleDecision handles POST /payout/requests/{requestID}/decision. The
// reviewer defaults to the authenticated admin subject.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	payoutID, err := id.ParsePayoutRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	reviewer := req.Reviewer
	if reviewer == "" {
		reviewer = requestcontext.AdminSubject(ctx)
	}

	out, err := h.gate.Decide(ctx, service.DecideRequest{
		RequestID: payoutID,
		Decision:  req.decision,
		Reviewer:  reviewer,
		Note:      req.Note,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "payout decision failed",
			"request_id", requestID,
			"payout_request_id", payoutID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
