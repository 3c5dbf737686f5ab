package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/httputil"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

type Service interface {
	Upsert(ctx context.Context, p models.Profile) (*models.Profile, error)
	Profile(ctx context.Context, actorID id.ActorID) (models.Profile, error)
}

// ProfileRequest is the HTTP body for PUT /admin/actors/{actorID}.
type ProfileRequest struct {
	AccountUserID string `json:"account_user_id,omitempty"`
	ReferralCode  string `json:"referral_code,omitempty"`
	Tier          string `json:"tier,omitempty"`
	Region        string `json:"region,omitempty"`

	accountUserID id.UserID
}

func (r *ProfileRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if s := strings.TrimSpace(r.AccountUserID); s != "" {
		userID, err := id.ParseUserID(s)
		if err != nil {
			return err
		}
		r.accountUserID = userID
	}
	return nil
}

// Handler serves the admin actor profile endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/actors/{actorID}", h.HandleGet)
	r.Put("/admin/actors/{actorID}", h.HandlePut)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, err := id.ParseActorID(chi.URLParam(r, "actorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Profile(ctx, actorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandlePut replaces the actor's profile.
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actorID, err := id.ParseActorID(chi.URLParam(r, "actorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	saved, err := h.service.Upsert(ctx, models.Profile{
		ActorID:       actorID,
		AccountUserID: req.accountUserID,
		ReferralCode:  req.ReferralCode,
		Tier:          models.Tier(strings.ToLower(strings.TrimSpace(req.Tier))),
		Region:        req.Region,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "actor profile update failed",
			"request_id", requestID,
			"actor_id", actorID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, saved)
}
