package handler

import (
	"strings"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
)

// PayoutRequest is the HTTP body for POST /payout/request.
type PayoutRequest struct {
	ActorID string `json:"actor_id"`
	Model   string `json:"model"`

	actorID id.ActorID
	model   models.Model
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *PayoutRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	actorID, err := id.ParseActorID(strings.TrimSpace(r.ActorID))
	if err != nil {
		return err
	}
	model, err := models.ParseModel(r.Model)
	if err != nil {
		return err
	}
	r.actorID, r.model = actorID, model
	return nil
}

// DecisionRequest is the HTTP body for POST /payout/requests/{requestID}/decision.
type DecisionRequest struct {
	Decision string `json:"decision"`
	Reviewer string `json:"reviewer,omitempty"`
	Note     string `json:"note,omitempty"`

	decision models.Decision
}

func (r *DecisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	decision, err := models.ParseDecision(r.Decision)
	if err != nil {
		return err
	}
	r.decision = decision
	r.Reviewer = strings.TrimSpace(r.Reviewer)
	return nil
}
