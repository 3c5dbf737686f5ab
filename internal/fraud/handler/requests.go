package handler

import (
	"strings"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
)

// ReviewRequest is the HTTP body for POST /fraud/review.
type ReviewRequest struct {
	SignalID string `json:"signal_id"`
	Decision string `json:"decision"`
	Reviewer string `json:"reviewer,omitempty"`
	Note     string `json:"note,omitempty"`

	signalID id.SignalID
	decision models.Decision
}

// Validate parses identifiers and the decision.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ReviewRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	signalID, err := id.ParseSignalID(strings.TrimSpace(r.SignalID))
	if err != nil {
		return err
	}
	decision, err := models.ParseDecision(r.Decision)
	if err != nil {
		return err
	}
	r.signalID, r.decision = signalID, decision
	r.Reviewer = strings.TrimSpace(r.Reviewer)
	return nil
}
