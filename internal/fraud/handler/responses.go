package handler

import (
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/service"
	risk "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
)

// ReviewResponse is returned from POST /fraud/review.
type ReviewResponse struct {
	Signal models.Signal `json:"signal"`
	Risk   *risk.State   `json:"risk,omitempty"`
}

func FromReview(r *service.ReviewResult) ReviewResponse {
	return ReviewResponse{Signal: r.Signal, Risk: r.Risk}
}

// SignalsResponse lists an actor's signals with their latest review.
type SignalsResponse struct {
	ActorID string          `json:"actor_id"`
	Signals []models.Signal `json:"signals"`
}
