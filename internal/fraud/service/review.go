package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	risk "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

const maxNoteLen = 2000

type ReviewRequest struct {
	SignalID id.SignalID
	Decision models.Decision
	Reviewer string
	Note     string
}

type ReviewResult struct {
	Signal models.Signal
	Risk   *risk.State
}

// Review appends a reviewer decision and recomputes the actor. An overturn
// lets the actor's status recover one level.
func (s *Service) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	req.Reviewer = strings.TrimSpace(req.Reviewer)
	if req.Reviewer == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reviewer is required")
	}
	if req.Decision != models.DecisionConfirmed && req.Decision != models.DecisionOverturned {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be confirmed or overturned")
	}
	if len(req.Note) > maxNoteLen {
		return nil, dErrors.New(dErrors.CodeValidation, "note is too long")
	}

	sig, err := s.store.Get(ctx, req.SignalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "signal not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signal")
	}

	review := models.Review{
		ID:         uuid.New(),
		SignalID:   sig.ID,
		Decision:   req.Decision,
		Reviewer:   req.Reviewer,
		Note:       req.Note,
		ReviewedAt: requestcontext.Now(ctx),
	}
	if err := s.store.AppendReview(ctx, review); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record review")
	}
	sig.Review = &review

	audit.Log(ctx, s.logger, s.auditor, audit.Event{
		ActorID:  sig.ActorID,
		Subject:  sig.ID.String(),
		Action:   string(audit.EventSignalReviewed),
		Decision: string(req.Decision),
		Reason:   string(sig.Type),
		Operator: req.Reviewer,
	})

	var state *risk.State
	if req.Decision == models.DecisionOverturned {
		state, err = s.risk.RecomputeAfterOverturn(ctx, sig.ActorID)
	} else {
		state, err = s.risk.Recompute(ctx, sig.ActorID)
	}
	if err != nil {
		return nil, err
	}
	return &ReviewResult{Signal: *sig, Risk: state}, nil
}

func (s *Service) SignalsByActor(ctx context.Context, actorID id.ActorID) ([]models.Signal, error) {
	signals, err := s.store.ListByActor(ctx, actorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list signals")
	}
	return signals, nil
}
