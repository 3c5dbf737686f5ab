package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	actor "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/models"
	attribution "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	risk "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
)

type recordSet map[id.ActorID][]attribution.Record

func (r recordSet) ListByActor(_ context.Context, actorID id.ActorID) ([]attribution.Record, error) {
	return r[actorID], nil
}

// add appends n verified, registered records first touched at touch.
func (r recordSet) add(actorID id.ActorID, n int, touch time.Time, edit func(*attribution.Record)) {
	for range n {
		at := touch
		rec := attribution.Record{
			ID:           id.NewAttributionID(),
			UserID:       id.NewUserID(),
			ActorID:      actorID,
			Method:       attribution.MethodCode,
			Provenance:   attribution.Provenance{FirstTouchAt: touch},
			RegisteredAt: &at,
			Verified:     true,
			Locked:       true,
		}
		if edit != nil {
			edit(&rec)
		}
		r[actorID] = append(r[actorID], rec)
	}
}

type profileSet map[id.ActorID]actor.Profile

func (p profileSet) Profile(_ context.Context, actorID id.ActorID) (actor.Profile, error) {
	if prof, ok := p[actorID]; ok {
		return prof, nil
	}
	return actor.DefaultProfile(actorID), nil
}

// riskBoard is a settable risk reader.
type riskBoard struct {
	mu       sync.Mutex
	statuses map[id.ActorID]risk.Status
	ensured  int
}

func newRiskBoard() *riskBoard {
	return &riskBoard{statuses: map[id.ActorID]risk.Status{}}
}

func (b *riskBoard) set(actorID id.ActorID, status risk.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[actorID] = status
}

func (b *riskBoard) Status(_ context.Context, actorID id.ActorID) (risk.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.statuses[actorID]; ok {
		return st, nil
	}
	return risk.StatusClean, nil
}

func (b *riskBoard) Ensure(ctx context.Context, actorID id.ActorID) (*risk.State, error) {
	status, _ := b.Status(ctx, actorID)
	b.mu.Lock()
	b.ensured++
	b.mu.Unlock()
	return &risk.State{ActorID: actorID, Status: status, Version: 1}, nil
}

type fixedCommitted decimal.Decimal

func (c fixedCommitted) CommittedTokens(context.Context, id.ActorID) (decimal.Decimal, error) {
	return decimal.Decimal(c), nil
}
