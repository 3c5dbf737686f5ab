package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

func newRequest(actorID id.ActorID, amount int64, status models.Status, at time.Time) models.Request {
	return models.Request{
		ID:           id.NewPayoutRequestID(),
		ActorID:      actorID,
		Model:        models.ModelCPI,
		AmountTokens: decimal.NewFromInt(amount),
		Currency:     "TOKEN",
		Status:       status,
		HoldReasons:  []string{},
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func TestInMemoryOneOpenRequest(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	actor := id.NewActorID()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	first := newRequest(actor, 1200, models.StatusApproved, now)
	require.NoError(t, s.Create(ctx, first))

	t.Run("second open request conflicts", func(t *testing.T) {
		err := s.Create(ctx, newRequest(actor, 50, models.StatusHeldForReview, now))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		assert.ErrorIs(t, s.Create(ctx, first), sentinel.ErrConflict)
	})

	t.Run("closed request frees the slot", func(t *testing.T) {
		settled := first
		settled.Status = models.StatusSettled
		require.NoError(t, s.Update(ctx, settled, models.StatusApproved))

		_, err := s.FindOpen(ctx, actor)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		require.NoError(t, s.Create(ctx, newRequest(actor, 300, models.StatusPending, now.Add(time.Hour))))
	})
}

func TestInMemoryConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	req := newRequest(id.NewActorID(), 1000, models.StatusHeldForReview, time.Now())
	require.NoError(t, s.Create(ctx, req))

	approved := req
	approved.Status = models.StatusApproved
	assert.ErrorIs(t, s.Update(ctx, approved, models.StatusPending), sentinel.ErrInvalidState)
	require.NoError(t, s.Update(ctx, approved, models.StatusHeldForReview))

	missing := newRequest(id.NewActorID(), 1, models.StatusApproved, time.Now())
	assert.ErrorIs(t, s.Update(ctx, missing, models.StatusPending), sentinel.ErrNotFound)

	got, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
}

func TestInMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	req := newRequest(id.NewActorID(), 1000, models.StatusHeldForReview, time.Now())
	req.HoldReasons = []string{"open dispute"}
	require.NoError(t, s.Create(ctx, req))

	got, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	got.HoldReasons[0] = "edited"

	again, err := s.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"open dispute"}, again.HoldReasons)
}

func TestInMemoryCommittedAndListing(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	actor := id.NewActorID()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	settled := newRequest(actor, 1000, models.StatusSettled, base)
	rejected := newRequest(actor, 700, models.StatusRejected, base.Add(time.Minute))
	open := newRequest(actor, 250, models.StatusApproved, base.Add(2*time.Minute))
	other := newRequest(id.NewActorID(), 5000, models.StatusApproved, base.Add(-time.Minute))
	for _, r := range []models.Request{open, rejected, settled, other} {
		require.NoError(t, s.Create(ctx, r))
	}

	total, err := s.CommittedTokens(ctx, actor)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1250).Equal(total), total.String())

	byActor, err := s.ListByActor(ctx, actor)
	require.NoError(t, err)
	require.Len(t, byActor, 3)
	assert.Equal(t, settled.ID, byActor[0].ID)
	assert.Equal(t, open.ID, byActor[2].ID)

	approved, err := s.ListByStatus(ctx, models.StatusApproved, 1)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, other.ID, approved[0].ID, "oldest first")
}
