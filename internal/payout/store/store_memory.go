package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

// InMemory mirrors the Postgres store, including the one-open-request rule
// that the partial unique index enforces there.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.PayoutRequestID]models.Request
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.PayoutRequestID]models.Request)}
}

func (s *InMemory) Create(_ context.Context, req models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return sentinel.ErrConflict
	}
	if req.Status.Open() {
		for _, existing := range s.requests {
			if existing.ActorID == req.ActorID && existing.Status.Open() {
				return sentinel.ErrConflict
			}
		}
	}
	s.requests[req.ID] = clone(req)
	return nil
}

func (s *InMemory) Get(_ context.Context, requestID id.PayoutRequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := clone(req)
	return &out, nil
}

func (s *InMemory) FindOpen(_ context.Context, actorID id.ActorID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.ActorID == actorID && req.Status.Open() {
			out := clone(req)
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Update(_ context.Context, req models.Request, from models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[req.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != from {
		return sentinel.ErrInvalidState
	}
	s.requests[req.ID] = clone(req)
	return nil
}

func (s *InMemory) ListByStatus(_ context.Context, status models.Status, limit int) ([]models.Request, error) {
	out := s.filter(func(r models.Request) bool { return r.Status == status })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) ListByActor(_ context.Context, actorID id.ActorID) ([]models.Request, error) {
	return s.filter(func(r models.Request) bool { return r.ActorID == actorID }), nil
}

func (s *InMemory) CommittedTokens(_ context.Context, actorID id.ActorID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, req := range s.requests {
		if req.ActorID == actorID && (req.Status.Open() || req.Status == models.StatusSettled) {
			total = total.Add(req.AmountTokens)
		}
	}
	return total, nil
}

// filter returns copies oldest first.
func (s *InMemory) filter(keep func(models.Request) bool) []models.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Request
	for _, req := range s.requests {
		if keep(req) {
			out = append(out, clone(req))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func clone(req models.Request) models.Request {
	req.HoldReasons = slices.Clone(req.HoldReasons)
	req.Breakdown.Components = slices.Clone(req.Breakdown.Components)
	if req.SettledAt != nil {
		at := *req.SettledAt
		req.SettledAt = &at
	}
	return req
}
