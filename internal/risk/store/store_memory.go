package store

import (
	"context"
	"sync"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

type InMemory struct {
	mu     sync.RWMutex
	states map[id.ActorID]models.State
}

func NewInMemory() *InMemory {
	return &InMemory{states: make(map[id.ActorID]models.State)}
}

func (s *InMemory) Get(_ context.Context, actorID id.ActorID) (*models.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[actorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &st, nil
}

// CompareAndSave stores state when the persisted version still equals
// expected. Version 0 means the actor has no row yet.
func (s *InMemory) CompareAndSave(_ context.Context, state models.State, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.states[state.ActorID]
	switch {
	case !ok && expected != 0:
		return sentinel.ErrStaleVersion
	case ok && current.Version != expected:
		return sentinel.ErrStaleVersion
	}
	s.states[state.ActorID] = state
	return nil
}
