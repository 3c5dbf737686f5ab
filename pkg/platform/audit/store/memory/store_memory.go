package memory

import (
	"context"
	"sync"

	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	audit "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.ActorID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.ActorID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ActorID] = append(s.events[event.ActorID], event)
	return nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actorID id.ActorID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[actorID]...), nil
}

// Actions returns the action names recorded for an actor in append order.
func (s *InMemoryStore) Actions(actorID id.ActorID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.events[actorID]))
	for _, e := range s.events[actorID] {
		out = append(out, e.Action)
	}
	return out
}
