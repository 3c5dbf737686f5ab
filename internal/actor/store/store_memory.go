package store

import (
	"context"
	"sync"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

type InMemory struct {
	mu       sync.RWMutex
	profiles map[id.ActorID]models.Profile
	codes    map[string]id.ActorID
}

func NewInMemory() *InMemory {
	return &InMemory{
		profiles: make(map[id.ActorID]models.Profile),
		codes:    make(map[string]id.ActorID),
	}
}

func (s *InMemory) Upsert(_ context.Context, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ReferralCode != "" {
		if owner, ok := s.codes[p.ReferralCode]; ok && owner != p.ActorID {
			return sentinel.ErrConflict
		}
	}
	if prev, ok := s.profiles[p.ActorID]; ok && prev.ReferralCode != "" && prev.ReferralCode != p.ReferralCode {
		delete(s.codes, prev.ReferralCode)
	}
	if p.ReferralCode != "" {
		s.codes[p.ReferralCode] = p.ActorID
	}
	s.profiles[p.ActorID] = p
	return nil
}

func (s *InMemory) Get(_ context.Context, actorID id.ActorID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[actorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *InMemory) FindByReferralCode(_ context.Context, code string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actorID, ok := s.codes[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := s.profiles[actorID]
	return &p, nil
}

// AccountUsers maps actors to their own user accounts for the given ids.
// Actors without a profile or account are omitted.
func (s *InMemory) AccountUsers(_ context.Context, actorIDs []id.ActorID) (map[id.ActorID]id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.ActorID]id.UserID, len(actorIDs))
	for _, a := range actorIDs {
		if p, ok := s.profiles[a]; ok && !p.AccountUserID.IsNil() {
			out[a] = p.AccountUserID
		}
	}
	return out, nil
}
