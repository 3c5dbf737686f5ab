package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

// InMemory keeps signals append-only. Reviews live in their own log and are
// attached on read.
type InMemory struct {
	mu            sync.RWMutex
	signals       map[id.SignalID]models.Signal
	byFingerprint map[string]id.SignalID
	reviews       map[id.SignalID][]models.Review
}

func NewInMemory() *InMemory {
	return &InMemory{
		signals:       make(map[id.SignalID]models.Signal),
		byFingerprint: make(map[string]id.SignalID),
		reviews:       make(map[id.SignalID][]models.Review),
	}
}

func (s *InMemory) AppendIfAbsent(_ context.Context, sig models.Signal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byFingerprint[sig.Fingerprint]; dup {
		return false, nil
	}
	sig.Review = nil
	s.signals[sig.ID] = sig
	s.byFingerprint[sig.Fingerprint] = sig.ID
	return true, nil
}

func (s *InMemory) Get(_ context.Context, signalID id.SignalID) (*models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[signalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := s.withReview(sig)
	return &out, nil
}

func (s *InMemory) AppendReview(_ context.Context, r models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.signals[r.SignalID]; !ok {
		return sentinel.ErrNotFound
	}
	s.reviews[r.SignalID] = append(s.reviews[r.SignalID], r)
	return nil
}

func (s *InMemory) ListByActor(_ context.Context, actorID id.ActorID) ([]models.Signal, error) {
	return s.filter(func(sig models.Signal) bool { return sig.ActorID == actorID }), nil
}

func (s *InMemory) ListSince(_ context.Context, since time.Time) ([]models.Signal, error) {
	return s.filter(func(sig models.Signal) bool { return !sig.DetectedAt.Before(since) }), nil
}

func (s *InMemory) filter(keep func(models.Signal) bool) []models.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Signal
	for _, sig := range s.signals {
		if keep(sig) {
			out = append(out, s.withReview(sig))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.Before(out[j].DetectedAt)
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}

// withReview must be called with s.mu held.
func (s *InMemory) withReview(sig models.Signal) models.Signal {
	reviews := s.reviews[sig.ID]
	if len(reviews) == 0 {
		return sig
	}
	latest := reviews[len(reviews)-1]
	sig.Review = &latest
	return sig
}
