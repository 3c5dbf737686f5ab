package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
)

// InMemory keeps records keyed by user. A single mutex makes each method
// atomic, matching the conditional-write semantics of the Postgres store.
type InMemory struct {
	mu       sync.RWMutex
	records  map[id.UserID]*models.Record
	events   []models.Event
	eventIDs map[id.EventID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		records:  make(map[id.UserID]*models.Record),
		eventIDs: make(map[id.EventID]struct{}),
	}
}

func (s *InMemory) InsertIfAbsent(_ context.Context, rec models.Record) (models.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.UserID]; ok {
		return *existing, false, nil
	}
	stored := rec
	s.records[rec.UserID] = &stored
	return stored, true, nil
}

func (s *InMemory) Get(_ context.Context, userID id.UserID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *InMemory) AdvanceFunnel(_ context.Context, userID id.UserID, stage models.Stage, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	return rec.SetStage(stage, at), nil
}

func (s *InMemory) AddRevenue(_ context.Context, userID id.UserID, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.LifetimeRevenue = rec.LifetimeRevenue.Add(amount)
	return nil
}

func (s *InMemory) AccrueRevenue(_ context.Context, e models.Event, amount decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[e.UserID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if _, dup := s.eventIDs[e.ID]; dup {
		return false, nil
	}
	s.eventIDs[e.ID] = struct{}{}
	s.events = append(s.events, e)
	rec.LifetimeRevenue = rec.LifetimeRevenue.Add(amount)
	return true, nil
}

func (s *InMemory) SetPremium(_ context.Context, userID id.UserID, premium bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Premium = premium
	return nil
}

func (s *InMemory) Freeze(_ context.Context, userID id.UserID, fraudScore float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if rec.Frozen && !rec.Verified {
		return false, nil
	}
	rec.Frozen = true
	rec.Verified = false
	rec.FraudScore = fraudScore
	return true, nil
}

func (s *InMemory) FreezeUnverifiedByActor(_ context.Context, actorID id.ActorID, fraudScore float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.ActorID != actorID || rec.Verified || rec.Frozen {
			continue
		}
		rec.Frozen = true
		rec.FraudScore = fraudScore
		n++
	}
	return n, nil
}

func (s *InMemory) MarkFraudulent(_ context.Context, actorID id.ActorID, userIDs []id.UserID, fraudScore float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range userIDs {
		rec, ok := s.records[u]
		if !ok || rec.ActorID != actorID || rec.Fraudulent {
			continue
		}
		rec.Fraudulent = true
		rec.Frozen = true
		rec.Verified = false
		rec.FraudScore = fraudScore
		n++
	}
	return n, nil
}

func (s *InMemory) UnfreezeByActor(_ context.Context, actorID id.ActorID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.ActorID != actorID || !rec.Frozen || rec.Fraudulent {
			continue
		}
		rec.Frozen = false
		rec.FraudScore = 0
		n++
	}
	return n, nil
}

func (s *InMemory) Verify(_ context.Context, userIDs []id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range userIDs {
		rec, ok := s.records[u]
		if !ok || rec.Verified || rec.Frozen || rec.Fraudulent {
			continue
		}
		rec.Verified = true
		n++
	}
	return n, nil
}

func (s *InMemory) ListByActor(_ context.Context, actorID id.ActorID) ([]models.Record, error) {
	return s.filter(func(r *models.Record) bool { return r.ActorID == actorID }), nil
}

func (s *InMemory) ListCreatedSince(_ context.Context, since time.Time) ([]models.Record, error) {
	return s.filter(func(r *models.Record) bool { return !r.Provenance.FirstTouchAt.Before(since) }), nil
}

func (s *InMemory) ListUnverifiedBefore(_ context.Context, cutoff time.Time) ([]models.Record, error) {
	return s.filter(func(r *models.Record) bool {
		return !r.Verified && !r.Frozen && !r.Fraudulent && r.Provenance.FirstTouchAt.Before(cutoff)
	}), nil
}

func (s *InMemory) AppendEvent(_ context.Context, e models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.eventIDs[e.ID]; dup {
		return nil
	}
	s.eventIDs[e.ID] = struct{}{}
	s.events = append(s.events, e)
	return nil
}

func (s *InMemory) ListEventsSince(_ context.Context, since time.Time) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Event
	for _, e := range s.events {
		if !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// filter returns copies ordered by first touch then user id.
func (s *InMemory) filter(keep func(*models.Record) bool) []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Record
	for _, rec := range s.records {
		if keep(rec) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Provenance.FirstTouchAt, out[j].Provenance.FirstTouchAt
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out
}
