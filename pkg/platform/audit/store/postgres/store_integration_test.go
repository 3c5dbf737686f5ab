//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	audit "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	txcontext "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/tx"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/testutil/containers"
)

type OutboxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *Store
	runner   *txcontext.SQLRunner
}

func TestOutboxSuite(t *testing.T) {
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = New(s.postgres.DB)
	s.runner = txcontext.NewSQLRunner(s.postgres.DB)
}

func (s *OutboxSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
}

func (s *OutboxSuite) event(actorID id.ActorID, action audit.AuditEvent) audit.Event {
	return audit.Event{
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
		Subject:   uuid.NewString(),
		Action:    string(action),
		Reason:    "velocity",
	}
}

func (s *OutboxSuite) TestAppendAndListByActor() {
	ctx := context.Background()
	actorID := id.NewActorID()
	s.Require().NoError(s.store.Append(ctx, s.event(actorID, audit.EventSignalDetected)))
	s.Require().NoError(s.store.Append(ctx, s.event(actorID, audit.EventRiskStatusChanged)))
	s.Require().NoError(s.store.Append(ctx, s.event(id.NewActorID(), audit.EventPayoutHeld)))

	events, err := s.store.ListByActor(ctx, actorID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventSignalDetected), events[0].Action)
	s.Equal(audit.CategorySecurity, events[0].Category)
	s.Equal(audit.CategoryCompliance, events[1].Category)
	s.Equal(actorID, events[1].ActorID)
}

func (s *OutboxSuite) TestRolledBackAppendIsNotVisible() {
	ctx := context.Background()
	actorID := id.NewActorID()
	boom := errors.New("boom")

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.Append(ctx, s.event(actorID, audit.EventPayoutApproved)))
		return boom
	})
	s.ErrorIs(err, boom)

	events, err := s.store.ListByActor(ctx, actorID)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *OutboxSuite) TestFetchAndMarkPublished() {
	ctx := context.Background()
	actorID := id.NewActorID()
	for range 3 {
		s.Require().NoError(s.store.Append(ctx, s.event(actorID, audit.EventPayoutRequested)))
	}

	s.Require().NoError(s.runner.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := s.store.FetchUnpublished(ctx, 2)
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(actorID.String(), entries[0].AggregateID)
		s.Equal(string(audit.EventPayoutRequested), entries[0].EventType)
		return s.store.MarkPublished(ctx, []uuid.UUID{entries[0].ID, entries[1].ID})
	}))

	s.Require().NoError(s.runner.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := s.store.FetchUnpublished(ctx, 10)
		s.Require().NoError(err)
		s.Len(entries, 1)
		return nil
	}))
}

func (s *OutboxSuite) TestLockedRowsAreSkipped() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.event(id.NewActorID(), audit.EventPayoutRequested)))

	s.Require().NoError(s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		held, err := s.store.FetchUnpublished(txCtx, 10)
		s.Require().NoError(err)
		s.Require().Len(held, 1)

		return s.runner.RunInTx(context.Background(), func(other context.Context) error {
			entries, err := s.store.FetchUnpublished(other, 10)
			s.Require().NoError(err)
			s.Empty(entries)
			return nil
		})
	}))
}
