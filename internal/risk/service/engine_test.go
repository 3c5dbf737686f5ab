package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	fraud "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	fraudstore "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/store"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/service/mocks"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/store"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit/publisher"
	auditmemory "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit/store/memory"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks Ledger,PayoutEnforcer
type EngineSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	ledger     *mocks.MockLedger
	payouts    *mocks.MockPayoutEnforcer
	signals    *fraudstore.InMemory
	states     *store.InMemory
	auditStore *auditmemory.InMemoryStore
	engine     *Engine
	actorID    id.ActorID
	ctx        context.Context
	now        time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.payouts = mocks.NewMockPayoutEnforcer(s.ctrl)
	s.signals = fraudstore.NewInMemory()
	s.states = store.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()

	engine, err := New(s.states, s.signals, s.ledger,
		WithPayoutEnforcer(s.payouts),
		WithAuditPublisher(publisher.NewPublisher(s.auditStore)),
	)
	s.Require().NoError(err)
	s.engine = engine
	s.actorID = id.NewActorID()
	s.now = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *EngineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *EngineSuite) addSignal(sev fraud.Severity, confidence int, users ...id.UserID) fraud.Signal {
	sig := fraud.Signal{
		ID:          id.NewSignalID(),
		Type:        fraud.TypeClickFarm,
		Severity:    sev,
		Confidence:  confidence,
		ActorID:     s.actorID,
		Evidence:    fraud.Evidence{UserIDs: users},
		Fingerprint: id.NewSignalID().String(),
		DetectedAt:  s.now,
	}
	created, err := s.signals.AppendIfAbsent(context.Background(), sig)
	s.Require().NoError(err)
	s.Require().True(created)
	return sig
}

func (s *EngineSuite) overturn(sig fraud.Signal) {
	s.Require().NoError(s.signals.AppendReview(context.Background(), fraud.Review{
		SignalID:   sig.ID,
		Decision:   fraud.DecisionOverturned,
		Reviewer:   "ops@example.com",
		ReviewedAt: s.now.Add(time.Minute),
	}))
}

func (s *EngineSuite) TestUnknownActorIsClean() {
	status, err := s.engine.Status(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(models.StatusClean, status)

	st, err := s.engine.State(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(int64(0), st.Version)
}

func (s *EngineSuite) TestEnsureCreatesOnce() {
	first, err := s.engine.Ensure(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(int64(1), first.Version)

	again, err := s.engine.Ensure(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(int64(1), again.Version)
}

func (s *EngineSuite) TestRecomputeWithoutSignalsStaysClean() {
	st, err := s.engine.Recompute(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(models.StatusClean, st.Status)
	s.Equal(0.0, st.RiskScore)
	s.Equal(int64(1), st.Version)
	s.Equal(s.now, st.LastRecalculatedAt)
	s.Empty(s.auditStore.Actions(s.actorID))
}

func (s *EngineSuite) TestWorseningToWatchListFreezesAndHolds() {
	s.addSignal(fraud.SeverityHigh, 100)

	gomock.InOrder(
		s.ledger.EXPECT().FreezeActor(gomock.Any(), s.actorID, 0.3).Return(2, nil),
		s.payouts.EXPECT().HoldForRisk(gomock.Any(), s.actorID, models.StatusWatchList).Return(nil),
	)

	st, err := s.engine.Recompute(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(models.StatusWatchList, st.Status)
	s.InDelta(30.0, st.RiskScore, 1e-9)
	s.Equal(1, st.SignalCount)
	s.Equal([]string{string(audit.EventRiskStatusChanged)}, s.auditStore.Actions(s.actorID))
}

func (s *EngineSuite) TestCriticalSignalMarksEvidenceFraudulent() {
	userA, userB := id.NewUserID(), id.NewUserID()
	s.addSignal(fraud.SeverityCritical, 100, userB, userA)
	s.addSignal(fraud.SeverityHigh, 100, userA)

	s.ledger.EXPECT().FreezeActor(gomock.Any(), s.actorID, 0.9).Return(3, nil)
	s.ledger.EXPECT().MarkFraudulent(gomock.Any(), s.actorID, fraud.SortedUserIDs([]id.UserID{userA, userB}), 0.9).Return(2, nil)
	s.payouts.EXPECT().HoldForRisk(gomock.Any(), s.actorID, models.StatusBanned).Return(nil)

	st, err := s.engine.Recompute(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(models.StatusBanned, st.Status)
}

func (s *EngineSuite) TestRecomputeIsIdempotent() {
	s.addSignal(fraud.SeverityCritical, 100)

	s.ledger.EXPECT().FreezeActor(gomock.Any(), s.actorID, gomock.Any()).Return(0, nil).Times(1)
	s.ledger.EXPECT().MarkFraudulent(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	s.payouts.EXPECT().HoldForRisk(gomock.Any(), s.actorID, models.StatusSuspended).Return(nil).Times(1)

	first, err := s.engine.Recompute(s.ctx, s.actorID)
	s.Require().NoError(err)
	second, err := s.engine.Recompute(s.ctx, s.actorID)
	s.Require().NoError(err)

	s.Equal(first.Status, second.Status)
	s.Equal(first.RiskScore, second.RiskScore)
	s.Equal(first.Version+1, second.Version)
	s.Len(s.auditStore.Actions(s.actorID), 1)
}

func (s *EngineSuite) TestStatusNeverImprovesWithoutOverturn() {
	s.ledger.EXPECT().FreezeActor(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()
	s.ledger.EXPECT().MarkFraudulent(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()
	s.payouts.EXPECT().HoldForRisk(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	sig := s.addSignal(fraud.SeverityCritical, 100)
	_, err := s.engine.Recompute(s.ctx, s.actorID)
	s.Require().NoError(err)

	// Reviews are read with the signals, so a plain recompute after an
	// overturn must still hold the status.
	s.overturn(sig)
	st, err := s.engine.Recompute(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(models.StatusSuspended, st.Status)
	s.Equal(0.0, st.RiskScore)
}

func (s *EngineSuite) TestOverturnRecoversOneLevelPerRecompute() {
	s.ledger.EXPECT().FreezeActor(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil).AnyTimes()
	s.payouts.EXPECT().HoldForRisk(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	sig := s.addSignal(fraud.SeverityCritical, 100)
	st, err := s.engine.Recompute(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusSuspended, st.Status)

	s.overturn(sig)

	st, err = s.engine.RecomputeAfterOverturn(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(models.StatusWatchList, st.Status)

	s.ledger.EXPECT().Unfreeze(gomock.Any(), s.actorID).Return(4, nil)
	st, err = s.engine.RecomputeAfterOverturn(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(models.StatusClean, st.Status)
}

func (s *EngineSuite) TestFailedEnforcementKeepsOldState() {
	s.addSignal(fraud.SeverityHigh, 100)

	s.ledger.EXPECT().FreezeActor(gomock.Any(), s.actorID, gomock.Any()).Return(0, nil)
	s.payouts.EXPECT().HoldForRisk(gomock.Any(), s.actorID, models.StatusWatchList).Return(errors.New("payout store down"))

	_, err := s.engine.Recompute(s.ctx, s.actorID)
	s.Require().Error(err)

	status, err := s.engine.Status(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(models.StatusClean, status)

	s.Run("next recompute repeats the transition", func() {
		s.ledger.EXPECT().FreezeActor(gomock.Any(), s.actorID, gomock.Any()).Return(0, nil)
		s.payouts.EXPECT().HoldForRisk(gomock.Any(), s.actorID, models.StatusWatchList).Return(nil)

		st, err := s.engine.Recompute(s.ctx, s.actorID)
		s.Require().NoError(err)
		s.Equal(models.StatusWatchList, st.Status)
	})
}

func (s *EngineSuite) TestConcurrentRecomputesSerialize() {
	s.addSignal(fraud.SeverityHigh, 100)
	s.ledger.EXPECT().FreezeActor(gomock.Any(), s.actorID, gomock.Any()).Return(0, nil).AnyTimes()
	s.payouts.EXPECT().HoldForRisk(gomock.Any(), s.actorID, gomock.Any()).Return(nil).AnyTimes()

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.engine.Recompute(s.ctx, s.actorID)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, err := range errs {
		s.NoError(err)
	}
	st, err := s.engine.State(s.ctx, s.actorID)
	s.Require().NoError(err)
	s.Equal(int64(workers), st.Version)
	s.Equal(models.StatusWatchList, st.Status)
}

func (s *EngineSuite) TestStaleWriteIsConflict() {
	racing := &staleStore{InMemory: s.states}
	engine, err := New(racing, s.signals, s.ledger)
	s.Require().NoError(err)

	_, err = engine.Recompute(s.ctx, s.actorID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

// staleStore simulates another replica winning the write.
type staleStore struct {
	*store.InMemory
}

func (s *staleStore) CompareAndSave(ctx context.Context, state models.State, _ int64) error {
	return s.InMemory.CompareAndSave(ctx, state, state.Version+10)
}

func (s *EngineSuite) TestConstructorGuards() {
	_, err := New(nil, s.signals, s.ledger)
	s.Error(err)
	_, err = New(s.states, nil, s.ledger)
	s.Error(err)
	_, err = New(s.states, s.signals, nil)
	s.Error(err)
}
