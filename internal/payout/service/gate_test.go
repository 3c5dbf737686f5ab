package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/ports"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/ports/mocks"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/store"
	risk "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit/publisher"
	auditmemory "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit/store/memory"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/circuit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

type GateSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	wallet     *mocks.MockWallet
	compliance *mocks.MockCompliance
	records    recordSet
	risk       *riskBoard
	store      *store.InMemory
	auditStore *auditmemory.InMemoryStore
	breaker    *circuit.Breaker
	clock      time.Time
	gate       *Gate
	now        time.Time
	ctx        context.Context
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.wallet = mocks.NewMockWallet(s.ctrl)
	s.compliance = mocks.NewMockCompliance(s.ctrl)
	s.records = recordSet{}
	s.risk = newRiskBoard()
	s.store = store.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.now = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.clock = s.now
	s.breaker = circuit.New("wallet",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return s.clock }),
	)

	calc, err := NewCalculator(s.records, profileSet{}, s.risk, s.store, DefaultRates())
	s.Require().NoError(err)
	s.gate, err = New(s.store, calc, s.risk, s.compliance, s.wallet,
		WithBreaker(s.breaker),
		WithSettlement(SettlementConfig{Timeout: time.Second, MaxRetries: 2, InitialBackoff: time.Millisecond}),
		WithAuditPublisher(publisher.NewPublisher(s.auditStore)),
	)
	s.Require().NoError(err)
}

// earner returns an actor with tokens verified records worth of CPI.
func (s *GateSuite) earner(records int) id.ActorID {
	actorID := id.NewActorID()
	s.records.add(actorID, records, s.now.AddDate(0, 0, -5), nil)
	return actorID
}

func (s *GateSuite) compliant(actorID id.ActorID) {
	s.compliance.EXPECT().HasOpenDispute(gomock.Any(), actorID).Return(false, nil).AnyTimes()
	s.compliance.EXPECT().AMLRiskLevel(gomock.Any(), actorID).Return(ports.AMLLow, nil).AnyTimes()
}

func (s *GateSuite) approved(actorID id.ActorID) *models.Request {
	s.compliant(actorID)
	req, err := s.gate.RequestPayout(s.ctx, actorID, models.ModelCPI)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusApproved, req.Status)
	return req
}

func (s *GateSuite) held(actorID id.ActorID) *models.Request {
	s.compliance.EXPECT().HasOpenDispute(gomock.Any(), actorID).Return(true, nil)
	s.compliance.EXPECT().AMLRiskLevel(gomock.Any(), actorID).Return(ports.AMLLow, nil)
	req, err := s.gate.RequestPayout(s.ctx, actorID, models.ModelCPI)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusHeldForReview, req.Status)
	return req
}

func (s *GateSuite) stored(requestID id.PayoutRequestID) *models.Request {
	req, err := s.store.Get(context.Background(), requestID)
	s.Require().NoError(err)
	return req
}

func (s *GateSuite) TestRequestApproved() {
	actorID := s.earner(120)
	req := s.approved(actorID)

	s.True(decimal.NewFromInt(1200).Equal(req.AmountTokens))
	s.Equal("TOKEN", req.Currency)
	s.True(req.FraudChecked)
	s.Equal(models.CheckPass, req.FraudCheckResult)
	s.Empty(req.HoldReasons)
	s.Equal(1, s.risk.ensured)
	s.Equal(s.now, req.CreatedAt)
	s.Equal(models.StatusApproved, s.stored(req.ID).Status)
	s.Equal([]string{
		string(audit.EventPayoutRequested),
		string(audit.EventPayoutApproved),
	}, s.auditStore.Actions(actorID))
}

func (s *GateSuite) TestSecondOpenRequestConflicts() {
	actorID := s.earner(300)
	first := s.approved(actorID)

	_, err := s.gate.RequestPayout(s.ctx, actorID, models.ModelCPI)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
	de, ok := dErrors.As(err)
	s.Require().True(ok)
	existing, ok := de.Detail.(*models.Request)
	s.Require().True(ok)
	s.Equal(first.ID, existing.ID)

	all, err := s.gate.ListByActor(s.ctx, actorID)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *GateSuite) TestConcurrentRequestsCreateOne() {
	actorID := s.earner(300)
	s.compliant(actorID)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.gate.RequestPayout(s.ctx, actorID, models.ModelCPI)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()
	s.Equal(1, created)
	s.Equal(7, conflicts)
}

func (s *GateSuite) TestIneligibleIsComplianceBlock() {
	s.Run("below minimum", func() {
		actorID := s.earner(50)
		_, err := s.gate.RequestPayout(s.ctx, actorID, models.ModelCPI)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeComplianceBlock))
		s.Contains(err.Error(), "minimum")
		de, _ := dErrors.As(err)
		bd, ok := de.Detail.(*models.Breakdown)
		s.Require().True(ok)
		s.True(decimal.NewFromInt(500).Equal(bd.TotalTokens))

		all, err := s.gate.ListByActor(s.ctx, actorID)
		s.Require().NoError(err)
		s.Empty(all)
	})

	s.Run("suspended actor", func() {
		actorID := s.earner(500)
		s.risk.set(actorID, risk.StatusSuspended)
		_, err := s.gate.RequestPayout(s.ctx, actorID, models.ModelCPI)
		s.True(dErrors.HasCode(err, dErrors.CodeComplianceBlock))
	})

	s.Run("nothing left after a settled payout", func() {
		actorID := s.earner(100)
		req := s.approved(actorID)
		s.wallet.EXPECT().Settle(gomock.Any(), gomock.Any()).Return(ports.SettlementResult{Success: true, TransactionID: "tx-1"}, nil)
		_, err := s.gate.Settle(s.ctx, req.ID)
		s.Require().NoError(err)

		_, err = s.gate.RequestPayout(s.ctx, actorID, models.ModelCPI)
		s.True(dErrors.HasCode(err, dErrors.CodeComplianceBlock))
	})
}

func (s *GateSuite) TestHolds() {
	s.Run("watch list", func() {
		actorID := s.earner(150)
		s.risk.set(actorID, risk.StatusWatchList)
		s.compliant(actorID)

		req, err := s.gate.RequestPayout(s.ctx, actorID, models.ModelCPI)
		s.Require().NoError(err)
		s.Equal(models.StatusHeldForReview, req.Status)
		s.Equal(models.CheckReview, req.FraudCheckResult)
		s.Equal([]string{"risk status watch_list"}, req.HoldReasons)
	})

	s.Run("open dispute", func() {
		req := s.held(s.earner(150))
		s.Equal(models.CheckPass, req.FraudCheckResult)
		s.Equal([]string{"open dispute"}, req.HoldReasons)
	})

	s.Run("high aml risk", func() {
		actorID := s.earner(150)
		s.compliance.EXPECT().HasOpenDispute(gomock.Any(), actorID).Return(false, nil)
		s.compliance.EXPECT().AMLRiskLevel(gomock.Any(), actorID).Return(ports.AMLCritical, nil)

		req, err := s.gate.RequestPayout(s.ctx, actorID, models.ModelCPI)
		s.Require().NoError(err)
		s.Equal(models.StatusHeldForReview, req.Status)
		s.Equal([]string{"aml risk critical"}, req.HoldReasons)
	})

	s.Run("compliance outage", func() {
		actorID := s.earner(150)
		s.compliance.EXPECT().HasOpenDispute(gomock.Any(), actorID).Return(false, errors.New("connection refused"))

		_, err := s.gate.RequestPayout(s.ctx, actorID, models.ModelCPI)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		all, err := s.gate.ListByActor(s.ctx, actorID)
		s.Require().NoError(err)
		s.Empty(all)
	})
}

func (s *GateSuite) TestDecide() {
	s.Run("approve", func() {
		req := s.held(s.earner(150))
		out, err := s.gate.Decide(s.ctx, DecideRequest{
			RequestID: req.ID,
			Decision:  models.DecisionApprove,
			Reviewer:  "ops@example.com",
			Note:      "dispute resolved",
		})
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, out.Status)
		s.Equal("ops@example.com", out.DecidedBy)
		s.Equal(models.StatusApproved, s.stored(req.ID).Status)

		_, err = s.gate.Decide(s.ctx, DecideRequest{RequestID: req.ID, Decision: models.DecisionReject, Reviewer: "ops@example.com"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("reject frees the actor for a new request", func() {
		actorID := s.earner(150)
		req := s.held(actorID)
		out, err := s.gate.Decide(s.ctx, DecideRequest{RequestID: req.ID, Decision: models.DecisionReject, Reviewer: "ops@example.com"})
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, out.Status)

		s.compliant(actorID)
		next, err := s.gate.RequestPayout(s.ctx, actorID, models.ModelCPI)
		s.Require().NoError(err)
		s.True(decimal.NewFromInt(1500).Equal(next.AmountTokens))
	})

	s.Run("approve refused while suspended", func() {
		actorID := s.earner(150)
		req := s.held(actorID)
		s.risk.set(actorID, risk.StatusSuspended)
		_, err := s.gate.Decide(s.ctx, DecideRequest{RequestID: req.ID, Decision: models.DecisionApprove, Reviewer: "ops@example.com"})
		s.True(dErrors.HasCode(err, dErrors.CodeComplianceBlock))
		s.Equal(models.StatusHeldForReview, s.stored(req.ID).Status)
	})

	s.Run("validation", func() {
		_, err := s.gate.Decide(s.ctx, DecideRequest{RequestID: id.NewPayoutRequestID(), Decision: models.DecisionApprove})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.gate.Decide(s.ctx, DecideRequest{RequestID: id.NewPayoutRequestID(), Decision: models.DecisionApprove, Reviewer: "a"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *GateSuite) TestHoldForRisk() {
	s.Run("approved request is held", func() {
		actorID := s.earner(150)
		req := s.approved(actorID)

		s.Require().NoError(s.gate.HoldForRisk(s.ctx, actorID, risk.StatusSuspended))
		got := s.stored(req.ID)
		s.Equal(models.StatusHeldForReview, got.Status)
		s.Equal(models.CheckFail, got.FraudCheckResult)
		s.Equal([]string{"risk status suspended"}, got.HoldReasons)
		s.Contains(s.auditStore.Actions(actorID), string(audit.EventPayoutHeld))
	})

	s.Run("repeat hold keeps one reason", func() {
		actorID := s.earner(150)
		req := s.held(actorID)
		s.Require().NoError(s.gate.HoldForRisk(s.ctx, actorID, risk.StatusWatchList))
		s.Require().NoError(s.gate.HoldForRisk(s.ctx, actorID, risk.StatusWatchList))
		got := s.stored(req.ID)
		s.Equal([]string{"open dispute", "risk status watch_list"}, got.HoldReasons)
		s.Equal(models.CheckReview, got.FraudCheckResult)
	})

	s.Run("no open request", func() {
		s.NoError(s.gate.HoldForRisk(s.ctx, id.NewActorID(), risk.StatusBanned))
	})

	s.Run("clean is a no-op", func() {
		actorID := s.earner(150)
		req := s.approved(actorID)
		s.Require().NoError(s.gate.HoldForRisk(s.ctx, actorID, risk.StatusClean))
		s.Equal(models.StatusApproved, s.stored(req.ID).Status)
	})
}

func (s *GateSuite) TestSettle() {
	actorID := s.earner(110)
	req := s.approved(actorID)

	s.wallet.EXPECT().Settle(gomock.Any(), ports.SettlementRequest{
		PayoutRequestID: req.ID,
		Amount:          req.AmountTokens,
		Currency:        "TOKEN",
	}).Return(ports.SettlementResult{Success: true, TransactionID: "wal-42"}, nil)

	out, err := s.gate.Settle(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSettled, out.Status)
	s.Equal("wal-42", out.TransactionID)
	s.Require().NotNil(out.SettledAt)
	s.Equal(1, out.SettlementAttempts)

	s.Run("settled request is returned unchanged", func() {
		again, err := s.gate.Settle(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal("wal-42", again.TransactionID)
	})

	s.Run("held request cannot settle", func() {
		held := s.held(s.earner(150))
		_, err := s.gate.Settle(s.ctx, held.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *GateSuite) TestSettlementFailureKeepsApproved() {
	actorID := s.earner(150)
	req := s.approved(actorID)

	s.wallet.EXPECT().Settle(gomock.Any(), gomock.Any()).
		Return(ports.SettlementResult{}, errors.New("wallet timeout")).Times(3)

	_, err := s.gate.Settle(s.ctx, req.ID)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	got := s.stored(req.ID)
	s.Equal(models.StatusApproved, got.Status)
	s.Equal(1, got.SettlementAttempts)
	s.Contains(got.LastSettlementError, "wallet timeout")
	s.Empty(got.TransactionID)
	s.Contains(s.auditStore.Actions(actorID), string(audit.EventPayoutSettlementFailed))

	s.Run("declined counts as failure", func() {
		s.wallet.EXPECT().Settle(gomock.Any(), gomock.Any()).
			Return(ports.SettlementResult{Success: false}, nil).Times(3)
		s.clock = s.clock.Add(2 * time.Minute)
		s.breaker.Reset()

		_, err := s.gate.Settle(s.ctx, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(2, s.stored(req.ID).SettlementAttempts)
	})
}

func (s *GateSuite) TestBreakerStopsSweep() {
	var reqs []*models.Request
	for i := range 3 {
		// Distinct creation times fix the sweep order.
		s.ctx = requestcontext.WithTime(context.Background(), s.now.Add(time.Duration(i)*time.Second))
		reqs = append(reqs, s.approved(s.earner(150+i*10)))
	}
	third := reqs[2]

	s.wallet.EXPECT().Settle(gomock.Any(), gomock.Any()).
		Return(ports.SettlementResult{}, errors.New("503 from wallet")).Times(6)

	report, err := s.gate.SweepSettlements(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, report.Attempted)
	s.Equal(2, report.Failed)
	s.Equal(1, report.Skipped)
	s.True(report.CircuitOpened)
	s.True(s.breaker.IsOpen())

	s.Run("open circuit skips the wallet", func() {
		_, err := s.gate.Settle(s.ctx, third.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Zero(s.stored(third.ID).SettlementAttempts)
	})

	s.Run("recovers after cooldown", func() {
		s.clock = s.clock.Add(2 * time.Minute)
		s.wallet.EXPECT().Settle(gomock.Any(), gomock.Any()).
			Return(ports.SettlementResult{Success: true, TransactionID: "wal-ok"}, nil).Times(3)

		report, err := s.gate.SweepSettlements(s.ctx)
		s.Require().NoError(err)
		s.Equal(3, report.Settled)
		s.False(report.CircuitOpened)
		for _, r := range reqs {
			s.Equal(models.StatusSettled, s.stored(r.ID).Status)
		}
	})
}

func (s *GateSuite) TestConstructorGuards() {
	calc, err := NewCalculator(s.records, profileSet{}, s.risk, s.store, DefaultRates())
	s.Require().NoError(err)
	_, err = New(nil, calc, s.risk, s.compliance, s.wallet)
	s.Error(err)
	_, err = New(s.store, nil, s.risk, s.compliance, s.wallet)
	s.Error(err)
	_, err = New(s.store, calc, nil, s.compliance, s.wallet)
	s.Error(err)
	_, err = New(s.store, calc, s.risk, nil, s.wallet)
	s.Error(err)
	_, err = New(s.store, calc, s.risk, s.compliance, nil)
	s.Error(err)
}
