// Package service computes actor earnings and moves payout requests through
// compliance review to settlement on the external wallet ledger.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/metrics"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/ports"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/lock"
	risk "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/circuit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
	txcontext "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/tx"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

// Store persists payout requests. Create returns sentinel.ErrConflict when
// the actor already has an open request; Update returns
// sentinel.ErrInvalidState when the stored status is no longer from.
type Store interface {
	Create(ctx context.Context, req models.Request) error
	Get(ctx context.Context, requestID id.PayoutRequestID) (*models.Request, error)
	FindOpen(ctx context.Context, actorID id.ActorID) (*models.Request, error)
	Update(ctx context.Context, req models.Request, from models.Status) error
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.Request, error)
	ListByActor(ctx context.Context, actorID id.ActorID) ([]models.Request, error)
}

type Calculate interface {
	Calculate(ctx context.Context, actorID id.ActorID, model models.Model) (*models.Breakdown, error)
}

// Risk reads the actor's standing and creates it on first use.
type Risk interface {
	Ensure(ctx context.Context, actorID id.ActorID) (*risk.State, error)
	Status(ctx context.Context, actorID id.ActorID) (risk.Status, error)
}

const (
	maxNoteLen       = 2000
	holdRetries      = 3
	defaultLockWait  = 5 * time.Second
	reasonDispute    = "open dispute"
	reasonAMLPrefix  = "aml risk "
	reasonRiskPrefix = "risk status "
)

type Gate struct {
	store      Store
	calc       Calculate
	risk       Risk
	compliance ports.Compliance
	wallet     ports.Wallet

	locker     lock.Locker
	runner     txcontext.Runner
	breaker    *circuit.Breaker
	settlement SettlementConfig

	logger  *slog.Logger
	auditor audit.Emitter
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(g *Gate) { g.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

func WithLocker(l lock.Locker) Option {
	return func(g *Gate) { g.locker = l }
}

func WithTxRunner(r txcontext.Runner) Option {
	return func(g *Gate) { g.runner = r }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(g *Gate) { g.breaker = b }
}

func WithSettlement(cfg SettlementConfig) Option {
	return func(g *Gate) { g.settlement = cfg.withDefaults() }
}

func New(store Store, calc Calculate, riskReader Risk, compliance ports.Compliance, wallet ports.Wallet, opts ...Option) (*Gate, error) {
	if store == nil {
		return nil, errors.New("payout store is required")
	}
	if calc == nil {
		return nil, errors.New("payout calculator is required")
	}
	if riskReader == nil {
		return nil, errors.New("risk reader is required")
	}
	if compliance == nil {
		return nil, errors.New("compliance client is required")
	}
	if wallet == nil {
		return nil, errors.New("wallet client is required")
	}
	g := &Gate{
		store:      store,
		calc:       calc,
		risk:       riskReader,
		compliance: compliance,
		wallet:     wallet,
		locker:     lock.NewSharded(0),
		runner:     txcontext.NopRunner{},
		breaker:    circuit.New("wallet"),
		settlement: SettlementConfig{}.withDefaults(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/service"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// RequestPayout creates the actor's payout request. An existing open request
// is returned inside a conflict error; an ineligible calculation is a
// compliance block carrying the reason.
func (g *Gate) RequestPayout(ctx context.Context, actorID id.ActorID, model models.Model) (*models.Request, error) {
	if actorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "actor_id is required")
	}
	release, err := g.lock(ctx, actorID)
	if err != nil {
		return nil, err
	}
	defer release()

	state, err := g.risk.Ensure(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if existing, err := g.store.FindOpen(ctx, actorID); err == nil {
		g.metrics.IncrementRequest("conflict")
		return nil, conflict(existing)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load open payout request")
	}

	bd, err := g.calc.Calculate(ctx, actorID, model)
	if err != nil {
		return nil, err
	}
	if !bd.Eligible {
		g.metrics.IncrementRequest("blocked")
		audit.Log(ctx, g.logger, g.auditor, audit.Event{
			Category: audit.CategoryCompliance,
			ActorID:  actorID,
			Subject:  actorID.String(),
			Action:   string(audit.EventPayoutRejected),
			Decision: "blocked",
			Reason:   bd.Reason,
		})
		return nil, dErrors.New(dErrors.CodeComplianceBlock, bd.Reason).WithDetail(bd)
	}

	holds, err := g.complianceHolds(ctx, actorID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	req := models.Request{
		ID:               id.NewPayoutRequestID(),
		ActorID:          actorID,
		Model:            model,
		Breakdown:        *bd,
		AmountTokens:     bd.PayableTokens,
		Currency:         bd.Currency,
		Status:           models.StatusPending,
		FraudChecked:     true,
		FraudCheckResult: checkFor(state.Status),
		HoldReasons:      []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.FraudCheckResult != models.CheckPass {
		req.AddHoldReason(reasonRiskPrefix + string(state.Status))
	}
	for _, h := range holds {
		req.AddHoldReason(h)
	}
	if len(req.HoldReasons) == 0 {
		req.Status = models.StatusApproved
	} else {
		req.Status = models.StatusHeldForReview
	}

	err = g.runner.RunInTx(ctx, func(ctx context.Context) error {
		return g.store.Create(ctx, req)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another replica won the partial unique index.
			g.metrics.IncrementRequest("conflict")
			if existing, findErr := g.store.FindOpen(ctx, actorID); findErr == nil {
				return nil, conflict(existing)
			}
			return nil, dErrors.New(dErrors.CodeConflict, "an open payout request already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create payout request")
	}

	audit.Log(ctx, g.logger, g.auditor, audit.Event{
		Category: audit.CategoryCompliance,
		ActorID:  actorID,
		Subject:  req.ID.String(),
		Action:   string(audit.EventPayoutRequested),
		Decision: string(req.FraudCheckResult),
	}, "amount_tokens", req.AmountTokens.String(), "model", string(model))
	if req.Status == models.StatusApproved {
		g.metrics.IncrementRequest("approved")
		audit.Log(ctx, g.logger, g.auditor, audit.Event{
			Category: audit.CategoryCompliance,
			ActorID:  actorID,
			Subject:  req.ID.String(),
			Action:   string(audit.EventPayoutApproved),
			Decision: "auto",
		})
	} else {
		g.metrics.IncrementRequest("held")
		audit.Log(ctx, g.logger, g.auditor, audit.Event{
			Category: audit.CategoryCompliance,
			ActorID:  actorID,
			Subject:  req.ID.String(),
			Action:   string(audit.EventPayoutHeld),
			Reason:   strings.Join(req.HoldReasons, "; "),
		})
	}
	return &req, nil
}

func (g *Gate) complianceHolds(ctx context.Context, actorID id.ActorID) ([]string, error) {
	var holds []string
	dispute, err := g.compliance.HasOpenDispute(ctx, actorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "compliance service unavailable")
	}
	if dispute {
		holds = append(holds, reasonDispute)
	}
	level, err := g.compliance.AMLRiskLevel(ctx, actorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "compliance service unavailable")
	}
	if level.Holds() {
		holds = append(holds, reasonAMLPrefix+string(level))
	}
	return holds, nil
}

type DecideRequest struct {
	RequestID id.PayoutRequestID
	Decision  models.Decision
	Reviewer  string
	Note      string
}

// Decide resolves a held request. Approval is refused while the actor is
// suspended or banned.
func (g *Gate) Decide(ctx context.Context, in DecideRequest) (*models.Request, error) {
	in.Reviewer = strings.TrimSpace(in.Reviewer)
	if in.Reviewer == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reviewer is required")
	}
	if in.Decision != models.DecisionApprove && in.Decision != models.DecisionReject {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be approve or reject")
	}
	if len(in.Note) > maxNoteLen {
		return nil, dErrors.New(dErrors.CodeValidation, "note is too long")
	}

	req, err := g.Get(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	release, err := g.lock(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	defer release()

	if in.Decision == models.DecisionApprove {
		status, err := g.risk.Status(ctx, req.ActorID)
		if err != nil {
			return nil, err
		}
		if status.Blocked() {
			return nil, dErrors.New(dErrors.CodeComplianceBlock, reasonBlocked)
		}
	}

	err = g.runner.RunInTx(ctx, func(ctx context.Context) error {
		current, err := g.store.Get(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if current.Status != models.StatusHeldForReview {
			return sentinel.ErrInvalidState
		}
		req = current
		req.Status = models.StatusRejected
		if in.Decision == models.DecisionApprove {
			req.Status = models.StatusApproved
		}
		req.DecidedBy = in.Reviewer
		req.DecisionNote = in.Note
		req.UpdatedAt = requestcontext.Now(ctx)
		return g.store.Update(ctx, *req, models.StatusHeldForReview)
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeInvalidState, "payout request is not held for review")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "payout request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record payout decision")
	}

	g.metrics.IncrementDecision(string(in.Decision))
	action := audit.EventPayoutRejected
	if req.Status == models.StatusApproved {
		action = audit.EventPayoutApproved
	}
	audit.Log(ctx, g.logger, g.auditor, audit.Event{
		Category: audit.CategoryCompliance,
		ActorID:  req.ActorID,
		Subject:  req.ID.String(),
		Action:   string(action),
		Decision: string(in.Decision),
		Operator: in.Reviewer,
	})
	return req, nil
}

// HoldForRisk moves the actor's open request back to review after the risk
// engine worsened the actor's status. Approved requests that have not
// settled yet are held as well. Callers must not hold the payout lock.
func (g *Gate) HoldForRisk(ctx context.Context, actorID id.ActorID, status risk.Status) error {
	if status == risk.StatusClean {
		return nil
	}
	result := models.CheckReview
	if status.Blocked() {
		result = models.CheckFail
	}
	// Waits out an in-flight settlement so a paid request is never reopened.
	release, err := g.lock(ctx, actorID)
	if err != nil {
		return err
	}
	defer release()

	for range holdRetries {
		var held *models.Request
		err := g.runner.RunInTx(ctx, func(ctx context.Context) error {
			open, err := g.store.FindOpen(ctx, actorID)
			if err != nil {
				return err
			}
			from := open.Status
			open.FraudCheckResult = result
			open.Status = models.StatusHeldForReview
			open.AddHoldReason(reasonRiskPrefix + string(status))
			open.UpdatedAt = requestcontext.Now(ctx)
			if err := g.store.Update(ctx, *open, from); err != nil {
				return err
			}
			held = open
			return nil
		})
		switch {
		case err == nil:
			g.metrics.IncrementRiskHold()
			audit.Log(ctx, g.logger, g.auditor, audit.Event{
				Category: audit.CategoryCompliance,
				ActorID:  actorID,
				Subject:  held.ID.String(),
				Action:   string(audit.EventPayoutHeld),
				Decision: string(result),
				Reason:   reasonRiskPrefix + string(status),
			})
			return nil
		case errors.Is(err, sentinel.ErrNotFound):
			return nil
		case errors.Is(err, sentinel.ErrInvalidState):
			// Raced with a decision or settlement; look again.
			continue
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hold payout request")
		}
	}
	return dErrors.New(dErrors.CodeConflict, "payout request kept changing while holding")
}

func (g *Gate) Get(ctx context.Context, requestID id.PayoutRequestID) (*models.Request, error) {
	req, err := g.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payout request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payout request")
	}
	return req, nil
}

func (g *Gate) ListByActor(ctx context.Context, actorID id.ActorID) ([]models.Request, error) {
	reqs, err := g.store.ListByActor(ctx, actorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list payout requests")
	}
	return reqs, nil
}

func (g *Gate) lock(ctx context.Context, actorID id.ActorID) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, defaultLockWait)
	defer cancel()
	release, err := g.locker.Lock(lockCtx, "payout:"+actorID.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "payout request already in progress")
	}
	return release, nil
}

func checkFor(status risk.Status) models.CheckResult {
	switch {
	case status == risk.StatusClean:
		return models.CheckPass
	case status.Blocked():
		return models.CheckFail
	}
	return models.CheckReview
}

func conflict(existing *models.Request) error {
	return dErrors.New(dErrors.CodeConflict, "an open payout request already exists").WithDetail(existing)
}
