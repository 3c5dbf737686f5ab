package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/ports"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/config"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/circuit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/sentinel"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

// SettlementConfig bounds one settlement attempt against the wallet.
type SettlementConfig struct {
	Timeout        time.Duration
	MaxRetries     uint64
	InitialBackoff time.Duration
	BatchSize      int
}

func (c SettlementConfig) withDefaults() SettlementConfig {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

// SettlementFromConfig converts the loaded settings and builds the wallet
// breaker they describe.
func SettlementFromConfig(cfg config.Settlement) (SettlementConfig, *circuit.Breaker) {
	opts := []circuit.Option{
		circuit.WithFailureThreshold(cfg.BreakerFailures),
		circuit.WithSuccessThreshold(cfg.BreakerSuccesses),
	}
	if cfg.BreakerCooldown > 0 {
		opts = append(opts, circuit.WithCooldown(cfg.BreakerCooldown))
	}
	breaker := circuit.New("wallet", opts...)
	return SettlementConfig{
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		BatchSize:      cfg.BatchSize,
	}.withDefaults(), breaker
}

// SettlementReport summarizes one sweep over approved requests.
type SettlementReport struct {
	Attempted     int  `json:"attempted"`
	Settled       int  `json:"settled"`
	Failed        int  `json:"failed"`
	Skipped       int  `json:"skipped"`
	CircuitOpened bool `json:"circuit_opened"`
}

var errWalletDeclined = errors.New("wallet declined settlement")

// Settle pays out one approved request. Settling an already settled request
// returns it unchanged.
func (g *Gate) Settle(ctx context.Context, requestID id.PayoutRequestID) (*models.Request, error) {
	req, err := g.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	release, err := g.lock(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the lock.
	req, err = g.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch req.Status {
	case models.StatusSettled:
		return req, nil
	case models.StatusApproved:
	default:
		return nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("payout request is %s, not approved", req.Status))
	}
	return g.settleOne(ctx, req)
}

// SweepSettlements settles approved requests oldest first, stopping early
// once the wallet breaker opens.
func (g *Gate) SweepSettlements(ctx context.Context) (SettlementReport, error) {
	var report SettlementReport
	approved, err := g.store.ListByStatus(ctx, models.StatusApproved, g.settlement.BatchSize)
	if err != nil {
		return report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list approved payouts")
	}
	for i, req := range approved {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !g.breaker.Allow() {
			report.CircuitOpened = true
			report.Skipped += len(approved) - i
			break
		}
		report.Attempted++
		_, err := g.Settle(ctx, req.ID)
		switch {
		case err == nil:
			report.Settled++
		case dErrors.HasCode(err, dErrors.CodeInvalidState), dErrors.HasCode(err, dErrors.CodeComplianceBlock):
			// Held or decided since the listing.
			report.Skipped++
		default:
			report.Failed++
			g.logger.WarnContext(ctx, "payout settlement failed",
				"payout_request_id", req.ID.String(),
				"actor_id", req.ActorID.String(),
				"error", err,
			)
		}
	}
	if g.breaker.IsOpen() {
		report.CircuitOpened = true
	}
	return report, nil
}

// settleOne calls the wallet with retries. The caller holds the actor's
// payout lock and has checked the request is approved.
func (g *Gate) settleOne(ctx context.Context, req *models.Request) (*models.Request, error) {
	ctx, span := g.tracer.Start(ctx, "payout.settle")
	defer span.End()
	span.SetAttributes(
		attribute.String("payout_request_id", req.ID.String()),
		attribute.String("actor_id", req.ActorID.String()),
	)

	status, err := g.risk.Status(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if status.Blocked() {
		return nil, dErrors.New(dErrors.CodeComplianceBlock, reasonBlocked)
	}
	if !g.breaker.Allow() {
		g.metrics.ObserveSettlement("circuit_open", 0)
		return nil, dErrors.New(dErrors.CodeUnavailable, "wallet circuit is open")
	}

	start := time.Now()
	var result ports.SettlementResult
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.settlement.Timeout)
		defer cancel()
		res, err := g.wallet.Settle(callCtx, ports.SettlementRequest{
			PayoutRequestID: req.ID,
			Amount:          req.AmountTokens,
			Currency:        req.Currency,
		})
		if err != nil {
			return err
		}
		if !res.Success {
			return errWalletDeclined
		}
		result = res
		return nil
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = g.settlement.InitialBackoff
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, g.settlement.MaxRetries), ctx)
	callErr := backoff.Retry(op, policy)
	elapsed := time.Since(start)

	now := requestcontext.Now(ctx)
	updated := *req
	updated.UpdatedAt = now

	if callErr != nil {
		span.RecordError(callErr)
		span.SetStatus(codes.Error, "settlement failed")
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "wallet circuit opened", "breaker", g.breaker.Name())
		}
		updated.SettlementAttempts++
		updated.LastSettlementError = callErr.Error()
		if err := g.store.Update(ctx, updated, models.StatusApproved); err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
			g.logger.ErrorContext(ctx, "failed to record settlement attempt",
				"payout_request_id", req.ID.String(), "error", err)
		}
		g.metrics.ObserveSettlement("failed", elapsed)
		audit.Log(ctx, g.logger, g.auditor, audit.Event{
			Category: audit.CategorySecurity,
			ActorID:  req.ActorID,
			Subject:  req.ID.String(),
			Action:   string(audit.EventPayoutSettlementFailed),
			Reason:   callErr.Error(),
		}, "attempts", updated.SettlementAttempts)
		return nil, dErrors.Wrap(callErr, dErrors.CodeUnavailable, "settlement failed").WithDetail(updated)
	}

	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "wallet circuit closed", "breaker", g.breaker.Name())
	}
	updated.Status = models.StatusSettled
	updated.SettlementAttempts++
	updated.LastSettlementError = ""
	updated.TransactionID = result.TransactionID
	updated.SettledAt = &now
	if err := g.store.Update(ctx, updated, models.StatusApproved); err != nil {
		// The wallet has moved money; the next sweep retries with the same
		// idempotency key and records the transaction.
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record settlement")
	}
	g.metrics.ObserveSettlement("settled", elapsed)
	audit.Log(ctx, g.logger, g.auditor, audit.Event{
		Category: audit.CategoryCompliance,
		ActorID:  req.ActorID,
		Subject:  req.ID.String(),
		Action:   string(audit.EventPayoutSettled),
		Decision: result.TransactionID,
	}, "amount_tokens", req.AmountTokens.String(), "currency", req.Currency)
	return &updated, nil
}
