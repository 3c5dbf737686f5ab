// Package ports declares the external collaborators the payout gate calls.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Wallet,Compliance

import (
	"context"

	"github.com/shopspring/decimal"

	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
)

type SettlementRequest struct {
	PayoutRequestID id.PayoutRequestID `json:"payout_request_id"`
	Amount          decimal.Decimal    `json:"amount"`
	Currency        string             `json:"currency"`
}

type SettlementResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
}

// Wallet is the external ledger that moves money. Settle must be idempotent
// on PayoutRequestID: the gate retries until it sees success.
type Wallet interface {
	Settle(ctx context.Context, req SettlementRequest) (SettlementResult, error)
}

// AMLLevel is the anti-money-laundering risk reported for an actor.
type AMLLevel string

const (
	AMLLow      AMLLevel = "low"
	AMLMedium   AMLLevel = "medium"
	AMLHigh     AMLLevel = "high"
	AMLCritical AMLLevel = "critical"
)

// Holds reports whether the level requires manual review.
func (l AMLLevel) Holds() bool {
	return l == AMLHigh || l == AMLCritical
}

// Compliance reports financial flags on an actor.
type Compliance interface {
	HasOpenDispute(ctx context.Context, actorID id.ActorID) (bool, error)
	AMLRiskLevel(ctx context.Context, actorID id.ActorID) (AMLLevel, error)
}
