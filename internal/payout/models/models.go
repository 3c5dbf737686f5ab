package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
)

// Model is a compensation model.
type Model string

const (
	ModelCPI      Model = "CPI"
	ModelCPA      Model = "CPA"
	ModelCPS      Model = "CPS"
	ModelRevShare Model = "RevShare"
	ModelHybrid   Model = "hybrid"
)

// ParseModel accepts any casing of the model names.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpi":
		return ModelCPI, nil
	case "cpa":
		return ModelCPA, nil
	case "cps":
		return ModelCPS, nil
	case "revshare":
		return ModelRevShare, nil
	case "hybrid":
		return ModelHybrid, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "model must be one of CPI, CPA, CPS, RevShare, hybrid")
}

// Status is the payout request lifecycle state.
//
//	pending -> approved -> settled
//	pending -> held_for_review -> approved | rejected
//	approved -> held_for_review (risk hold before settlement)
type Status string

const (
	StatusPending       Status = "pending"
	StatusHeldForReview Status = "held_for_review"
	StatusApproved      Status = "approved"
	StatusSettled       Status = "settled"
	StatusRejected      Status = "rejected"
)

// Open reports whether the status counts toward the one-open-request rule.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusHeldForReview || s == StatusApproved
}

// CheckResult is the fraud check recorded on a request.
type CheckResult string

const (
	CheckPass   CheckResult = "pass"
	CheckReview CheckResult = "review"
	CheckFail   CheckResult = "fail"
)

// Component is one compensation model's contribution to the base amount.
type Component struct {
	Model  Model           `json:"model"`
	Count  int             `json:"count"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// Breakdown is the full, reproducible earnings calculation for an actor.
// It carries no wall-clock values beyond the as-of day.
type Breakdown struct {
	ActorID          id.ActorID      `json:"actor_id"`
	Model            Model           `json:"model"`
	AsOf             string          `json:"as_of"`
	VerifiedRecords  int             `json:"verified_records"`
	Components       []Component     `json:"components"`
	BaseTokens       decimal.Decimal `json:"base_tokens"`
	Tier             string          `json:"tier"`
	TierMultiplier   decimal.Decimal `json:"tier_multiplier"`
	Region           string          `json:"region,omitempty"`
	RegionMultiplier decimal.Decimal `json:"region_multiplier"`
	TotalTokens      decimal.Decimal `json:"total_tokens"`
	CommittedTokens  decimal.Decimal `json:"committed_tokens"`
	PayableTokens    decimal.Decimal `json:"payable_tokens"`
	MinimumTokens    decimal.Decimal `json:"minimum_tokens"`
	Currency         string          `json:"currency"`
	AccountStatus    string          `json:"account_status"`
	Eligible         bool            `json:"eligible"`
	Reason           string          `json:"reason,omitempty"`
}

// Request is a payout request. At most one request per actor is Open.
type Request struct {
	ID                  id.PayoutRequestID `json:"id"`
	ActorID             id.ActorID         `json:"actor_id"`
	Model               Model              `json:"compensation_model"`
	Breakdown           Breakdown          `json:"breakdown"`
	AmountTokens        decimal.Decimal    `json:"amount_tokens"`
	Currency            string             `json:"currency"`
	Status              Status             `json:"status"`
	FraudChecked        bool               `json:"fraud_checked"`
	FraudCheckResult    CheckResult        `json:"fraud_check_result"`
	HoldReasons         []string           `json:"hold_reasons"`
	DecidedBy           string             `json:"decided_by,omitempty"`
	DecisionNote        string             `json:"decision_note,omitempty"`
	SettlementAttempts  int                `json:"settlement_attempts"`
	LastSettlementError string             `json:"last_settlement_error,omitempty"`
	TransactionID       string             `json:"transaction_id,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	SettledAt           *time.Time         `json:"settled_at,omitempty"`
}

// AddHoldReason appends reason unless already present.
func (r *Request) AddHoldReason(reason string) {
	for _, existing := range r.HoldReasons {
		if existing == reason {
			return
		}
	}
	r.HoldReasons = append(r.HoldReasons, reason)
}

// Decision is an admin verdict on a held request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "decision must be approve or reject")
}
