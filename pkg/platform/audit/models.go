package audit

import (
	"context"
	"time"

	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers money-moving decisions and fraud enforcement
	// that must be retained for regulators and dispute handling.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers abuse findings and admin access failures.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It stays
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	ActorID   id.ActorID
	// Subject is the entity acted on: a user id, payout request id or signal id.
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	// Operator is the admin subject for reviewer-driven actions.
	Operator string
}

type AuditEvent string

const (
	// Attribution
	EventAttributionLocked   AuditEvent = "attribution_locked"
	EventAttributionFrozen   AuditEvent = "attribution_frozen"
	EventAttributionUnfrozen AuditEvent = "attribution_unfrozen"
	EventAttributionFraud    AuditEvent = "attribution_marked_fraudulent"

	// Fraud and risk
	EventSignalDetected     AuditEvent = "fraud_signal_detected"
	EventSignalReviewed     AuditEvent = "fraud_signal_reviewed"
	EventRiskStatusChanged  AuditEvent = "risk_status_changed"
	EventActorProfileUpdate AuditEvent = "actor_profile_updated"

	// Payouts
	EventPayoutRequested        AuditEvent = "payout_requested"
	EventPayoutHeld             AuditEvent = "payout_held"
	EventPayoutApproved         AuditEvent = "payout_approved"
	EventPayoutRejected         AuditEvent = "payout_rejected"
	EventPayoutSettled          AuditEvent = "payout_settled"
	EventPayoutSettlementFailed AuditEvent = "payout_settlement_failed"

	// Access
	EventAdminAccessDenied AuditEvent = "admin_access_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAttributionFrozen:   CategoryCompliance,
	EventAttributionUnfrozen: CategoryCompliance,
	EventAttributionFraud:    CategoryCompliance,
	EventRiskStatusChanged:   CategoryCompliance,
	EventSignalReviewed:      CategoryCompliance,
	EventPayoutHeld:          CategoryCompliance,
	EventPayoutApproved:      CategoryCompliance,
	EventPayoutRejected:      CategoryCompliance,
	EventPayoutSettled:       CategoryCompliance,

	EventSignalDetected:         CategorySecurity,
	EventAdminAccessDenied:      CategorySecurity,
	EventPayoutSettlementFailed: CategorySecurity,

	EventAttributionLocked:  CategoryOperations,
	EventPayoutRequested:    CategoryOperations,
	EventActorProfileUpdate: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actorID id.ActorID) ([]Event, error)
}
