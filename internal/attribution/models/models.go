package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
)

// Method is how the user was referred.
type Method string

const (
	MethodCode         Method = "code"
	MethodQR           Method = "qr"
	MethodEventCheckIn Method = "event-checkin"
	MethodLink         Method = "link"
)

func (m Method) IsValid() bool {
	switch m {
	case MethodCode, MethodQR, MethodEventCheckIn, MethodLink:
		return true
	}
	return false
}

// Stage is a write-once funnel milestone.
type Stage string

const (
	StageRegistered    Stage = "registered"
	StageKYCCompleted  Stage = "kyc_completed"
	StageFirstChat     Stage = "first_chat"
	StageFirstPurchase Stage = "first_purchase"
)

func (s Stage) IsValid() bool {
	switch s {
	case StageRegistered, StageKYCCompleted, StageFirstChat, StageFirstPurchase:
		return true
	}
	return false
}

// Column is the attributions column holding the stage timestamp.
func (s Stage) Column() string {
	switch s {
	case StageRegistered:
		return "registered_at"
	case StageKYCCompleted:
		return "kyc_completed_at"
	case StageFirstChat:
		return "first_chat_at"
	case StageFirstPurchase:
		return "first_purchase_at"
	}
	return ""
}

// Provenance is captured once at first touch.
type Provenance struct {
	DeviceID     string    `json:"device_id,omitempty"`
	IP           string    `json:"ip,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	FirstTouchAt time.Time `json:"first_touch_at"`
}

func (p Provenance) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Record binds one user to one referring actor for the user's lifetime.
//
// Invariants:
//   - exactly one Record per UserID; ActorID never changes after creation
//   - funnel timestamps move from nil to a value once and never change
//   - LifetimeRevenue never decreases
//   - records are never deleted; enforcement sets Frozen or Fraudulent
type Record struct {
	ID         id.AttributionID `json:"id"`
	UserID     id.UserID        `json:"user_id"`
	ActorID    id.ActorID       `json:"actor_id"`
	Method     Method           `json:"method"`
	Provenance Provenance       `json:"provenance"`

	RegisteredAt    *time.Time      `json:"registered_at,omitempty"`
	KYCCompletedAt  *time.Time      `json:"kyc_completed_at,omitempty"`
	FirstChatAt     *time.Time      `json:"first_chat_at,omitempty"`
	FirstPurchaseAt *time.Time      `json:"first_purchase_at,omitempty"`
	LifetimeRevenue decimal.Decimal `json:"lifetime_revenue"`
	Premium         bool            `json:"premium"`

	Verified   bool    `json:"verified"`
	FraudScore float64 `json:"fraud_score"`
	Locked     bool    `json:"locked"`
	Frozen     bool    `json:"frozen"`
	Fraudulent bool    `json:"fraudulent"`
}

// StageAt returns the timestamp for a funnel stage, or nil.
func (r *Record) StageAt(s Stage) *time.Time {
	switch s {
	case StageRegistered:
		return r.RegisteredAt
	case StageKYCCompleted:
		return r.KYCCompletedAt
	case StageFirstChat:
		return r.FirstChatAt
	case StageFirstPurchase:
		return r.FirstPurchaseAt
	}
	return nil
}

// SetStage sets the stage timestamp if unset and reports whether it changed.
func (r *Record) SetStage(s Stage, at time.Time) bool {
	var slot **time.Time
	switch s {
	case StageRegistered:
		slot = &r.RegisteredAt
	case StageKYCCompleted:
		slot = &r.KYCCompletedAt
	case StageFirstChat:
		slot = &r.FirstChatAt
	case StageFirstPurchase:
		slot = &r.FirstPurchaseAt
	default:
		return false
	}
	if *slot != nil {
		return false
	}
	t := at
	*slot = &t
	return true
}

// Payable reports whether the record counts towards earnings.
func (r *Record) Payable() bool {
	return r.Verified && !r.Fraudulent
}

// EventKind classifies the append-only activity log.
type EventKind string

const (
	EventInstall       EventKind = "install"
	EventCheckIn       EventKind = "check_in"
	EventRegistered    EventKind = "registered"
	EventKYCCompleted  EventKind = "kyc_completed"
	EventFirstChat     EventKind = "first_chat"
	EventFirstPurchase EventKind = "first_purchase"
	EventPurchase      EventKind = "purchase"
	EventSession       EventKind = "session"
	EventSubscription  EventKind = "subscription"
)

// IsEngagement reports whether the event shows real in-app usage.
func (k EventKind) IsEngagement() bool {
	switch k {
	case EventSession, EventFirstChat, EventCheckIn:
		return true
	}
	return false
}

// Event is one entry of the attribution activity log.
type Event struct {
	ID         id.EventID `json:"id"`
	UserID     id.UserID  `json:"user_id"`
	ActorID    id.ActorID `json:"actor_id"`
	Kind       EventKind  `json:"kind"`
	DeviceID   string     `json:"device_id,omitempty"`
	IP         string     `json:"ip,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// LockRequest is the input to a first-touch attribution.
type LockRequest struct {
	UserID     id.UserID
	ActorID    id.ActorID
	Method     Method
	Provenance Provenance
}
