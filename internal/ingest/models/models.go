// Package models normalizes loosely-typed connector payloads into a closed
// set of event types. Nothing past this package sees a RawEvent.
package models

import (
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	attribution "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
)

const (
	maxReferralCodeLen = 64
	maxDeviceIDLen     = 256
)

// Geo is the optional coordinate pair reported by the client.
type Geo struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// RawEvent is the wire shape accepted from ad and referral connectors over
// HTTP and Kafka.
type RawEvent struct {
	EventID      string           `json:"eventId,omitempty"`
	Type         string           `json:"type"`
	UserID       string           `json:"userId"`
	ActorID      string           `json:"actorId,omitempty"`
	ReferralCode string           `json:"referralCode,omitempty"`
	Method       string           `json:"method,omitempty"`
	DeviceID     string           `json:"deviceId,omitempty"`
	IP           string           `json:"ip,omitempty"`
	Geo          *Geo             `json:"geo,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Premium      *bool            `json:"premium,omitempty"`
}

// Event is the closed union of normalized events. Only types in this package
// implement it.
type Event interface {
	Meta() Envelope
	isEvent()
}

// Envelope carries the fields every event shares.
type Envelope struct {
	EventID  id.EventID
	UserID   id.UserID
	DeviceID string
	IP       string
	At       time.Time
}

func (e Envelope) Meta() Envelope { return e }

// Touch is a first-touch candidate: an install or an in-person check-in.
// The referring actor is named directly or through a referral code.
type Touch struct {
	Envelope
	Kind         attribution.EventKind
	ActorID      id.ActorID
	ReferralCode string
	Method       attribution.Method
	Latitude     *float64
	Longitude    *float64
}

// Milestone advances a write-once funnel stage.
type Milestone struct {
	Envelope
	Stage attribution.Stage
}

// Purchase accrues revenue. First marks the user's first purchase.
type Purchase struct {
	Envelope
	Amount decimal.Decimal
	First  bool
}

// Session is in-app activity with no ledger effect beyond the event log.
type Session struct {
	Envelope
}

// Subscription toggles the premium flag.
type Subscription struct {
	Envelope
	Premium bool
}

func (Touch) isEvent()        {}
func (Milestone) isEvent()    {}
func (Purchase) isEvent()     {}
func (Session) isEvent()      {}
func (Subscription) isEvent() {}

// Normalize validates a raw event and converts it. Every failure is a
// validation error; callers must not retry them.
func Normalize(raw RawEvent) (Event, error) {
	env, err := envelope(raw)
	if err != nil {
		return nil, err
	}
	kind := attribution.EventKind(strings.ToLower(strings.TrimSpace(raw.Type)))
	switch kind {
	case attribution.EventInstall, attribution.EventCheckIn:
		return touch(raw, env, kind)
	case attribution.EventRegistered:
		return Milestone{Envelope: env, Stage: attribution.StageRegistered}, nil
	case attribution.EventKYCCompleted:
		return Milestone{Envelope: env, Stage: attribution.StageKYCCompleted}, nil
	case attribution.EventFirstChat:
		return Milestone{Envelope: env, Stage: attribution.StageFirstChat}, nil
	case attribution.EventFirstPurchase, attribution.EventPurchase:
		amount := decimal.Zero
		if raw.Amount != nil {
			amount = *raw.Amount
		}
		if amount.IsNegative() {
			return nil, dErrors.New(dErrors.CodeValidation, "amount must not be negative")
		}
		if kind == attribution.EventPurchase && !amount.IsPositive() {
			return nil, dErrors.New(dErrors.CodeValidation, "purchase amount is required")
		}
		return Purchase{Envelope: env, Amount: amount, First: kind == attribution.EventFirstPurchase}, nil
	case attribution.EventSession:
		return Session{Envelope: env}, nil
	case attribution.EventSubscription:
		if raw.Premium == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "premium is required for subscription events")
		}
		return Subscription{Envelope: env, Premium: *raw.Premium}, nil
	case "":
		return nil, dErrors.New(dErrors.CodeValidation, "type is required")
	}
	return nil, dErrors.New(dErrors.CodeValidation, "unsupported event type")
}

func envelope(raw RawEvent) (Envelope, error) {
	userID, err := id.ParseUserID(strings.TrimSpace(raw.UserID))
	if err != nil {
		return Envelope{}, dErrors.New(dErrors.CodeValidation, "userId must be a valid id")
	}
	if raw.Timestamp.IsZero() {
		return Envelope{}, dErrors.New(dErrors.CodeValidation, "timestamp is required")
	}
	deviceID := strings.TrimSpace(raw.DeviceID)
	if len(deviceID) > maxDeviceIDLen {
		return Envelope{}, dErrors.New(dErrors.CodeValidation, "deviceId is too long")
	}
	ip := strings.TrimSpace(raw.IP)
	if ip != "" {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return Envelope{}, dErrors.New(dErrors.CodeValidation, "ip must be a valid address")
		}
		ip = addr.Unmap().String()
	}
	env := Envelope{
		UserID:   userID,
		DeviceID: deviceID,
		IP:       ip,
		At:       raw.Timestamp.UTC(),
	}
	if raw.EventID != "" {
		u, err := uuid.Parse(raw.EventID)
		if err != nil {
			return Envelope{}, dErrors.New(dErrors.CodeValidation, "eventId must be a valid id")
		}
		env.EventID = id.EventID(u)
	}
	return env, nil
}

func touch(raw RawEvent, env Envelope, kind attribution.EventKind) (Touch, error) {
	t := Touch{Envelope: env, Kind: kind}
	if raw.ActorID != "" {
		actorID, err := id.ParseActorID(strings.TrimSpace(raw.ActorID))
		if err != nil {
			return Touch{}, dErrors.New(dErrors.CodeValidation, "actorId must be a valid id")
		}
		t.ActorID = actorID
	}
	t.ReferralCode = strings.TrimSpace(raw.ReferralCode)
	if len(t.ReferralCode) > maxReferralCodeLen {
		return Touch{}, dErrors.New(dErrors.CodeValidation, "referralCode is too long")
	}
	if t.ActorID.IsNil() && t.ReferralCode == "" {
		return Touch{}, dErrors.New(dErrors.CodeValidation, "actorId or referralCode is required")
	}

	method := attribution.Method(strings.ToLower(strings.TrimSpace(raw.Method)))
	switch {
	case method != "" && !method.IsValid():
		return Touch{}, dErrors.New(dErrors.CodeValidation, "method must be one of code, qr, event-checkin, link")
	case method != "":
		t.Method = method
	case kind == attribution.EventCheckIn:
		t.Method = attribution.MethodEventCheckIn
	case t.ReferralCode != "":
		t.Method = attribution.MethodCode
	default:
		t.Method = attribution.MethodLink
	}

	if raw.Geo != nil {
		if (raw.Geo.Lat == nil) != (raw.Geo.Lon == nil) {
			return Touch{}, dErrors.New(dErrors.CodeValidation, "geo requires both lat and lon")
		}
		if raw.Geo.Lat != nil {
			lat, lon := *raw.Geo.Lat, *raw.Geo.Lon
			if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
				return Touch{}, dErrors.New(dErrors.CodeValidation, "geo coordinates out of range")
			}
			t.Latitude, t.Longitude = &lat, &lon
		}
	}
	return t, nil
}
