package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so that a UserID can never be passed
// where an ActorID is expected.
type (
	UserID          uuid.UUID
	ActorID         uuid.UUID
	AttributionID   uuid.UUID
	EventID         uuid.UUID
	SignalID        uuid.UUID
	PayoutRequestID uuid.UUID
)

func (id UserID) String() string          { return uuid.UUID(id).String() }
func (id ActorID) String() string         { return uuid.UUID(id).String() }
func (id AttributionID) String() string   { return uuid.UUID(id).String() }
func (id EventID) String() string         { return uuid.UUID(id).String() }
func (id SignalID) String() string        { return uuid.UUID(id).String() }
func (id PayoutRequestID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id SignalID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id PayoutRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps IDs as canonical strings in JSON and JSONB.
func (id UserID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id ActorID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id AttributionID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id SignalID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id PayoutRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ActorID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AttributionID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SignalID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PayoutRequestID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func NewUserID() UserID                   { return UserID(uuid.New()) }
func NewActorID() ActorID                 { return ActorID(uuid.New()) }
func NewAttributionID() AttributionID     { return AttributionID(uuid.New()) }
func NewEventID() EventID                 { return EventID(uuid.New()) }
func NewSignalID() SignalID               { return SignalID(uuid.New()) }
func NewPayoutRequestID() PayoutRequestID { return PayoutRequestID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user_id")
	return UserID(id), err
}

func ParseActorID(s string) (ActorID, error) {
	id, err := parseUUID(s, "actor_id")
	return ActorID(id), err
}

func ParseSignalID(s string) (SignalID, error) {
	id, err := parseUUID(s, "signal_id")
	return SignalID(id), err
}

func ParsePayoutRequestID(s string) (PayoutRequestID, error) {
	id, err := parseUUID(s, "payout_request_id")
	return PayoutRequestID(id), err
}

// parseUUID is the single trust-boundary parser for all ID types.
// Rejects empty input, malformed UUIDs and the nil UUID.
func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return id, nil
}
