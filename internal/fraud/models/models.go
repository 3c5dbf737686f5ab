package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
)

type SignalType string

const (
	TypeSelfReferral      SignalType = "self-referral"
	TypeClickFarm         SignalType = "click-farm"
	TypeDuplicateDevice   SignalType = "duplicate-device"
	TypeRapidInstallBurst SignalType = "rapid-install-burst"
	TypeVPNProxy          SignalType = "vpn-proxy"
	TypeCoordinatedRing   SignalType = "coordinated-ring"
	TypeNoEngagement      SignalType = "conversion-without-engagement"
	TypeGeoSpoof          SignalType = "geo-spoof"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Decision string

const (
	DecisionConfirmed  Decision = "confirmed"
	DecisionOverturned Decision = "overturned"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionConfirmed, DecisionOverturned:
		return d, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "decision must be confirmed or overturned")
}

// Evidence is the structured payload a detector attaches to a finding. Only
// the fields relevant to the signal type are set.
type Evidence struct {
	UserIDs    []id.UserID  `json:"user_ids,omitempty"`
	ActorIDs   []id.ActorID `json:"actor_ids,omitempty"`
	IP         string       `json:"ip,omitempty"`
	DeviceID   string       `json:"device_id,omitempty"`
	Count      int          `json:"count,omitempty"`
	Rate       float64      `json:"rate,omitempty"`
	Baseline   float64      `json:"baseline,omitempty"`
	DistanceKm float64      `json:"distance_km,omitempty"`
	Range      string       `json:"range,omitempty"`
	Window     string       `json:"window,omitempty"`
}

// Signal is an immutable finding. Review is the latest appended review, if
// any; it is loaded alongside the signal and never stored on it.
type Signal struct {
	ID          id.SignalID `json:"id"`
	Type        SignalType  `json:"type"`
	Severity    Severity    `json:"severity"`
	Confidence  int         `json:"confidence"`
	ActorID     id.ActorID  `json:"actor_id"`
	Evidence    Evidence    `json:"evidence"`
	Fingerprint string      `json:"fingerprint"`
	DetectedAt  time.Time   `json:"detected_at"`
	Review      *Review     `json:"review,omitempty"`
}

// Active reports whether the signal counts towards risk.
func (s *Signal) Active() bool {
	return s.Review == nil || s.Review.Decision != DecisionOverturned
}

type Review struct {
	ID         uuid.UUID   `json:"id"`
	SignalID   id.SignalID `json:"signal_id"`
	Decision   Decision    `json:"decision"`
	Reviewer   string      `json:"reviewer"`
	Note       string      `json:"note,omitempty"`
	ReviewedAt time.Time   `json:"reviewed_at"`
}

// Fingerprint builds the dedupe key for a finding from its type, actor and
// the identifying parts of its evidence.
func Fingerprint(t SignalType, actorID id.ActorID, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(t))
	h.Write([]byte{0})
	h.Write([]byte(actorID.String()))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SortedUserIDs returns a sorted copy for stable evidence and fingerprints.
func SortedUserIDs(ids []id.UserID) []id.UserID {
	out := append([]id.UserID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func SortedActorIDs(ids []id.ActorID) []id.ActorID {
	out := append([]id.ActorID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
