package models

import (
	"strings"
	"time"

	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
)

// Tier drives the payout multiplier.
type Tier string

const (
	TierStandard Tier = "standard"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

func (t Tier) IsValid() bool {
	switch t {
	case TierStandard, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

// Profile describes a referring actor (creator or ambassador).
//
// AccountUserID is the actor's own user account; an attribution whose user is
// this account is a self-referral. ReferralCode, when set, is unique.
type Profile struct {
	ActorID       id.ActorID `json:"actor_id"`
	AccountUserID id.UserID  `json:"account_user_id"`
	ReferralCode  string     `json:"referral_code,omitempty"`
	Tier          Tier       `json:"tier"`
	Region        string     `json:"region"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DefaultProfile is used for actors without a stored profile.
func DefaultProfile(actorID id.ActorID) Profile {
	return Profile{ActorID: actorID, Tier: TierStandard}
}

// Normalize trims and lowercases free-text fields and fills the default tier.
func (p *Profile) Normalize() {
	p.ReferralCode = strings.TrimSpace(p.ReferralCode)
	p.Region = strings.ToLower(strings.TrimSpace(p.Region))
	if p.Tier == "" {
		p.Tier = TierStandard
	}
}

func (p *Profile) Validate() error {
	if p.ActorID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "actor_id is required")
	}
	if !p.Tier.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "tier must be one of standard, silver, gold, platinum")
	}
	if len(p.ReferralCode) > 64 {
		return dErrors.New(dErrors.CodeValidation, "referral_code must be at most 64 characters")
	}
	if len(p.Region) > 32 {
		return dErrors.New(dErrors.CodeValidation, "region must be at most 32 characters")
	}
	return nil
}
