package models

import (
	"math"
	"time"

	fraud "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
)

// Status is the actor's account standing, ordered from best to worst.
type Status string

const (
	StatusClean     Status = "clean"
	StatusWatchList Status = "watch_list"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
)

var ladder = []Status{StatusClean, StatusWatchList, StatusSuspended, StatusBanned}

func (s Status) rank() int {
	for i, st := range ladder {
		if st == s {
			return i
		}
	}
	return 0
}

// WorseThan reports whether s is a stricter standing than other.
func (s Status) WorseThan(other Status) bool {
	return s.rank() > other.rank()
}

// StepToward moves one level from s toward target.
func (s Status) StepToward(target Status) Status {
	switch r, t := s.rank(), target.rank(); {
	case t > r:
		return ladder[r+1]
	case t < r:
		return ladder[r-1]
	}
	return s
}

// Next is the status a recompute lands on. A worse target is taken at once;
// a better target is only approached, one level per recompute, when recovery
// is allowed.
func Next(current, target Status, recovery bool) Status {
	switch {
	case target.WorseThan(current):
		return target
	case recovery && current.WorseThan(target):
		return current.StepToward(target)
	}
	return current
}

// Blocked reports whether payouts are refused outright.
func (s Status) Blocked() bool {
	return s == StatusSuspended || s == StatusBanned
}

const (
	watchListFrom = 30
	suspendedFrom = 60
	bannedFrom    = 80
	maxScore      = 100
)

// StatusForScore maps a score in [0,100] onto the status thresholds.
func StatusForScore(score float64) Status {
	switch {
	case score >= bannedFrom:
		return StatusBanned
	case score >= suspendedFrom:
		return StatusSuspended
	case score >= watchListFrom:
		return StatusWatchList
	}
	return StatusClean
}

// Weight is the contribution of a full-confidence signal of the given
// severity.
func Weight(sev fraud.Severity) float64 {
	switch sev {
	case fraud.SeverityLow:
		return 5
	case fraud.SeverityMedium:
		return 15
	case fraud.SeverityHigh:
		return 30
	case fraud.SeverityCritical:
		return 60
	}
	return 0
}

// Score sums weight x confidence over the active signals, capped at 100.
func Score(signals []fraud.Signal) (float64, int) {
	total, active := 0.0, 0
	for i := range signals {
		if !signals[i].Active() {
			continue
		}
		active++
		total += Weight(signals[i].Severity) * float64(signals[i].Confidence) / 100
	}
	return math.Min(maxScore, total), active
}

// State is the versioned, fully recomputed risk standing of one actor.
type State struct {
	ActorID            id.ActorID `json:"actor_id"`
	RiskScore          float64    `json:"risk_score"`
	Status             Status     `json:"account_status"`
	SignalCount        int        `json:"signal_count"`
	Version            int64      `json:"version"`
	LastRecalculatedAt time.Time  `json:"last_recalculated_at"`
}

// NewState is the lazily created clean state.
func NewState(actorID id.ActorID, at time.Time) State {
	return State{ActorID: actorID, Status: StatusClean, LastRecalculatedAt: at}
}

// FraudScore normalizes the risk score into [0,1] for attribution records.
func (s State) FraudScore() float64 {
	return s.RiskScore / maxScore
}
