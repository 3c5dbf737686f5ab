// Package detectors holds the rule-based abuse classifiers. Every detector is
// a pure function of a Snapshot: no clocks, no I/O, no shared state, so the
// sweeper can run them concurrently and tests can replay any scenario.
package detectors

import (
	"sort"
	"time"

	attribution "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
)

type Config struct {
	ClickFarmThreshold int
	ClickFarmWindow    time.Duration
	BurstMultiplier    float64
	BurstFloorPerHour  int
	BurstBaselineDays  int
	RingMinSharedLinks int
	RingMinSize        int
	GeoSpoofDistanceKm float64
	EngagementLookback time.Duration
}

func DefaultConfig() Config {
	return Config{
		ClickFarmThreshold: 6,
		ClickFarmWindow:    24 * time.Hour,
		BurstMultiplier:    3,
		BurstFloorPerHour:  100,
		BurstBaselineDays:  7,
		RingMinSharedLinks: 2,
		RingMinSize:        3,
		GeoSpoofDistanceKm: 500,
		EngagementLookback: 30 * 24 * time.Hour,
	}
}

// Snapshot is the read-only input to a sweep.
type Snapshot struct {
	Now     time.Time
	Records []attribution.Record
	Events  []attribution.Event
	// AccountUsers maps an actor to the actor's own user account.
	AccountUsers map[id.ActorID]id.UserID
	// Network is optional; geo-spoof and vpn-proxy skip every record without it.
	Network *Network
	// Flagged holds stored signals detected within the click-farm window.
	Flagged []models.Signal
}

// Result is the output of one detector run. Skipped counts records the
// detector could not evaluate (missing IP, device or location).
type Result struct {
	Signals []models.Signal
	Skipped int
}

type Detector struct {
	Type   models.SignalType
	Detect func(Snapshot) Result
}

// Fast returns the single-pass detectors run on the near-real-time cadence.
func Fast(cfg Config) []Detector {
	return []Detector{
		{Type: models.TypeSelfReferral, Detect: SelfReferral},
		{Type: models.TypeClickFarm, Detect: func(s Snapshot) Result { return ClickFarm(cfg, s) }},
		{Type: models.TypeDuplicateDevice, Detect: DuplicateDevice},
		{Type: models.TypeRapidInstallBurst, Detect: func(s Snapshot) Result { return RapidInstallBurst(cfg, s) }},
		{Type: models.TypeNoEngagement, Detect: func(s Snapshot) Result { return ConversionWithoutEngagement(cfg, s) }},
		{Type: models.TypeGeoSpoof, Detect: func(s Snapshot) Result { return GeoSpoof(cfg, s) }},
		{Type: models.TypeVPNProxy, Detect: VPNProxy},
	}
}

// Ring returns the graph detector run on the slow cadence.
func Ring(cfg Config) Detector {
	return Detector{Type: models.TypeCoordinatedRing, Detect: func(s Snapshot) Result { return CoordinatedRing(cfg, s) }}
}

func newSignal(t models.SignalType, sev models.Severity, confidence int, actorID id.ActorID, ev models.Evidence, now time.Time, fpParts ...string) models.Signal {
	return models.Signal{
		Type:        t,
		Severity:    sev,
		Confidence:  clampConfidence(confidence),
		ActorID:     actorID,
		Evidence:    ev,
		Fingerprint: models.Fingerprint(t, actorID, fpParts...),
		DetectedAt:  now,
	}
}

func clampConfidence(c int) int {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}

// excessConfidence scales from 50 at the threshold to 100 at twice the
// threshold.
func excessConfidence(observed, threshold float64) int {
	if threshold <= 0 {
		return 100
	}
	return clampConfidence(50 + int(50*(observed-threshold)/threshold))
}

func sortSignals(signals []models.Signal) []models.Signal {
	sort.Slice(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if a.ActorID != b.ActorID {
			return a.ActorID.String() < b.ActorID.String()
		}
		return a.Fingerprint < b.Fingerprint
	})
	return signals
}
