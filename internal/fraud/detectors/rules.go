package detectors

import (
	"math"
	"sort"
	"time"

	attribution "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
)

// SelfReferral flags a user attributed to the actor that owns the user's own
// account.
func SelfReferral(snap Snapshot) Result {
	var out []models.Signal
	for _, rec := range snap.Records {
		account, ok := snap.AccountUsers[rec.ActorID]
		if !ok || account != rec.UserID {
			continue
		}
		out = append(out, newSignal(models.TypeSelfReferral, models.SeverityCritical, 100, rec.ActorID,
			models.Evidence{UserIDs: []id.UserID{rec.UserID}}, snap.Now, rec.UserID.String()))
	}
	return Result{Signals: sortSignals(out)}
}

// ClickFarm counts records first touched from one IP inside the window and
// emits one signal per offending IP for each actor the IP fed.
func ClickFarm(cfg Config, snap Snapshot) Result {
	since := snap.Now.Add(-cfg.ClickFarmWindow)
	byIP := map[string][]attribution.Record{}
	skipped := 0
	for _, rec := range snap.Records {
		at := rec.Provenance.FirstTouchAt
		if !at.After(since) || at.After(snap.Now) {
			continue
		}
		if rec.Provenance.IP == "" {
			skipped++
			continue
		}
		byIP[rec.Provenance.IP] = append(byIP[rec.Provenance.IP], rec)
	}

	// An actor already flagged for an IP inside the window is not flagged
	// again while the same burst slides through it, whatever the review.
	type farm struct {
		actor id.ActorID
		ip    string
	}
	flagged := map[farm]struct{}{}
	for _, sig := range snap.Flagged {
		if sig.Type == models.TypeClickFarm && sig.DetectedAt.After(since) {
			flagged[farm{sig.ActorID, sig.Evidence.IP}] = struct{}{}
		}
	}
	bucket := snap.Now.UTC().Truncate(cfg.ClickFarmWindow).Format(time.RFC3339)

	var out []models.Signal
	for ip, recs := range byIP {
		count := len(recs)
		if count <= cfg.ClickFarmThreshold {
			continue
		}
		users := make([]id.UserID, 0, count)
		actors := map[id.ActorID]struct{}{}
		for _, r := range recs {
			users = append(users, r.UserID)
			actors[r.ActorID] = struct{}{}
		}
		users = models.SortedUserIDs(users)
		confidence := excessConfidence(float64(count), float64(cfg.ClickFarmThreshold))
		for actorID := range actors {
			if _, ok := flagged[farm{actorID, ip}]; ok {
				continue
			}
			ev := models.Evidence{IP: ip, Count: count, UserIDs: users, Window: cfg.ClickFarmWindow.String()}
			out = append(out, newSignal(models.TypeClickFarm, models.SeverityHigh, confidence, actorID, ev, snap.Now, ip, bucket))
		}
	}
	return Result{Signals: sortSignals(out), Skipped: skipped}
}

// DuplicateDevice flags device fingerprints bound to two or more records.
func DuplicateDevice(snap Snapshot) Result {
	byDevice := map[string][]attribution.Record{}
	skipped := 0
	for _, rec := range snap.Records {
		if rec.Provenance.DeviceID == "" {
			skipped++
			continue
		}
		byDevice[rec.Provenance.DeviceID] = append(byDevice[rec.Provenance.DeviceID], rec)
	}

	var out []models.Signal
	for device, recs := range byDevice {
		if len(recs) < 2 {
			continue
		}
		users := make([]id.UserID, 0, len(recs))
		actors := map[id.ActorID]struct{}{}
		for _, r := range recs {
			users = append(users, r.UserID)
			actors[r.ActorID] = struct{}{}
		}
		users = models.SortedUserIDs(users)
		for actorID := range actors {
			ev := models.Evidence{DeviceID: device, Count: len(recs), UserIDs: users}
			out = append(out, newSignal(models.TypeDuplicateDevice, models.SeverityMedium, 25*len(recs), actorID, ev, snap.Now, device))
		}
	}
	return Result{Signals: sortSignals(out), Skipped: skipped}
}

// RapidInstallBurst compares each actor's installs in the last hour with the
// median hourly install count over the trailing baseline, floored so quiet
// actors need a large absolute spike.
func RapidInstallBurst(cfg Config, snap Snapshot) Result {
	hourStart := snap.Now.Add(-time.Hour)
	baselineHours := cfg.BurstBaselineDays * 24
	baselineStart := hourStart.Add(-time.Duration(baselineHours) * time.Hour)

	type actorCounts struct {
		lastHour int
		buckets  []int
		users    []id.UserID
	}
	perActor := map[id.ActorID]*actorCounts{}
	for _, rec := range snap.Records {
		at := rec.Provenance.FirstTouchAt
		if at.After(snap.Now) || !at.After(baselineStart) {
			continue
		}
		c := perActor[rec.ActorID]
		if c == nil {
			c = &actorCounts{buckets: make([]int, baselineHours)}
			perActor[rec.ActorID] = c
		}
		if at.After(hourStart) {
			c.lastHour++
			c.users = append(c.users, rec.UserID)
			continue
		}
		idx := int(at.Sub(baselineStart) / time.Hour)
		if idx >= 0 && idx < baselineHours {
			c.buckets[idx]++
		}
	}

	var out []models.Signal
	bucket := snap.Now.UTC().Truncate(time.Hour).Format(time.RFC3339)
	for actorID, c := range perActor {
		if c.lastHour == 0 {
			continue
		}
		baseline := median(c.buckets)
		threshold := math.Max(cfg.BurstMultiplier*baseline, float64(cfg.BurstFloorPerHour))
		rate := float64(c.lastHour)
		if rate <= threshold {
			continue
		}
		ev := models.Evidence{Rate: rate, Baseline: baseline, Count: c.lastHour, UserIDs: models.SortedUserIDs(c.users), Window: "1h"}
		out = append(out, newSignal(models.TypeRapidInstallBurst, models.SeverityHigh, excessConfidence(rate, threshold), actorID, ev, snap.Now, bucket))
	}
	return Result{Signals: sortSignals(out)}
}

func median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

// ConversionWithoutEngagement flags a first purchase with no session, chat or
// check-in between registration and the purchase.
func ConversionWithoutEngagement(cfg Config, snap Snapshot) Result {
	engagement := map[id.UserID][]time.Time{}
	for _, e := range snap.Events {
		if e.Kind.IsEngagement() {
			engagement[e.UserID] = append(engagement[e.UserID], e.OccurredAt)
		}
	}
	horizon := snap.Now.Add(-cfg.EngagementLookback)

	var out []models.Signal
	skipped := 0
	for _, rec := range snap.Records {
		if rec.FirstPurchaseAt == nil {
			continue
		}
		start := rec.Provenance.FirstTouchAt
		if rec.RegisteredAt != nil {
			start = *rec.RegisteredAt
		}
		end := *rec.FirstPurchaseAt
		if start.Before(horizon) {
			// The event log no longer covers the whole interval.
			skipped++
			continue
		}
		engaged := false
		for _, at := range engagement[rec.UserID] {
			if !at.Before(start) && !at.After(end) {
				engaged = true
				break
			}
		}
		if engaged {
			continue
		}
		ev := models.Evidence{UserIDs: []id.UserID{rec.UserID}}
		out = append(out, newSignal(models.TypeNoEngagement, models.SeverityMedium, 60, rec.ActorID, ev, snap.Now, rec.UserID.String()))
	}
	return Result{Signals: sortSignals(out), Skipped: skipped}
}

// GeoSpoof flags reported coordinates far from the IP's known location.
func GeoSpoof(cfg Config, snap Snapshot) Result {
	var out []models.Signal
	skipped := 0
	for _, rec := range snap.Records {
		p := rec.Provenance
		if !p.HasLocation() {
			continue
		}
		ip, ok := parseIP(p.IP)
		if !ok {
			skipped++
			continue
		}
		lat, lon, known := snap.Network.Locate(ip)
		if !known {
			continue
		}
		distance := haversineKm(*p.Latitude, *p.Longitude, lat, lon)
		if distance <= cfg.GeoSpoofDistanceKm {
			continue
		}
		ev := models.Evidence{IP: p.IP, DistanceKm: math.Round(distance), UserIDs: []id.UserID{rec.UserID}}
		out = append(out, newSignal(models.TypeGeoSpoof, models.SeverityMedium, 70, rec.ActorID, ev, snap.Now, rec.UserID.String()))
	}
	return Result{Signals: sortSignals(out), Skipped: skipped}
}

// VPNProxy flags first touches from a configured VPN or proxy range.
func VPNProxy(snap Snapshot) Result {
	var out []models.Signal
	skipped := 0
	for _, rec := range snap.Records {
		ip, ok := parseIP(rec.Provenance.IP)
		if !ok {
			skipped++
			continue
		}
		r, hit := snap.Network.VPNRange(ip)
		if !hit {
			continue
		}
		ev := models.Evidence{IP: rec.Provenance.IP, Range: r.String(), UserIDs: []id.UserID{rec.UserID}}
		out = append(out, newSignal(models.TypeVPNProxy, models.SeverityMedium, 80, rec.ActorID, ev, snap.Now, rec.UserID.String()))
	}
	return Result{Signals: sortSignals(out), Skipped: skipped}
}
