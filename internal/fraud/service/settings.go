package service

import (
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/detectors"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/config"
)

// OptionsFromConfig maps detector settings onto service options. Zero values
// keep the defaults. The network tables are only installed when at least one
// VPN range or IP location is configured.
func OptionsFromConfig(cfg config.Detectors) ([]Option, error) {
	dc := detectors.DefaultConfig()
	setInt(&dc.ClickFarmThreshold, cfg.ClickFarmThreshold)
	setDuration(&dc.ClickFarmWindow, cfg.ClickFarmWindow)
	if cfg.BurstMultiplier > 0 {
		dc.BurstMultiplier = cfg.BurstMultiplier
	}
	setInt(&dc.BurstFloorPerHour, cfg.BurstFloorPerHour)
	setInt(&dc.BurstBaselineDays, cfg.BurstBaselineDays)
	setInt(&dc.RingMinSharedLinks, cfg.RingMinSharedLinks)
	setInt(&dc.RingMinSize, cfg.RingMinSize)
	if cfg.GeoSpoofDistanceKm > 0 {
		dc.GeoSpoofDistanceKm = cfg.GeoSpoofDistanceKm
	}
	setDuration(&dc.EngagementLookback, cfg.EngagementLookback)

	w := DefaultWindows()
	setDuration(&w.Records, cfg.SweepRecordLookback)
	setDuration(&w.Ring, cfg.RingLookback)
	setDuration(&w.Engagement, cfg.EngagementLookback)
	setDuration(&w.VerificationHold, cfg.VerificationHold)
	if w.SignalHorizon < w.Ring {
		w.SignalHorizon = w.Ring
	}

	opts := []Option{WithDetectorConfig(dc), WithWindows(w)}
	if len(cfg.VPNRanges) > 0 || len(cfg.IPLocations) > 0 {
		network, err := detectors.ParseNetwork(cfg.VPNRanges, cfg.IPLocations)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithNetwork(network))
	}
	return opts, nil
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration[T ~int64](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}
