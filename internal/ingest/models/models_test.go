package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attribution "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/models"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
)

func raw(kind string) RawEvent {
	return RawEvent{
		Type:      kind,
		UserID:    uuid.NewString(),
		ActorID:   uuid.NewString(),
		DeviceID:  " device-1 ",
		IP:        "::ffff:1.2.3.4",
		Timestamp: time.Date(2026, 4, 1, 9, 0, 0, 0, time.FixedZone("x", 3600)),
	}
}

func TestNormalizeTouch(t *testing.T) {
	t.Run("install with actor defaults to link", func(t *testing.T) {
		ev, err := Normalize(raw("install"))
		require.NoError(t, err)
		touch, ok := ev.(Touch)
		require.True(t, ok)
		assert.Equal(t, attribution.MethodLink, touch.Method)
		assert.Equal(t, "1.2.3.4", touch.IP)
		assert.Equal(t, "device-1", touch.DeviceID)
		assert.Equal(t, time.UTC, touch.At.Location())
	})

	t.Run("referral code defaults to code", func(t *testing.T) {
		r := raw("install")
		r.ActorID, r.ReferralCode = "", "CREATOR-9"
		ev, err := Normalize(r)
		require.NoError(t, err)
		assert.Equal(t, attribution.MethodCode, ev.(Touch).Method)
	})

	t.Run("check-in defaults to event-checkin", func(t *testing.T) {
		ev, err := Normalize(raw("check_in"))
		require.NoError(t, err)
		assert.Equal(t, attribution.MethodEventCheckIn, ev.(Touch).Method)
	})

	t.Run("geo", func(t *testing.T) {
		lat, lon := 52.52, 13.40
		r := raw("install")
		r.Geo = &Geo{Lat: &lat, Lon: &lon}
		ev, err := Normalize(r)
		require.NoError(t, err)
		assert.InDelta(t, lat, *ev.(Touch).Latitude, 1e-9)

		bad := 120.0
		r.Geo = &Geo{Lat: &bad, Lon: &lon}
		_, err = Normalize(r)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]func(r *RawEvent){
		"missing user":      func(r *RawEvent) { r.UserID = "" },
		"bad user":          func(r *RawEvent) { r.UserID = "not-a-uuid" },
		"missing timestamp": func(r *RawEvent) { r.Timestamp = time.Time{} },
		"bad ip":            func(r *RawEvent) { r.IP = "999.1.1.1" },
		"no referrer":       func(r *RawEvent) { r.ActorID = "" },
		"unknown method":    func(r *RawEvent) { r.Method = "billboard" },
		"unknown type":      func(r *RawEvent) { r.Type = "uninstall" },
		"missing type":      func(r *RawEvent) { r.Type = "" },
		"bad event id":      func(r *RawEvent) { r.EventID = "nope" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := raw("install")
			mutate(&r)
			_, err := Normalize(r)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}

func TestNormalizeFunnelEvents(t *testing.T) {
	ev, err := Normalize(raw("kyc_completed"))
	require.NoError(t, err)
	assert.Equal(t, attribution.StageKYCCompleted, ev.(Milestone).Stage)

	r := raw("purchase")
	_, err = Normalize(r)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "purchase needs an amount")

	amount := decimal.RequireFromString("9.99")
	r.Amount = &amount
	ev, err = Normalize(r)
	require.NoError(t, err)
	p := ev.(Purchase)
	assert.False(t, p.First)
	assert.True(t, amount.Equal(p.Amount))

	ev, err = Normalize(raw("first_purchase"))
	require.NoError(t, err)
	assert.True(t, ev.(Purchase).First)

	_, err = Normalize(raw("subscription"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	premium := true
	r = raw("subscription")
	r.Premium = &premium
	ev, err = Normalize(r)
	require.NoError(t, err)
	assert.True(t, ev.(Subscription).Premium)
}
