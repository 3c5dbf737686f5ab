package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	fraud "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/models"
)

func TestStatusForScore(t *testing.T) {
	cases := map[float64]Status{
		0:     StatusClean,
		29.99: StatusClean,
		30:    StatusWatchList,
		59.9:  StatusWatchList,
		60:    StatusSuspended,
		79.9:  StatusSuspended,
		80:    StatusBanned,
		100:   StatusBanned,
	}
	for score, want := range cases {
		assert.Equal(t, want, StatusForScore(score), "score %v", score)
	}
}

func TestStepToward(t *testing.T) {
	assert.Equal(t, StatusSuspended, StatusBanned.StepToward(StatusClean))
	assert.Equal(t, StatusWatchList, StatusClean.StepToward(StatusBanned))
	assert.Equal(t, StatusClean, StatusClean.StepToward(StatusClean))
	assert.True(t, StatusBanned.WorseThan(StatusSuspended))
	assert.False(t, StatusClean.WorseThan(StatusClean))
}

func TestScore(t *testing.T) {
	overturned := &fraud.Review{Decision: fraud.DecisionOverturned}
	confirmed := &fraud.Review{Decision: fraud.DecisionConfirmed}
	signals := []fraud.Signal{
		{Severity: fraud.SeverityCritical, Confidence: 100},
		{Severity: fraud.SeverityMedium, Confidence: 60, Review: confirmed},
		{Severity: fraud.SeverityHigh, Confidence: 100, Review: overturned},
	}
	score, active := Score(signals)
	assert.InDelta(t, 69.0, score, 1e-9)
	assert.Equal(t, 2, active)

	capped, _ := Score([]fraud.Signal{
		{Severity: fraud.SeverityCritical, Confidence: 100},
		{Severity: fraud.SeverityCritical, Confidence: 100},
	})
	assert.InDelta(t, 100.0, capped, 1e-9)
}

func TestNext(t *testing.T) {
	cases := []struct {
		name     string
		current  Status
		target   Status
		recovery bool
		want     Status
	}{
		{"worse target jumps", StatusClean, StatusBanned, false, StatusBanned},
		{"better target holds", StatusSuspended, StatusClean, false, StatusSuspended},
		{"recovery steps one level", StatusSuspended, StatusClean, true, StatusWatchList},
		{"recovery to clean", StatusWatchList, StatusClean, true, StatusClean},
		{"recovery never worsens past target", StatusClean, StatusWatchList, true, StatusWatchList},
		{"same target", StatusWatchList, StatusWatchList, true, StatusWatchList},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Next(tc.current, tc.target, tc.recovery))
		})
	}
}
