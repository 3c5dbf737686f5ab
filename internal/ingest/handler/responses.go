package handler

import "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/service"

// TrackResponse is returned from POST /attribution/track.
type TrackResponse struct {
	AttributionID string `json:"attribution_id"`
	ActorID       string `json:"actor_id"`
	Created       bool   `json:"created"`
}

func FromResult(r service.TrackResult) TrackResponse {
	return TrackResponse{
		AttributionID: r.AttributionID.String(),
		ActorID:       r.ActorID.String(),
		Created:       r.Created,
	}
}
