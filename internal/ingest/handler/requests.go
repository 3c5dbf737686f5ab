package handler

import (
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/models"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
)

// TrackRequest is the HTTP body for POST /attribution/track. It carries the
// connector schema unchanged.
type TrackRequest struct {
	models.RawEvent

	event models.Event
}

// Validate normalizes the payload.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *TrackRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	event, err := models.Normalize(r.RawEvent)
	if err != nil {
		return err
	}
	r.event = event
	return nil
}

func (r *TrackRequest) Event() models.Event {
	return r.event
}
