// Package consumer feeds connector events from Kafka into the ingest
// service.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/models"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/service"
	kafkaconsumer "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/kafka/consumer"
	dErrors "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain-errors"
)

// offsetNamespace seeds event ids derived from topic coordinates so a
// redelivered record maps to the same attribution event.
var offsetNamespace = uuid.MustParse("6f1c1d2e-8a4b-4c55-9a0e-3b2f7d1e9c40")

type Tracker interface {
	TrackRaw(ctx context.Context, raw models.RawEvent) (service.TrackResult, error)
}

type Handler struct {
	tracker Tracker
	logger  *slog.Logger
}

func NewHandler(tracker Tracker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{tracker: tracker, logger: logger}
}

var _ kafkaconsumer.Handler = (*Handler)(nil)

// Handle drops malformed and invalid events after logging them. Any other
// failure is returned so the record is redelivered.
func (h *Handler) Handle(ctx context.Context, msg *kafkaconsumer.Message) error {
	var raw models.RawEvent
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		h.logger.WarnContext(ctx, "dropping undecodable ingest event",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if raw.EventID == "" {
		raw.EventID = EventIDFor(msg).String()
	}

	result, err := h.tracker.TrackRaw(ctx, raw)
	if err != nil {
		switch dErrors.CodeOf(err) {
		case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
			h.logger.WarnContext(ctx, "dropping invalid ingest event",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"type", raw.Type,
				"error", err,
			)
			return nil
		}
		return fmt.Errorf("track event at %s/%d/%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}
	h.logger.DebugContext(ctx, "ingest event applied",
		"type", raw.Type,
		"attribution_id", result.AttributionID.String(),
		"created", result.Created,
	)
	return nil
}

// EventIDFor derives a stable event id from the record coordinates.
func EventIDFor(msg *kafkaconsumer.Message) uuid.UUID {
	return uuid.NewSHA1(offsetNamespace, fmt.Appendf(nil, "%s/%d/%d", msg.Topic, msg.Partition, msg.Offset))
}
