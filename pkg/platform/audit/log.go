package audit

import (
	"context"
	"log/slog"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/requestcontext"
)

// Emitter is the narrow publisher port services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Log writes an audit log line and emits the event. Emission failures are
// logged, never returned: audit must not fail the business operation.
func Log(ctx context.Context, logger *slog.Logger, emitter Emitter, event Event, attrs ...any) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Operator == "" {
		event.Operator = requestcontext.AdminSubject(ctx)
	}
	if logger != nil {
		args := append(attrs,
			"event", event.Action,
			"log_type", "audit",
			"actor_id", event.ActorID.String(),
			"subject", event.Subject,
		)
		if event.RequestID != "" {
			args = append(args, "request_id", event.RequestID)
		}
		if event.Decision != "" {
			args = append(args, "decision", event.Decision)
		}
		if event.Reason != "" {
			args = append(args, "reason", event.Reason)
		}
		logger.InfoContext(ctx, event.Action, args...)
	}
	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
