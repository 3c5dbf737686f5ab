// Package worker relays audit events from the Postgres outbox to Kafka.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit/store/postgres"
	txcontext "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/tx"
)

const (
	DefaultTopic = "attribution.audit-events"
	defaultBatch = 100
)

// Outbox is the relay's view of the outbox table.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer publishes one record. Implementations must be synchronous so a
// row is only marked once the broker acknowledged it.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay drains the outbox in batches, each inside one transaction so
// concurrent relays skip each other's locked rows.
type Relay struct {
	outbox   Outbox
	producer Producer
	runner   txcontext.Runner
	topic    string
	batch    int
	logger   *slog.Logger
}

type Option func(*Relay)

func WithTopic(topic string) Option {
	return func(r *Relay) {
		if topic != "" {
			r.topic = topic
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func NewRelay(outbox Outbox, producer Producer, runner txcontext.Runner, opts ...Option) *Relay {
	r := &Relay{
		outbox:   outbox,
		producer: producer,
		runner:   runner,
		topic:    DefaultTopic,
		batch:    defaultBatch,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce publishes one batch and returns how many entries were relayed. A
// publish failure rolls back the batch; entries already sent are sent again
// on the next run, keyed by aggregate so consumers can dedupe on the event id.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	var published int
	err := r.runner.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.FetchUnpublished(ctx, r.batch)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			if err := r.producer.Publish(ctx, r.topic, []byte(e.AggregateID), e.Payload); err != nil {
				return fmt.Errorf("publish outbox entry %s: %w", e.ID, err)
			}
			ids = append(ids, e.ID)
		}
		if err := r.outbox.MarkPublished(ctx, ids); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "outbox relay failed", "error", err)
		return 0, err
	}
	return published, nil
}
