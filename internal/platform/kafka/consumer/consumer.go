// Package consumer runs a franz-go consumer group loop with manual commits.
// Only records the handler accepted are marked and committed, giving
// at-least-once delivery.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-neutral view of a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes one message. Returning an error stops the batch from
// being committed so the records are redelivered.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

const retryDelay = time.Second

type Config struct {
	Brokers []string
	Group   string
	Topics  []string
}

type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.AutoCommitMarks(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer client: %w", err)
	}
	return &Consumer{client: cl, handler: handler, logger: logger}, nil
}

// Run polls until ctx is cancelled. A handler error rewinds that partition to
// the failed record and pauses for retryDelay; later records in the partition
// wait until it succeeds.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		failed := false
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			for _, r := range p.Records {
				if err := c.handler.Handle(ctx, toMessage(r)); err != nil {
					failed = true
					c.logger.ErrorContext(ctx, "kafka handler failed",
						"topic", r.Topic,
						"partition", r.Partition,
						"offset", r.Offset,
						"error", err,
					)
					c.client.SetOffsets(map[string]map[int32]kgo.EpochOffset{
						r.Topic: {r.Partition: {Epoch: r.LeaderEpoch, Offset: r.Offset}},
					})
					return
				}
				c.client.MarkCommitRecords(r)
			}
		})
		if err := c.client.CommitMarkedOffsets(ctx); err != nil {
			c.logger.ErrorContext(ctx, "kafka commit failed", "error", err)
		}
		if failed {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
}

func toMessage(r *kgo.Record) *Message {
	return &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Timestamp: r.Timestamp,
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}
