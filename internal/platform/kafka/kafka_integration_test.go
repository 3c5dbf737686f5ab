//go:build integration

package kafka_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/kafka"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/kafka/consumer"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/kafka/producer"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/testutil/containers"
)

type KafkaSuite struct {
	suite.Suite
	broker string
	logger *slog.Logger
}

func TestKafkaSuite(t *testing.T) {
	suite.Run(t, new(KafkaSuite))
}

func (s *KafkaSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// collector records handled values and fails the first failFirst calls.
type collector struct {
	mu        sync.Mutex
	values    []string
	calls     int
	failFirst int
}

func (c *collector) Handle(_ context.Context, msg *consumer.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failFirst {
		return errors.New("transient")
	}
	c.values = append(c.values, string(msg.Value))
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.values...)
}

func (s *KafkaSuite) run(topic string, handler consumer.Handler, publish func(*producer.Producer)) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	s.T().Cleanup(cancel)
	s.Require().NoError(kafka.EnsureTopics(ctx, []string{s.broker}, 1, 1, topic))
	// Idempotent on an existing topic.
	s.Require().NoError(kafka.EnsureTopics(ctx, []string{s.broker}, 1, 1, topic))

	prod, err := producer.New([]string{s.broker})
	s.Require().NoError(err)
	s.T().Cleanup(prod.Close)
	publish(prod)

	cons, err := consumer.New(consumer.Config{
		Brokers: []string{s.broker},
		Group:   "test-" + uuid.NewString(),
		Topics:  []string{topic},
	}, handler, s.logger)
	s.Require().NoError(err)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- cons.Run(runCtx) }()
	s.T().Cleanup(func() {
		stop()
		<-done
		cons.Close()
	})
}

func (s *KafkaSuite) TestRoundTrip() {
	topic := "raw-events-" + uuid.NewString()
	c := &collector{}
	s.run(topic, c, func(p *producer.Producer) {
		for i := range 3 {
			s.Require().NoError(p.Publish(context.Background(), topic, []byte("user"), []byte(fmt.Sprintf("event-%d", i))))
		}
	})

	s.Eventually(func() bool { return len(c.snapshot()) == 3 }, 30*time.Second, 100*time.Millisecond)
	s.Equal([]string{"event-0", "event-1", "event-2"}, c.snapshot())
}

func (s *KafkaSuite) TestHandlerErrorRedelivers() {
	topic := "raw-events-" + uuid.NewString()
	c := &collector{failFirst: 1}
	s.run(topic, c, func(p *producer.Producer) {
		s.Require().NoError(p.Publish(context.Background(), topic, []byte("user"), []byte("only")))
	})

	s.Eventually(func() bool { return len(c.snapshot()) == 1 }, 30*time.Second, 100*time.Millisecond)
	s.Equal([]string{"only"}, c.snapshot())
}
