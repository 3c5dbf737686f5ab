// Package publisher fronts an audit.Store with optional asynchronous
// buffering. In sync mode Emit returns the store error; in async mode Emit
// enqueues and a single goroutine drains the buffer until Close.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/domain"
	audit "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit"
)

var ErrBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	buffer chan audit.Event
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with a buffer of n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event, stamping it with the current time when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return p.store.Append(ctx, event)
	}
	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"actor_id", event.ActorID,
		)
		return ErrBufferFull
	}
}

func (p *Publisher) List(ctx context.Context, actorID id.ActorID) ([]audit.Event, error) {
	return p.store.ListByActor(ctx, actorID)
}

// Close stops accepting buffered events and drains what is queued.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.buffer != nil {
		close(p.buffer)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"actor_id", event.ActorID,
				"error", err,
			)
		}
	}
}
