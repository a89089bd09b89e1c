// Package events delivers core notifications to downstream consumers.
// Delivery is fire-and-forget: the engines never block on a slow consumer
// and never retry a failed delivery.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"agent-launchpad/internal/domain"
)

// Publisher delivers events without blocking the caller.
type Publisher interface {
	Publish(e domain.Event)
}

// NopPublisher discards all events.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(domain.Event) {}

// Sink receives events from an AsyncPublisher's worker.
type Sink interface {
	Deliver(ctx context.Context, e domain.Event) error
}

// AsyncPublisher decouples event producers from a Sink through a bounded
// buffer. When the buffer is full the event is dropped, never queued
// unboundedly and never blocking the producer.
type AsyncPublisher struct {
	sink    Sink
	buf     chan domain.Event
	timeout time.Duration
	logger  *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsyncPublisher creates a publisher with the given buffer size and
// per-delivery timeout, and starts its worker.
func NewAsyncPublisher(sink Sink, bufferSize int, timeout time.Duration, logger *zap.Logger) *AsyncPublisher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &AsyncPublisher{
		sink:    sink,
		buf:     make(chan domain.Event, bufferSize),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues the event, dropping it when the buffer is full.
func (p *AsyncPublisher) Publish(e domain.Event) {
	select {
	case p.buf <- e:
	default:
		p.logger.Warn("event buffer full, dropping event", zap.String("type", e.Type))
	}
}

// Close stops the worker after draining buffered events.
func (p *AsyncPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.buf)
		<-p.done
	})
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for e := range p.buf {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.sink.Deliver(ctx, e); err != nil {
			p.logger.Warn("event delivery failed",
				zap.String("type", e.Type), zap.Error(err))
		}
		cancel()
	}
}

var (
	_ Publisher = (*AsyncPublisher)(nil)
	_ Publisher = NopPublisher{}
)
