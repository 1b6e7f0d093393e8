package bus

import (
	"log/slog"
	"sync"
	"time"

	"evopanel/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based event bus for in-process fan-out.
// Delivery is at-most-once: subscribers registered at dispatch time receive
// the event, nobody else ever will.
type InMemoryBus struct {
	events   chan domain.InboundEvent
	handlers map[string]func(domain.InboundEvent)
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
	done     chan struct{}
}

// New creates a new InMemoryBus with the given buffer size and starts its
// dispatch loop. Close stops the loop.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	b := &InMemoryBus{
		events:   make(chan domain.InboundEvent, bufferSize),
		handlers: make(map[string]func(domain.InboundEvent)),
		logger:   logger,
		done:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Blocks up to 10 seconds if the bus is full instead of dropping.
func (b *InMemoryBus) Publish(evt domain.InboundEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.events <- evt:
	default:
		// Bus full — wait with timeout instead of dropping
		b.logger.Warn("event bus full, waiting...", "event", evt.Kind)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.events <- evt:
			b.logger.Info("event delivered after wait", "event", evt.Kind)
		case <-timer.C:
			b.logger.Error("event dropped: bus full for 10s", "event", evt.Kind)
		}
	}
}

// Subscribe registers a named handler. Registering the same name again
// replaces the previous handler.
func (b *InMemoryBus) Subscribe(name string, handler func(domain.InboundEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = handler
}

// dispatch delivers events to every handler in server-receipt order.
func (b *InMemoryBus) dispatch() {
	defer close(b.done)
	for evt := range b.events {
		b.mu.RLock()
		handlers := make([]func(domain.InboundEvent), 0, len(b.handlers))
		for _, h := range b.handlers {
			handlers = append(handlers, h)
		}
		b.mu.RUnlock()

		for _, h := range handlers {
			h(evt)
		}
	}
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	b.mu.Unlock()

	// Wait for the dispatch loop to drain.
	<-b.done
}
