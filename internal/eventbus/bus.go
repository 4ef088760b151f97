// Package eventbus is an in-process publish/subscribe bus over named topics.
//
// Delivery is at-most-once and fire-and-forget: subscribers receive only
// events published while subscribed, there is no replay, no acknowledgment,
// and no ordering guarantee across topics. Publish never returns an error to
// the caller — a dropped event degrades a read model or a metric, while a
// failed send does not, so publishing must never affect the operation that
// triggered it.
package eventbus

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Handler receives the raw JSON payload of one event.
type Handler func(payload []byte)

// subscriberBuffer bounds how far a slow subscriber may lag before events
// are dropped.
const subscriberBuffer = 256

type subscriber struct {
	ch      chan []byte
	handler Handler
}

// Bus fans published events out to per-topic subscribers, each running in
// its own goroutine.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscriber
	wg     sync.WaitGroup
	closed bool
	logger *zap.Logger
}

func New(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]*subscriber),
		logger: logger,
	}
}

// Subscribe registers a handler for one topic. The handler runs on a
// dedicated goroutine, one event at a time, until Close.
func (b *Bus) Subscribe(topic string, handler Handler) {
	s := &subscriber{
		ch:      make(chan []byte, subscriberBuffer),
		handler: handler,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for payload := range s.ch {
			s.handler(payload)
		}
	}()
}

// Publish marshals the payload to JSON and delivers it to every current
// subscriber of the topic. Best effort: marshal failures and full subscriber
// buffers are logged and swallowed.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("event marshal failed, dropping",
			zap.String("topic", topic), zap.Error(err))
		return
	}

	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.ch <- data:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				zap.String("topic", topic))
		}
	}
}

// Close stops all subscriber goroutines after they drain their buffers.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, s := range subs {
			close(s.ch)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
}
