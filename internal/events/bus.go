// Package events carries run and task lifecycle events from the orchestrator
// to in-process consumers such as the run history and the NATS notifier.
// Nothing here is durable; durable storage is internal/eventstore.
package events

import (
	"context"
	"sync"

	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
)

// Bus delivers every published event to the subscribers whose type it matches.
// Publish blocks until each matching subscriber accepted the event or ctx ends.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

type subscriber struct {
	deliver func(ctx context.Context, evt RunEvent) error
	close   func()
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// Subscribe registers for events of type T, which is either RunEvent itself or
// one concrete event type. The returned func unsubscribes and closes the channel.
func Subscribe[T RunEvent](b *Bus, buffer int) (<-chan T, func()) {
	ch := make(chan T, buffer)
	// chMu orders closing after any in-flight delivery.
	var chMu sync.RWMutex
	chClosed := false
	closeCh := func() {
		chMu.Lock()
		defer chMu.Unlock()
		if !chClosed {
			chClosed = true
			close(ch)
		}
	}

	sub := &subscriber{
		deliver: func(ctx context.Context, evt RunEvent) error {
			v, ok := evt.(T)
			if !ok {
				return nil
			}
			chMu.RLock()
			defer chMu.RUnlock()
			if chClosed {
				return nil
			}
			select {
			case ch <- v:
				return nil
			case <-ctx.Done():
				return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "event publish canceled").
					WithContext("event_type", evt.EventType()).
					Build()
			}
		},
		close: closeCh,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		closeCh()
		return ch, func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = sub

	var unsubOnce sync.Once
	return ch, func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			closeCh()
		})
	}
}

// Publish delivers evt to every matching subscriber.
func (b *Bus) Publish(ctx context.Context, evt RunEvent) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ferrors.RuntimeError("event bus is closed").Build()
	}
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.deliver(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every subscription channel; later Publish calls fail.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*subscriber)
	b.mu.Unlock()
	for _, s := range subs {
		s.close()
	}
}
