package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/sugarshin/frrr-boilerplate/internal/events"
	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
)

// Record appends evt to store with its JSON encoding as the payload.
func Record(ctx context.Context, store Store, evt events.RunEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %w", ErrEventAppendFailed, evt.EventType(), err)
	}
	meta := map[string]string{"target": gjson.GetBytes(payload, "target").String()}
	if task := gjson.GetBytes(payload, "task"); task.Exists() {
		meta["task"] = task.String()
	}
	return store.Append(ctx, evt.EventRunID(), evt.EventType(), evt.EventTime(), payload, meta)
}

// Recorder copies every run event published on a bus into a store.
type Recorder struct {
	store Store
	ch    <-chan events.RunEvent
	unsub func()
	done  chan struct{}
}

// Attach subscribes to bus and starts recording.
func Attach(bus *events.Bus, store Store) *Recorder {
	ch, unsub := events.Subscribe[events.RunEvent](bus, 64)
	r := &Recorder{store: store, ch: ch, unsub: unsub, done: make(chan struct{})}
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer close(r.done)
	for evt := range r.ch {
		if err := Record(context.Background(), r.store, evt); err != nil {
			slog.Warn("Failed to record run event",
				logfields.RunID(evt.EventRunID()),
				slog.String("event_type", evt.EventType()),
				logfields.Error(err))
		}
	}
}

// Close unsubscribes and waits until every received event is stored.
func (r *Recorder) Close() {
	r.unsub()
	<-r.done
}
