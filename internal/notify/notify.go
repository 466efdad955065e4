// Package notify publishes run outcomes to NATS.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tidwall/sjson"

	"github.com/sugarshin/frrr-boilerplate/internal/config"
	"github.com/sugarshin/frrr-boilerplate/internal/events"
	ferrors "github.com/sugarshin/frrr-boilerplate/internal/foundation/errors"
	"github.com/sugarshin/frrr-boilerplate/internal/logfields"
)

// Publisher sends one message. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials the NATS server named in cfg.
func Connect(cfg config.NotifyConfig) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("assetpipe"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", cfg.NATSURL).
			Build()
	}
	slog.Info("NATS notifier connected", logfields.URL(cfg.NATSURL), slog.String("subject", cfg.Subject))
	return conn, nil
}

// Encode renders a run outcome as the published JSON message.
func Encode(evt events.RunFinished) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal run outcome: %w", err)
	}
	data, err = sjson.SetBytes(data, "event", evt.EventType())
	if err != nil {
		return nil, fmt.Errorf("tag run outcome: %w", err)
	}
	return sjson.SetBytes(data, "duration_ms", evt.Duration.Milliseconds())
}

// Notifier forwards RunFinished events from a bus to a publisher.
type Notifier struct {
	pub     Publisher
	subject string
	ch      <-chan events.RunFinished
	unsub   func()
	done    chan struct{}
}

// Attach subscribes to bus and starts publishing on subject.
func Attach(bus *events.Bus, pub Publisher, subject string) *Notifier {
	ch, unsub := events.Subscribe[events.RunFinished](bus, 16)
	n := &Notifier{pub: pub, subject: subject, ch: ch, unsub: unsub, done: make(chan struct{})}
	go n.loop()
	return n
}

func (n *Notifier) loop() {
	defer close(n.done)
	for evt := range n.ch {
		data, err := Encode(evt)
		if err == nil {
			err = n.pub.Publish(n.subject, data)
		}
		if err != nil {
			slog.Warn("Failed to publish run outcome", logfields.RunID(evt.RunID), logfields.Target(evt.Target), logfields.Error(err))
			continue
		}
		slog.Debug("Published run outcome", logfields.RunID(evt.RunID), slog.String("subject", n.subject))
	}
}

// Close unsubscribes and waits for pending messages to be handed to the publisher.
func (n *Notifier) Close() {
	n.unsub()
	<-n.done
}
