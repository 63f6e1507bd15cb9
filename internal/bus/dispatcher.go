package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/metrics"
)

// HandlerFunc return nil hanya kalau side effect sudah commit; error memicu
// retry lalu dead-letter.
type HandlerFunc func(ctx context.Context, env events.Envelope) error

// Dispatcher: map event-name -> handler per queue. Event tanpa handler di-log
// lalu di-ack (drop), bukan retry.
type Dispatcher struct {
	queue    string
	log      *zap.Logger
	handlers map[string]HandlerFunc
}

func NewDispatcher(queue string, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		log:      log,
		handlers: make(map[string]HandlerFunc),
	}
}

func (d *Dispatcher) Handle(event string, h HandlerFunc) {
	if _, dup := d.handlers[event]; dup {
		panic(fmt.Sprintf("bus: duplicate handler for %s on %s", event, d.queue))
	}
	d.handlers[event] = h
}

func (d *Dispatcher) Queue() string { return d.queue }

// Dispatch decode envelope dan route ke handler. Return nil berarti caller
// boleh commit offset (termasuk kasus drop).
func (d *Dispatcher) Dispatch(ctx context.Context, value []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		// Payload rusak tidak akan membaik dengan retry.
		d.log.Error("malformed envelope, dropping",
			zap.String("queue", d.queue), zap.Error(err))
		metrics.EventsConsumed.WithLabelValues(d.queue, "malformed", "dropped").Inc()
		return nil
	}

	h, ok := d.handlers[env.Event]
	if !ok {
		d.log.Warn("unknown event, dropping",
			zap.String("queue", d.queue), zap.String("event", env.Event))
		metrics.EventsConsumed.WithLabelValues(d.queue, env.Event, "dropped").Inc()
		return nil
	}

	start := time.Now()
	err := h(ctx, env)
	metrics.HandlerDuration.WithLabelValues(d.queue, env.Event).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EventsConsumed.WithLabelValues(d.queue, env.Event, "error").Inc()
		return fmt.Errorf("handle %s: %w", env.Event, err)
	}
	metrics.EventsConsumed.WithLabelValues(d.queue, env.Event, "ok").Inc()
	return nil
}
