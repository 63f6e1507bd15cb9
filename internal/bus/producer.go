package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/metrics"
)

// Publisher adalah satu-satunya cara service publish event. Handler terima
// interface ini supaya bisa dites tanpa broker.
type Publisher interface {
	Publish(ctx context.Context, queue, event, key string, data any) error
}

// Producer: satu writer untuk semua queue (topic per message), inbox goroutine
// buat flush & close rapi. Error publish di-log, tidak dipropagate balik ke
// handler; downstream wajib idempotent jadi replay aman buat yang hilang.
type Producer struct {
	w         *kafka.Writer
	name      string
	log       *zap.Logger
	inbox     chan kafka.Message
	closeCh   chan struct{}
	closeOnce sync.Once
}

func NewProducer(brokers []string, serviceName string, buf int, log *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		name:    serviceName,
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				p.closeInbox()
				for m := range p.inbox {
					p.write(m)
				}
				_ = p.w.Close()
				close(p.closeCh)
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					close(p.closeCh)
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		// Jangan drop diam-diam: ini satu-satunya jejak publish yang hilang.
		p.log.Error("publish failed",
			zap.String("queue", m.Topic),
			zap.ByteString("key", m.Key),
			zap.Error(err))
	}
}

func (p *Producer) Publish(ctx context.Context, queue, event, key string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	env := events.Envelope{
		Event:      event,
		Data:       raw,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Producer:   p.name,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Topic: queue,
		Key:   events.Key(key),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event", Value: []byte(event)},
			{Key: "x-event-id", Value: []byte(env.EventID)},
		},
	}

	select {
	case p.inbox <- msg:
		metrics.EventsPublished.WithLabelValues(queue, event).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Producer) closeInbox() { p.closeOnce.Do(func() { close(p.inbox) }) }

// Tutup inbox supaya goroutine flush sisa pesan lalu exit.
func (p *Producer) Close() { p.closeInbox() }

func (p *Producer) WaitClosed() { <-p.closeCh }
