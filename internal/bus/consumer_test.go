package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
)

type memCommitter struct{ commits int }

func (c *memCommitter) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	c.commits++
	return nil
}

type capturePub struct {
	calls int
	queue string
	event string
	data  any
}

func (p *capturePub) Publish(ctx context.Context, queue, event, key string, data any) error {
	p.calls++
	p.queue, p.event, p.data = queue, event, data
	return nil
}

func newTestConsumer(d *Dispatcher, dlq Publisher, maxAttempts int) (*Consumer, *memCommitter) {
	commit := &memCommitter{}
	return &Consumer{
		commit:      commit,
		disp:        d,
		dlq:         dlq,
		log:         zap.NewNop(),
		maxAttempts: maxAttempts,
		backoff:     time.Millisecond,
	}, commit
}

func TestProcessCommitsAfterSuccess(t *testing.T) {
	d := NewDispatcher("order_queue", zap.NewNop())
	attempts := 0
	d.Handle("ORDER_CREATED", func(ctx context.Context, env events.Envelope) error {
		attempts++
		return nil
	})

	dlq := &capturePub{}
	c, commit := newTestConsumer(d, dlq, 3)

	c.process(context.Background(), kafka.Message{
		Value:   envelopeBytes(t, "ORDER_CREATED", map[string]string{"orderId": "ord-1"}),
		Headers: []kafka.Header{{Key: "x-event", Value: []byte("ORDER_CREATED")}},
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, commit.commits, "commit hanya setelah handler sukses")
	assert.Equal(t, 0, dlq.calls)
}

func TestProcessRetriesThenDeadLetters(t *testing.T) {
	d := NewDispatcher("payment_queue", zap.NewNop())
	attempts := 0
	d.Handle("PROCESS_REFUND", func(ctx context.Context, env events.Envelope) error {
		attempts++
		return errors.New("db down")
	})

	dlq := &capturePub{}
	c, commit := newTestConsumer(d, dlq, 3)

	m := kafka.Message{
		Key:     []byte("ord-1"),
		Value:   envelopeBytes(t, "PROCESS_REFUND", map[string]string{"orderId": "ord-1"}),
		Headers: []kafka.Header{{Key: "x-event", Value: []byte("PROCESS_REFUND")}},
	}
	c.process(context.Background(), m)

	assert.Equal(t, 3, attempts, "handler dicoba sampai maxAttempts")
	require.Equal(t, 1, dlq.calls)
	assert.Equal(t, events.QueueDeadLetter, dlq.queue)
	assert.Equal(t, "DEAD_LETTER", dlq.event)

	rec, ok := dlq.data.(deadLetterRecord)
	require.True(t, ok)
	assert.Equal(t, "payment_queue", rec.Queue)
	assert.Equal(t, "db down", rec.Error)
	assert.JSONEq(t, string(m.Value), string(rec.Envelope))

	assert.Equal(t, 1, commit.commits, "poison message tetap di-commit supaya partition jalan")
}

func TestProcessStopsRetryingOnceHandlerRecovers(t *testing.T) {
	d := NewDispatcher("order_queue", zap.NewNop())
	attempts := 0
	d.Handle("ORDER_CREATED", func(ctx context.Context, env events.Envelope) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})

	dlq := &capturePub{}
	c, commit := newTestConsumer(d, dlq, 3)

	c.process(context.Background(), kafka.Message{
		Value:   envelopeBytes(t, "ORDER_CREATED", map[string]string{"orderId": "ord-2"}),
		Headers: []kafka.Header{{Key: "x-event", Value: []byte("ORDER_CREATED")}},
	})

	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, commit.commits)
	assert.Equal(t, 0, dlq.calls, "sukses sebelum habis attempt tidak ke DLQ")
}
