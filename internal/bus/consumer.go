package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/metrics"
)

// Consumer: competing consumer di satu queue. Offset di-commit manual setelah
// handler sukses (ack-after-commit); pesan yang gagal terus setelah
// maxAttempts dipindah ke dead-letter queue lalu di-commit supaya tidak
// nge-block partition.
// committer: seam commit offset, di produksi diisi *kafka.Reader.
type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Consumer struct {
	r           *kafka.Reader
	commit      committer
	disp        *Dispatcher
	dlq         Publisher
	log         *zap.Logger
	workers     int
	maxAttempts int
	backoff     time.Duration
}

func NewConsumer(brokers []string, group string, disp *Dispatcher, dlq Publisher, workers, maxAttempts int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          disp.Queue(),
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Consumer{
		r:           r,
		commit:      r,
		disp:        disp,
		dlq:         dlq,
		log:         log,
		workers:     workers,
		maxAttempts: maxAttempts,
		backoff:     200 * time.Millisecond,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 256)

	for i := 0; i < c.workers; i++ {
		go func() {
			for m := range jobs {
				c.process(ctx, m)
			}
		}()
	}

	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			close(jobs)
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			close(jobs)
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, m kafka.Message) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.disp.Dispatch(ctx, m.Value)
		if lastErr == nil {
			if err := c.commit.CommitMessages(ctx, m); err != nil {
				c.log.Error("commit failed", zap.String("queue", c.disp.Queue()), zap.Error(err))
			}
			return
		}
		if attempt < c.maxAttempts {
			metrics.EventRetries.WithLabelValues(c.disp.Queue(), eventName(m)).Inc()
			c.log.Warn("handler failed, retrying",
				zap.String("queue", c.disp.Queue()),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-time.After(time.Duration(attempt) * c.backoff):
			case <-ctx.Done():
				return
			}
		}
	}

	// Poison message: parkir di DLQ, commit supaya queue jalan terus.
	c.deadLetter(ctx, m, lastErr)
	if err := c.commit.CommitMessages(ctx, m); err != nil {
		c.log.Error("commit after dead-letter failed", zap.Error(err))
	}
}

type deadLetterRecord struct {
	Queue    string          `json:"queue"`
	Error    string          `json:"error"`
	Envelope json.RawMessage `json:"envelope"`
}

func (c *Consumer) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	name := eventName(m)
	metrics.DeadLettered.WithLabelValues(c.disp.Queue(), name).Inc()
	c.log.Error("dead-lettering message",
		zap.String("queue", c.disp.Queue()),
		zap.String("event", name),
		zap.Error(cause))

	if c.dlq == nil {
		return
	}
	rec := deadLetterRecord{Queue: c.disp.Queue(), Error: cause.Error(), Envelope: m.Value}
	if err := c.dlq.Publish(ctx, events.QueueDeadLetter, "DEAD_LETTER", string(m.Key), rec); err != nil {
		c.log.Error("publish to dead-letter queue failed", zap.Error(err))
	}
}

func eventName(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "x-event" {
			return string(h.Value)
		}
	}
	return "unknown"
}
