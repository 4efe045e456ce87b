// Package stream publishes registry changes to Kafka.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vainnor/active-flights/metrics"
	"github.com/vainnor/active-flights/types"
)

const (
	defaultQueueSize = 1024
	maxBatch         = 100
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues registry events and writes them to a topic keyed by
// username, so every event for one pilot lands on the same partition.
type Producer struct {
	writer  MessageWriter
	events  chan types.Event
	logger  *zap.Logger
	dropped atomic.Int64

	// mu orders enqueues against the final drain in shutdown.
	mu     sync.Mutex
	closed bool
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newProducer(w, defaultQueueSize, logger)
}

func newProducer(w MessageWriter, queueSize int, logger *zap.Logger) *Producer {
	return &Producer{
		writer: w,
		events: make(chan types.Event, queueSize),
		logger: logger,
	}
}

// FlightsChanged enqueues ev without blocking. The event is dropped and
// counted when the queue is full or the producer has already shut down.
func (p *Producer) FlightsChanged(ev types.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.drop()
		return
	}
	select {
	case p.events <- ev:
	default:
		p.drop()
	}
}

// Dropped reports how many events never reached the queue.
func (p *Producer) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Producer) drop() {
	p.dropped.Add(1)
	metrics.RecordDroppedEvent()
}

// Run writes queued events until ctx is cancelled, then flushes whatever is
// still queued and closes the writer. Cancel ctx only once nothing can
// mutate the registry anymore; later events are dropped.
func (p *Producer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return p.shutdown()
		case ev := <-p.events:
			batch := p.collect(ev)
			if err := p.write(ctx, batch); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("failed to publish flight events", zap.Int("events", len(batch)), zap.Error(err))
			}
		}
	}
}

// collect drains up to maxBatch queued events without waiting.
func (p *Producer) collect(first types.Event) []types.Event {
	batch := []types.Event{first}
	for len(batch) < maxBatch {
		select {
		case ev := <-p.events:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (p *Producer) write(ctx context.Context, events []types.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		msg, err := encode(ev)
		if err != nil {
			p.logger.Error("failed to encode flight event", zap.Any("username", ev.Username), zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Producer) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	var pending []types.Event
drain:
	for {
		select {
		case ev := <-p.events:
			pending = append(pending, ev)
		default:
			break drain
		}
	}
	if n := p.dropped.Load(); n > 0 {
		p.logger.Warn("stream queue overflowed, events were dropped", zap.Int64("dropped", n))
	}
	var err error
	if len(pending) > 0 {
		err = p.write(ctx, pending)
	}
	return multierr.Append(err, p.writer.Close())
}

func encode(ev types.Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(fmt.Sprint(ev.Username)),
		Value: value,
		Time:  ev.Time,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}, nil
}
