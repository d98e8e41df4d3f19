package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

var ErrBadMessage = errors.New("rabbitmq: bad activity message")

// HandlerFunc processes one activity event. A returned error nacks the delivery.
type HandlerFunc func(ctx context.Context, m ActivityMessage) error

type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queue       string
	concurrency int
}

func NewConsumer(url, queue string, concurrency int) (*Consumer, error) {
	if queue == "" {
		return nil, errors.New("rabbitmq: queue name is required")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	// at most `concurrency` unacked deliveries in flight
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, concurrency: concurrency}, nil
}

func (c *Consumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// Run dispatches deliveries to a fixed pool of workers until ctx is done or the
// broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context, h HandlerFunc) error {
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	jobs := make(chan amqp.Delivery, c.concurrency*2)
	var wg sync.WaitGroup
	wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				start := time.Now()
				if err := Handle(ctx, d, h); err != nil {
					log.Warn().Err(err).Int("worker", workerID).Str("message_id", d.MessageId).
						Dur("took", time.Since(start)).Msg("activity delivery failed")
				}
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("rabbitmq: delivery channel closed")
			}
			jobs <- d
		}
	}
}

// Handle decodes and processes a single delivery, then acks or nacks it.
// Undecodable bodies are dropped; handler failures are requeued once.
func Handle(ctx context.Context, d amqp.Delivery, h HandlerFunc) error {
	var m ActivityMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.EventID == "" {
		_ = d.Nack(false, false)
		if err == nil {
			err = errors.New("missing event_id")
		}
		return errors.Join(ErrBadMessage, err)
	}
	if err := h(ctx, m); err != nil {
		_ = d.Nack(false, !d.Redelivered)
		return err
	}
	return d.Ack(false)
}
