package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher is the subset of *amqp.Channel used for publishing.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// DialQueue connects to the broker and declares the durable notification
// queue.
func DialQueue(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return conn, ch, nil
}

// AMQPPublisher hands messages to the notify-worker process through a
// RabbitMQ queue. It publishes synchronously, so serve wraps it in a Worker
// and a slow broker only ever holds up the worker goroutine.
type AMQPPublisher struct {
	pub     Publisher
	queue   string
	timeout time.Duration
}

func NewAMQPPublisher(pub Publisher, queue string) *AMQPPublisher {
	return &AMQPPublisher{pub: pub, queue: queue, timeout: 5 * time.Second}
}

// Deliver publishes msg as a persistent JSON message.
func (p *AMQPPublisher) Deliver(ctx context.Context, msg Message) error {
	stamp(&msg)
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", msg.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err = p.pub.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification %s to %s: %w", msg.ID, p.queue, err)
	}
	return nil
}

// Consume starts a manual-ack consumer on queue.
func Consume(ch *amqp.Channel, queue, consumer string) (<-chan amqp.Delivery, error) {
	return ch.Consume(
		queue,
		consumer,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
}

// Consumer delivers queued messages. A message that cannot be decoded or
// delivered is nacked without requeue.
type Consumer struct {
	deliverer Deliverer
	logger    zerolog.Logger
	timeout   time.Duration
}

func NewConsumer(d Deliverer, logger zerolog.Logger) *Consumer {
	return &Consumer{
		deliverer: d,
		logger:    logger.With().Str("component", "notify-consumer").Logger(),
		timeout:   30 * time.Second,
	}
}

// ErrDeliveriesClosed is returned by Run when the broker closes the
// delivery channel.
var ErrDeliveriesClosed = errors.New("amqp delivery channel closed")

// Run handles deliveries until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error().Err(err).Str("message_id", d.MessageId).Msg("decode notification")
		c.nack(d)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.deliverer.Deliver(ctx, msg); err != nil {
		c.nack(d)
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.Error().Err(err).Str("notification_id", msg.ID).Msg("ack notification")
	}
}

func (c *Consumer) nack(d amqp.Delivery) {
	if err := d.Nack(false, false); err != nil {
		c.logger.Error().Err(err).Str("message_id", d.MessageId).Msg("nack notification")
	}
}
