package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kibikalo/dash-streaming-microservice/internal/config"
)

const (
	ExchangeName = "audio.pipeline"

	TopicAudioUploaded     = "audio.uploaded"
	TopicEncodingRequested = "encoding.requested"
	TopicEncodingStarted   = "encoding.started"
	TopicEncodingSucceeded = "encoding.succeeded"
	TopicEncodingFailed    = "encoding.failed"
)

// Topics lists every topic the pipeline publishes or consumes.
var Topics = []string{
	TopicAudioUploaded,
	TopicEncodingRequested,
	TopicEncodingStarted,
	TopicEncodingSucceeded,
	TopicEncodingFailed,
}

// Queue provides message queue operations. Delivery is at-least-once:
// a handler error requeues the message, so handlers must be idempotent.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// New creates a new queue client and declares the exchange plus one durable
// queue per topic, bound by the topic name.
func New(cfg config.QueueConfig) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	for _, topic := range Topics {
		_, err = channel.QueueDeclare(
			topic,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare queue %s: %w", topic, err)
		}

		err = channel.QueueBind(topic, topic, ExchangeName, false, nil)
		if err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue %s: %w", topic, err)
		}
	}

	return &Queue{
		conn:    conn,
		channel: channel,
	}, nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// Publish publishes an event on the given topic, keyed by audio identifier.
func (q *Queue) Publish(ctx context.Context, topic, audioID string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		ExchangeName,
		topic,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			MessageId:    audioID,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	return nil
}

// Consume starts consuming the topic's queue. The handler receives the raw
// payload; a non-nil return nacks with requeue, nil acks.
func (q *Queue) Consume(ctx context.Context, topic string, handler func([]byte) error) error {
	// Limit to one in-flight message per consumer
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		topic,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", topic, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				if err := handler(msg.Body); err != nil {
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// Depth returns the number of messages waiting on a topic's queue.
func (q *Queue) Depth(topic string) (int, error) {
	info, err := q.channel.QueueInspect(topic)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue %s: %w", topic, err)
	}

	return info.Messages, nil
}
