package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/natours/api/config"
)

const (
	// attemptHeader carries the delivery attempt of a republished message.
	attemptHeader   = "x-natours-attempt"
	maxRetryBackoff = 5 * time.Minute
)

// RabbitMQClient wraps a RabbitMQ connection/channel pair.
//
// Failed messages are republished to the back of their queue with an
// incremented attempt header after an exponential backoff. Once
// maxAttempts is reached they are rejected, and the queue's dead letter
// arguments route them to the dead letter queue.
type RabbitMQClient struct {
	conn             *amqp.Connection
	channel          *amqp.Channel
	queueDurable     bool
	queueAutoDelete  bool
	prefetchCount    int
	maxAttempts      int
	retryDelay       time.Duration
	deadLetterSuffix string
}

// NewRabbitMQClient constructs a RabbitMQ client from config.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:             conn,
		channel:          ch,
		queueDurable:     cfg.QueueDurable,
		queueAutoDelete:  cfg.QueueAutoDelete,
		prefetchCount:    cfg.PrefetchCount,
		maxAttempts:      cfg.MaxAttempts,
		retryDelay:       cfg.RetryDelay,
		deadLetterSuffix: cfg.DeadLetterSuffix,
	}, nil
}

// Publish sends a message to the named queue.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	if _, err := r.declareQueue(channel); err != nil {
		return "", err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	messageID := uuid.NewString()
	err := r.channel.PublishWithContext(ctx, "", channel, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: r.deliveryMode(),
		MessageId:    messageID,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes messages from the named queue.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	if _, err := r.declareQueue(channel); err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("natours-%s", uuid.NewString())
	deliveries, err := r.channel.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			attempt := attemptOf(delivery.Headers)
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
				Attempt:    attempt,
			}
			if err := handler(ctx, message); err != nil {
				r.retry(ctx, channel, delivery, attempt)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// retry rejects delivery into the dead letter queue once the attempt
// limit is reached, and otherwise republishes it after a backoff.
func (r *RabbitMQClient) retry(ctx context.Context, queue string, delivery amqp.Delivery, attempt int) {
	if r.exhausted(attempt) {
		_ = delivery.Nack(false, false)
		return
	}

	timer := time.NewTimer(r.backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		_ = delivery.Nack(false, true)
		return
	case <-timer.C:
	}

	headers := amqp.Table{}
	for key, value := range delivery.Headers {
		headers[key] = value
	}
	headers[attemptHeader] = int32(attempt + 1)

	err := r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  delivery.ContentType,
		DeliveryMode: r.deliveryMode(),
		MessageId:    delivery.MessageId,
		Headers:      headers,
		Body:         delivery.Body,
	})
	if err != nil {
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

func (r *RabbitMQClient) exhausted(attempt int) bool {
	return r.maxAttempts > 0 && attempt >= r.maxAttempts
}

// backoff doubles retryDelay per attempt, capped at maxRetryBackoff.
func (r *RabbitMQClient) backoff(attempt int) time.Duration {
	delay := r.retryDelay
	for i := 1; i < attempt && delay < maxRetryBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxRetryBackoff)
}

// attemptOf reads the attempt header, treating a first delivery as 1.
func attemptOf(headers amqp.Table) int {
	var attempt int
	switch v := headers[attemptHeader].(type) {
	case int32:
		attempt = int(v)
	case int64:
		attempt = int(v)
	case int:
		attempt = v
	case string:
		attempt, _ = strconv.Atoi(v)
	}
	return max(attempt, 1)
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareQueue(name string) (amqp.Queue, error) {
	if dead := r.deadLetterQueue(name); dead != "" {
		if _, err := r.channel.QueueDeclare(dead, r.queueDurable, false, false, false, nil); err != nil {
			return amqp.Queue{}, fmt.Errorf("declare dead letter queue %s: %w", dead, err)
		}
	}
	return r.channel.QueueDeclare(
		name,
		r.queueDurable,
		r.queueAutoDelete,
		false,
		false,
		r.queueArgs(name),
	)
}

func (r *RabbitMQClient) deadLetterQueue(name string) string {
	if r.deadLetterSuffix == "" {
		return ""
	}
	return name + r.deadLetterSuffix
}

// queueArgs routes rejected messages through the default exchange to the
// dead letter queue.
func (r *RabbitMQClient) queueArgs(name string) amqp.Table {
	dead := r.deadLetterQueue(name)
	if dead == "" {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dead,
	}
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}

// deliveryMode persists messages on durable queues so queued email
// survives a broker restart.
func (r *RabbitMQClient) deliveryMode() uint8 {
	if r.queueDurable {
		return amqp.Persistent
	}
	return amqp.Transient
}
