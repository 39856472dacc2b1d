package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/natours/api/internal/logging"
	"github.com/natours/api/internal/metrics"
	"github.com/natours/api/internal/mq"
)

// Publisher is the part of mq.MQ the QueueSender needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Subscriber is the part of mq.MQ the Worker needs.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// QueueSender hands messages to the broker for a Worker to deliver.
type QueueSender struct {
	publisher Publisher
	channel   string
}

func NewQueueSender(publisher Publisher, channel string) *QueueSender {
	return &QueueSender{publisher: publisher, channel: channel}
}

func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	msg = ensureID(msg)
	if err := msg.validate(); err != nil {
		return err
	}
	data, err := encode(msg)
	if err != nil {
		return err
	}
	if _, err := q.publisher.Publish(ctx, q.channel, data, map[string]string{"message_id": msg.ID}); err != nil {
		metrics.RecordEmail("failed")
		return fmt.Errorf("enqueue email: %w", err)
	}
	metrics.RecordEmail("queued")
	return nil
}

// Worker drains the mail queue through a delivering Sender.
type Worker struct {
	subscriber Subscriber
	channel    string
	sender     Sender
}

func NewWorker(subscriber Subscriber, channel string, sender Sender) *Worker {
	return &Worker{subscriber: subscriber, channel: channel, sender: sender}
}

// Run blocks until ctx is cancelled or the subscription fails. Transient
// delivery failures are nacked and redelivered by the broker, which backs
// off and dead-letters after its attempt limit. Messages that cannot be
// decoded or that the SMTP server rejects permanently are dropped.
func (w *Worker) Run(ctx context.Context) error {
	err := w.subscriber.Subscribe(ctx, w.channel, w.handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) handle(ctx context.Context, m mq.Message) error {
	log := logging.Ctx(ctx).With().Str("mq_message_id", m.ID).Logger()

	msg, err := decode(m.Data)
	if err != nil {
		metrics.RecordEmail("dropped")
		log.Error().Err(err).Msg("dropping malformed email message")
		return nil
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		if IsPermanent(err) {
			metrics.RecordEmail("dropped")
			log.Error().Err(err).Str("message_id", msg.ID).Str("to", msg.To).Msg("email rejected, dropping")
			return nil
		}
		metrics.RecordEmail("failed")
		log.Warn().Err(err).Str("message_id", msg.ID).Str("to", msg.To).Int("attempt", m.Attempt).Msg("email delivery failed")
		return err
	}
	metrics.RecordEmail("sent")
	log.Info().Str("message_id", msg.ID).Str("to", msg.To).Msg("email delivered")
	return nil
}
