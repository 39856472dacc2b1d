// Package mailer delivers transactional email, either directly over SMTP
// or through the message queue drained by a Worker.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/textproto"

	"github.com/google/uuid"

	"github.com/natours/api/internal/logging"
)

// Message is one outbound email.
type Message struct {
	ID      string `json:"id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers or hands off a Message. A nil error means the message
// was accepted, not that it reached the inbox.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ensureID assigns a message id when the caller did not.
func ensureID(msg Message) Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return msg
}

// ErrInvalidMessage is returned for messages missing a recipient or subject.
var ErrInvalidMessage = errors.New("mailer: invalid message")

func (m Message) validate() error {
	if m.To == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	return nil
}

// IsPermanent reports whether retrying err cannot succeed: the message
// itself is invalid or the SMTP server answered with a 5xx reply.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrInvalidMessage) {
		return true
	}
	var reply *textproto.Error
	return errors.As(err, &reply) && reply.Code >= 500
}

func encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("mailer: decode message: %w", err)
	}
	return msg, msg.validate()
}

// LogSender writes messages to the log instead of sending them. It is
// used in development when no SMTP server or queue is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	msg = ensureID(msg)
	if err := msg.validate(); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().
		Str("message_id", msg.ID).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("email not sent, logging only")
	return nil
}
