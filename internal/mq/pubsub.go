package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/natours/api/config"
)

// Pub/Sub accepts between 5 and 100 delivery attempts before dead-lettering.
const (
	minDeliveryAttempts = 5
	maxDeliveryAttempts = 100
)

// PubSubClient carries queued email over Google Cloud Pub/Sub.
//
// Subscriptions nack failed messages into Pub/Sub's own retry policy, so
// redelivery backs off between minBackoff and maxBackoff. After
// deliveryAttempts the message is forwarded to the dead letter topic.
// Messages are published with their message_id as ordering key, so a
// redelivered email is never overtaken by a later copy of itself.
type PubSubClient struct {
	client *pubsub.Client

	subscriptionSuffix string
	deadLetterSuffix   string
	ackDeadline        time.Duration
	minBackoff         time.Duration
	maxBackoff         time.Duration
	deliveryAttempts   int

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	return newPubSubClient(client, cfg), nil
}

func newPubSubClient(client *pubsub.Client, cfg config.PubSubConfig) *PubSubClient {
	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}
	return &PubSubClient{
		client:             client,
		subscriptionSuffix: suffix,
		deadLetterSuffix:   cfg.DeadLetterSuffix,
		ackDeadline:        cfg.AckDeadline,
		minBackoff:         cfg.MinBackoff,
		maxBackoff:         cfg.MaxBackoff,
		deliveryAttempts:   min(max(cfg.MaxDeliveryAttempts, minDeliveryAttempts), maxDeliveryAttempts),
		topics:             make(map[string]*pubsub.Topic),
	}
}

// Publish sends a message to the named topic.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	key := attrs["message_id"]
	id, err := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs, OrderingKey: key}).Get(ctx)
	if err != nil && key != "" {
		// A failed publish pauses its ordering key until resumed.
		topic.ResumePublish(key)
	}
	return id, err
}

// Subscribe consumes messages from the named channel.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	sub, err := p.ensureSubscription(ctx, channel)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		message := Message{
			ID:         msg.ID,
			Data:       msg.Data,
			Attributes: msg.Attributes,
		}
		if msg.DeliveryAttempt != nil {
			message.Attempt = *msg.DeliveryAttempt
		}
		if err := handler(ctx, message); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close flushes pending publishes and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.topics = map[string]*pubsub.Topic{}
	p.mu.Unlock()
	return p.client.Close()
}

// topic returns the cached publisher for name, creating the topic when
// it does not exist yet.
func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}
	topic, err := p.ensureTopic(ctx, name)
	if err != nil {
		return nil, err
	}
	topic.EnableMessageOrdering = true
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubClient) ensureTopic(ctx context.Context, name string) (*pubsub.Topic, error) {
	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateTopic(ctx, name)
	}
	return topic, nil
}

// ensureSubscription creates the channel's subscription, or brings the
// retry and dead letter settings of an existing one up to date.
func (p *PubSubClient) ensureSubscription(ctx context.Context, channel string) (*pubsub.Subscription, error) {
	topic, err := p.ensureTopic(ctx, channel)
	if err != nil {
		return nil, err
	}
	deadLetter := ""
	if name := p.deadLetterTopicName(channel); name != "" {
		dead, err := p.ensureTopic(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("dead letter topic %s: %w", name, err)
		}
		deadLetter = dead.String()
	}

	cfg := p.subscriptionConfig(topic, deadLetter)
	sub := p.client.Subscription(p.subscriptionName(channel))
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateSubscription(ctx, sub.ID(), cfg)
	}
	update := pubsub.SubscriptionConfigToUpdate{
		AckDeadline:      cfg.AckDeadline,
		RetryPolicy:      cfg.RetryPolicy,
		DeadLetterPolicy: cfg.DeadLetterPolicy,
	}
	if _, err := sub.Update(ctx, update); err != nil {
		return nil, fmt.Errorf("update subscription %s: %w", sub.ID(), err)
	}
	return sub, nil
}

// subscriptionConfig describes a mail subscription. deadLetterTopic is
// the fully qualified topic name, or empty to retry forever.
func (p *PubSubClient) subscriptionConfig(topic *pubsub.Topic, deadLetterTopic string) pubsub.SubscriptionConfig {
	cfg := pubsub.SubscriptionConfig{
		Topic:                 topic,
		AckDeadline:           p.ackDeadline,
		EnableMessageOrdering: true,
	}
	if p.minBackoff > 0 || p.maxBackoff > 0 {
		cfg.RetryPolicy = &pubsub.RetryPolicy{}
		if p.minBackoff > 0 {
			cfg.RetryPolicy.MinimumBackoff = p.minBackoff
		}
		if p.maxBackoff > 0 {
			cfg.RetryPolicy.MaximumBackoff = p.maxBackoff
		}
	}
	if deadLetterTopic != "" {
		cfg.DeadLetterPolicy = &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     deadLetterTopic,
			MaxDeliveryAttempts: p.deliveryAttempts,
		}
	}
	return cfg
}

func (p *PubSubClient) subscriptionName(channel string) string {
	if p.subscriptionSuffix == "" {
		return channel
	}
	return channel + p.subscriptionSuffix
}

func (p *PubSubClient) deadLetterTopicName(channel string) string {
	if p.deadLetterSuffix == "" {
		return ""
	}
	return channel + p.deadLetterSuffix
}
