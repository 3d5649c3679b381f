// Package events publishes grade change notifications and fans them out to consumers.
// Without brokers the bus is an in-process go channel; with brokers it is Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/pkg/config"
)

const consumerGroup = "gradebook-api"

// Handler processes one decoded event. Errors are logged and the message is still
// acked; retrying is the job queue's business.
type Handler func(ctx context.Context, event models.GradeChangedEvent) error

// Bus publishes and consumes GradeChangedEvents on a single topic.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	transport  string
	logger     *zap.Logger
}

// NewBus picks Kafka when brokers are configured and an in-process channel otherwise.
func NewBus(cfg config.EventsConfig, logger *zap.Logger) (*Bus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "grades.changed"
	}
	wmLogger := newZapAdapter(logger)

	if len(cfg.KafkaBrokers) == 0 {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)
		return &Bus{publisher: ch, subscriber: ch, topic: topic, transport: "gochannel", logger: logger}, nil
	}

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               cfg.KafkaBrokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		ConsumerGroup:         consumerGroup,
		OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
	}, wmLogger)
	if err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("create kafka subscriber: %w", err)
	}
	return &Bus{publisher: publisher, subscriber: subscriber, topic: topic, transport: "kafka", logger: logger}, nil
}

// NewBusFrom wraps an existing publisher and subscriber.
func NewBusFrom(publisher message.Publisher, subscriber message.Subscriber, topic string, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{publisher: publisher, subscriber: subscriber, topic: topic, transport: "custom", logger: logger}
}

// Transport names the backing pub/sub.
func (b *Bus) Transport() string {
	return b.transport
}

// PublishGradeChanged sends one event.
func (b *Bus) PublishGradeChanged(ctx context.Context, event models.GradeChangedEvent) error {
	if event.ID == "" {
		event.ID = watermill.NewUUID()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal grade event: %w", err)
	}
	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("action", string(event.Action))
	msg.Metadata.Set("occurred_at", event.OccurredAt.Format(time.RFC3339Nano))
	msg.SetContext(ctx)

	if err := b.publisher.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("publish grade event: %w", err)
	}
	b.logger.Debug("grade event published", zap.String("event_id", event.ID), zap.String("action", string(event.Action)))
	return nil
}

// Consume subscribes handler to the topic. It returns once the subscription is live;
// delivery stops when ctx is cancelled or the bus is closed.
func (b *Bus) Consume(ctx context.Context, handler Handler) error {
	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topic, err)
	}
	go func() {
		for msg := range messages {
			b.dispatch(msg, handler)
		}
	}()
	return nil
}

func (b *Bus) dispatch(msg *message.Message, handler Handler) {
	var event models.GradeChangedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		b.logger.Error("drop malformed grade event", zap.String("message_id", msg.UUID), zap.Error(err))
		msg.Ack()
		return
	}
	if err := handler(msg.Context(), event); err != nil {
		b.logger.Warn("grade event handler failed", zap.String("event_id", event.ID), zap.Error(err))
	}
	msg.Ack()
}

// Close shuts down both sides of the bus.
func (b *Bus) Close() error {
	pubErr := b.publisher.Close()
	if b.subscriber != nil && any(b.subscriber) != any(b.publisher) {
		if err := b.subscriber.Close(); err != nil {
			return err
		}
	}
	return pubErr
}
