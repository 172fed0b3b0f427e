package event

import (
	"context"
	"log/slog"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
	"github.com/fundacjapwm/paw-aid-cart/pkg/kafka"
)

const (
	sourceService = "cart-service"
	aggregateType = "cart"

	TopicCartUpdated    = "pawaid.cart.updated"
	TopicCartCleared    = "pawaid.cart.cleared"
	TopicCartCheckedOut = "pawaid.cart.checked_out"
)

// KafkaPublisher publishes cart events to Kafka topics.
type KafkaPublisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewKafkaPublisher wraps a Kafka producer as a cart event publisher.
func NewKafkaPublisher(producer *kafka.Producer, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger}
}

type cartUpdatedPayload struct {
	UserID      string       `json:"user_id"`
	Lines       domain.Lines `json:"lines"`
	TotalAmount int64        `json:"total_amount"`
	ItemCount   int          `json:"item_count"`
}

type cartClearedPayload struct {
	UserID string `json:"user_id"`
}

type cartCheckedOutPayload struct {
	UserID      string       `json:"user_id"`
	OrderID     string       `json:"order_id"`
	Lines       domain.Lines `json:"lines"`
	TotalAmount int64        `json:"total_amount"`
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, eventType, userID string, payload any) {
	evt, err := kafka.NewEvent(eventType, userID, aggregateType, sourceService, payload)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := p.producer.Publish(ctx, topic, evt); err != nil {
		p.logger.WarnContext(ctx, "event publish failed",
			slog.String("topic", topic),
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

func (p *KafkaPublisher) CartUpdated(ctx context.Context, userID string, lines domain.Lines, total int64) {
	p.publish(ctx, TopicCartUpdated, "cart.updated", userID, cartUpdatedPayload{
		UserID:      userID,
		Lines:       lines,
		TotalAmount: total,
		ItemCount:   lines.Count(),
	})
}

func (p *KafkaPublisher) CartCleared(ctx context.Context, userID string) {
	p.publish(ctx, TopicCartCleared, "cart.cleared", userID, cartClearedPayload{UserID: userID})
}

func (p *KafkaPublisher) CartCheckedOut(ctx context.Context, userID, orderID string, lines domain.Lines, total int64) {
	p.publish(ctx, TopicCartCheckedOut, "cart.checked_out", userID, cartCheckedOutPayload{
		UserID:      userID,
		OrderID:     orderID,
		Lines:       lines,
		TotalAmount: total,
	})
}
