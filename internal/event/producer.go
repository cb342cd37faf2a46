package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tamrstore/storefront/internal/domain"
	pkgkafka "github.com/tamrstore/storefront/pkg/kafka"
	"github.com/tamrstore/storefront/pkg/logger"
)

// Kafka topics for cart events.
const (
	TopicCartUpdated = "storefront.cart.updated"
	TopicCartCleared = "storefront.cart.cleared"
)

// Source identifies this service in event envelopes.
const Source = "storefront"

// CartUpdatedData is the cart.updated payload.
type CartUpdatedData struct {
	UserID      string          `json:"user_id"`
	Items       []CartItemData  `json:"items"`
	ItemCount   int             `json:"item_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CartItemData is one line inside a cart event.
type CartItemData struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// CartClearedData is the cart.cleared payload.
type CartClearedData struct {
	UserID string `json:"user_id"`
}

// Publisher is the kafka-side dependency of Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart domain events.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a cart event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishCartUpdated announces the shopper's current cart contents.
func (p *Producer) PublishCartUpdated(ctx context.Context, userID string, summary domain.Summary) error {
	items := make([]CartItemData, len(summary.Lines))
	for i, l := range summary.Lines {
		items[i] = CartItemData{
			ProductID: l.ID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		}
	}

	return p.publish(ctx, TopicCartUpdated, userID, CartUpdatedData{
		UserID:      userID,
		Items:       items,
		ItemCount:   summary.TotalItems,
		TotalAmount: summary.TotalAmount,
	})
}

// PublishCartCleared announces that the shopper's cart was emptied.
func (p *Producer) PublishCartCleared(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicCartCleared, userID, CartClearedData{UserID: userID})
}

func (p *Producer) publish(ctx context.Context, topic, userID string, data any) error {
	ev, err := pkgkafka.NewEvent(topic, userID, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	ev.CorrelationID = logger.CorrelationIDFromContext(ctx)

	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published cart event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)
	return nil
}

// NoopProducer drops every event. It is used when Kafka is disabled.
type NoopProducer struct{}

func (NoopProducer) PublishCartUpdated(context.Context, string, domain.Summary) error { return nil }

func (NoopProducer) PublishCartCleared(context.Context, string) error { return nil }
