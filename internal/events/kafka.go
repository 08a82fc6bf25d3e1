package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"

	"github.com/segmentio/kafka-go"
)

// OrderPublisher публикует события о закоммиченных заказах для
// downstream-потребителей (уведомления, аналитика).
type OrderPublisher struct {
	logger *slog.Logger
	writer *kafka.Writer
}

func NewOrderPublisher(logger *slog.Logger, cfg config.Kafka) *OrderPublisher {
	return &OrderPublisher{
		logger: logger.With(slog.String("publisher", "kafka")),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.BatchTimeout,
		},
	}
}

type orderItemEvent struct {
	VariantID       string `json:"variant_id"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
}

type orderCreatedEvent struct {
	OrderID     string           `json:"order_id"`
	UserID      string           `json:"user_id"`
	TotalAmount int64            `json:"total_amount"`
	Currency    string           `json:"currency"`
	PaymentID   string           `json:"payment_id"`
	Items       []orderItemEvent `json:"items"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (p *OrderPublisher) OrderCreated(ctx context.Context, order entities.Order) error {
	event := orderCreatedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		PaymentID:   order.PaymentID,
		CreatedAt:   order.CreatedAt,
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, orderItemEvent{
			VariantID:       item.VariantID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
		})
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	// В либе уже есть retry на запись.
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.ID),
		Value: data,
	})
}

func (p *OrderPublisher) Close() error {
	return p.writer.Close()
}
