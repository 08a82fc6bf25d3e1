package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"

	"github.com/google/uuid"
)

type LedgerRepo interface {
	ListEntriesForUpdate(ctx context.Context, userID string) ([]entities.CartEntry, error)
	DeleteEntries(ctx context.Context, userID string) error
	DecrementStock(ctx context.Context, variantID string, quantity int) (entities.ProductVariant, error)
	InsertOrder(ctx context.Context, o entities.Order) error
	InsertOrderItems(ctx context.Context, items []entities.OrderItem) error
	LinkPaymentToOrder(ctx context.Context, paymentID, orderID string) error
}

type orderLedger struct {
	logger    *slog.Logger
	txManager trm.Manager
	repo      LedgerRepo
	cache     Cache
}

func NewOrderLedger(logger *slog.Logger, txManager trm.Manager, repo LedgerRepo, cache Cache) *orderLedger {
	return &orderLedger{
		logger:    logger.With(slog.String("service", "ledger")),
		txManager: txManager,
		repo:      repo,
		cache:     cache,
	}
}

// CommitOrder материализует заказ одной транзакцией: снапшот корзины
// читается внутри неё же (не передаётся снаружи), сток списывается условным
// декрементом, платёж линкуется к заказу, корзина очищается. Либо всё,
// либо ничего.
func (l *orderLedger) CommitOrder(ctx context.Context, userID, addressID string, payment entities.Payment) (entities.Order, error) {
	var order entities.Order

	err := l.txManager.Do(ctx, func(ctx context.Context) error {
		entries, err := l.repo.ListEntriesForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return entities.ErrEmptyCart
		}

		orderID := uuid.NewString()
		items := make([]entities.OrderItem, 0, len(entries))
		var total int64

		for _, entry := range entries {
			variant, err := l.repo.DecrementStock(ctx, entry.VariantID, entry.Quantity)
			if err != nil {
				return fmt.Errorf("variant %s: %w", entry.VariantID, err)
			}

			// Цена фиксируется из строки, прочитанной тем же UPDATE,
			// что и списание стока.
			items = append(items, entities.OrderItem{
				ID:              uuid.NewString(),
				OrderID:         orderID,
				VariantID:       entry.VariantID,
				Quantity:        entry.Quantity,
				PriceAtPurchase: variant.Price,
			})
			total += variant.Price * int64(entry.Quantity)
		}

		order = entities.Order{
			ID:             orderID,
			UserID:         userID,
			Status:         entities.OrderCreated,
			TotalAmount:    total,
			Currency:       payment.Currency,
			PaymentStatus:  entities.PaymentSettled,
			DeliveryStatus: entities.DeliveryPending,
			AddressID:      addressID,
			PaymentID:      payment.ID,
			CreatedAt:      time.Now().UTC(),
			Items:          items,
		}

		if err := l.repo.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := l.repo.InsertOrderItems(ctx, items); err != nil {
			return err
		}
		if err := l.repo.LinkPaymentToOrder(ctx, payment.ID, orderID); err != nil {
			return err
		}
		return l.repo.DeleteEntries(ctx, userID)
	})
	if err != nil {
		return entities.Order{}, err
	}

	l.cache.Delete(userID)
	l.logger.Info("order committed",
		slog.String("order_id", order.ID),
		slog.String("user_id", userID),
		slog.Int64("total_amount", order.TotalAmount),
	)
	return order, nil
}
