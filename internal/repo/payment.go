package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

func (r *postgresRepo) InsertPayment(ctx context.Context, p entities.Payment) error {
	query, args := r.qb.Insert("payments").
		Columns(
			"id", "user_id", "order_id", "status", "transaction_id",
			"amount", "currency", "provider", "created_at", "updated_at",
		).
		Values(
			p.ID, p.UserID, nullString(p.OrderID), string(p.Status), p.TransactionID,
			p.Amount, p.Currency, p.Provider, p.CreatedAt, p.UpdatedAt,
		).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetPaymentByID(ctx context.Context, paymentID string) (entities.Payment, error) {
	query, args := r.qb.Select(
		"id", "user_id", "order_id", "status", "transaction_id",
		"amount", "currency", "provider", "created_at", "updated_at",
	).
		From("payments").
		Where(sq.Eq{"id": paymentID}).
		MustSql()

	var payment Payment
	err := r.getContext(ctx, &payment, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Payment{}, entities.ErrPaymentNotFound
	}
	if err != nil {
		return entities.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}
	return PaymentToEntity(payment), nil
}

func (r *postgresRepo) UpdatePaymentStatus(ctx context.Context, paymentID string, status entities.PaymentStatus) error {
	query, args := r.qb.Update("payments").
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": paymentID}).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

// LinkPaymentToOrder связывает платёж с заказом. Условие order_id IS NULL
// гарантирует, что один платёж не породит два заказа.
func (r *postgresRepo) LinkPaymentToOrder(ctx context.Context, paymentID, orderID string) error {
	query, args := r.qb.Update("payments").
		Set("order_id", orderID).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": paymentID}).
		Where(sq.Expr("order_id IS NULL")).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to link payment to order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check linked rows: %w", err)
	}
	if affected == 0 {
		return entities.ErrPaymentLinked
	}
	return nil
}
