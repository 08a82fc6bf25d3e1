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

// UpsertEntry добавляет delta к количеству записи корзины, создавая её при
// первом добавлении. Апсерт берёт блокировку строки, поэтому конкурентные
// добавления одного пользователя сериализуются без потери обновлений.
func (r *postgresRepo) UpsertEntry(ctx context.Context, userID, variantID string, delta int) (entities.CartEntry, error) {
	query, args := r.qb.Insert("cart_entries").
		Columns("user_id", "variant_id", "quantity", "added_at").
		Values(userID, variantID, delta, time.Now().UTC()).
		Suffix(`ON CONFLICT (user_id, variant_id)
			DO UPDATE SET quantity = cart_entries.quantity + EXCLUDED.quantity
			RETURNING user_id, variant_id, quantity, added_at`).
		MustSql()

	var entry CartEntry
	if err := r.getContext(ctx, &entry, query, args...); err != nil {
		return entities.CartEntry{}, fmt.Errorf("failed to upsert cart entry: %w", err)
	}
	return CartEntryToEntity(entry), nil
}

func (r *postgresRepo) SetQuantity(ctx context.Context, userID, variantID string, quantity int) (entities.CartEntry, error) {
	query, args := r.qb.Update("cart_entries").
		Set("quantity", quantity).
		Where(sq.Eq{"user_id": userID, "variant_id": variantID}).
		Suffix("RETURNING user_id, variant_id, quantity, added_at").
		MustSql()

	var entry CartEntry
	err := r.getContext(ctx, &entry, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.CartEntry{}, entities.ErrCartEntryNotFound
	}
	if err != nil {
		return entities.CartEntry{}, fmt.Errorf("failed to update cart entry: %w", err)
	}
	return CartEntryToEntity(entry), nil
}

func (r *postgresRepo) DeleteEntry(ctx context.Context, userID, variantID string) error {
	query, args := r.qb.Delete("cart_entries").
		Where(sq.Eq{"user_id": userID, "variant_id": variantID}).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete cart entry: %w", err)
	}
	return nil
}

func (r *postgresRepo) DeleteEntries(ctx context.Context, userID string) error {
	query, args := r.qb.Delete("cart_entries").
		Where(sq.Eq{"user_id": userID}).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// ListEntriesForUpdate читает записи корзины с блокировкой строк. Используется
// в коммите заказа, чтобы конкурентные мутации корзины не попали в снапшот.
func (r *postgresRepo) ListEntriesForUpdate(ctx context.Context, userID string) ([]entities.CartEntry, error) {
	query, args := r.qb.Select("user_id", "variant_id", "quantity", "added_at").
		From("cart_entries").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("added_at").
		Suffix("FOR UPDATE").
		MustSql()

	var rows []CartEntry
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select cart entries: %w", err)
	}

	entries := make([]entities.CartEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, CartEntryToEntity(row))
	}
	return entries, nil
}

func (r *postgresRepo) ListProjection(ctx context.Context, userID string) ([]entities.CartItem, error) {
	query, args := r.qb.Select(
		"ce.variant_id", "v.product_id", "p.name AS product_name", "p.image_url",
		"v.price", "ce.quantity", "v.price * ce.quantity AS subtotal",
	).
		From("cart_entries ce").
		Join("product_variants v ON v.id = ce.variant_id").
		Join("products p ON p.id = v.product_id").
		Where(sq.Eq{"ce.user_id": userID}).
		OrderBy("ce.added_at").
		MustSql()

	var rows []CartItem
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select cart projection: %w", err)
	}

	items := make([]entities.CartItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, CartItemToEntity(row))
	}
	return items, nil
}
