package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

func (r *postgresRepo) GetVariant(ctx context.Context, variantID string) (entities.ProductVariant, error) {
	query, args := r.qb.Select("id", "product_id", "price", "stock").
		From("product_variants").
		Where(sq.Eq{"id": variantID}).
		MustSql()

	var variant ProductVariant
	err := r.getContext(ctx, &variant, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ProductVariant{}, entities.ErrVariantNotFound
	}
	if err != nil {
		return entities.ProductVariant{}, fmt.Errorf("failed to get variant: %w", err)
	}
	return VariantToEntity(variant), nil
}

// DecrementStock списывает сток одним условным UPDATE: проверка и списание
// происходят атомарно, поэтому сток не может уйти в минус даже при гонке
// разных пользователей за один вариант.
func (r *postgresRepo) DecrementStock(ctx context.Context, variantID string, quantity int) (entities.ProductVariant, error) {
	query, args := r.qb.Update("product_variants").
		Set("stock", sq.Expr("stock - ?", quantity)).
		Where(sq.Eq{"id": variantID}).
		Where(sq.GtOrEq{"stock": quantity}).
		Suffix("RETURNING id, product_id, price, stock").
		MustSql()

	var variant ProductVariant
	err := r.getContext(ctx, &variant, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ProductVariant{}, entities.ErrStockChanged
	}
	if err != nil {
		return entities.ProductVariant{}, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return VariantToEntity(variant), nil
}
