package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

func (r *postgresRepo) GetAddress(ctx context.Context, addressID, userID string) (entities.Address, error) {
	query, args := r.qb.Select(
		"id", "user_id", "line1", "line2", "city", "state",
		"country", "postal_code", "is_default", "created_at",
	).
		From("addresses").
		Where(sq.Eq{"id": addressID, "user_id": userID}).
		MustSql()

	var address Address
	err := r.getContext(ctx, &address, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Address{}, entities.ErrAddressNotFound
	}
	if err != nil {
		return entities.Address{}, fmt.Errorf("failed to get address: %w", err)
	}
	return AddressToEntity(address), nil
}

func (r *postgresRepo) GetDefaultAddress(ctx context.Context, userID string) (entities.Address, error) {
	query, args := r.qb.Select(
		"id", "user_id", "line1", "line2", "city", "state",
		"country", "postal_code", "is_default", "created_at",
	).
		From("addresses").
		Where(sq.Eq{"user_id": userID, "is_default": true}).
		Limit(1).
		MustSql()

	var address Address
	err := r.getContext(ctx, &address, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Address{}, entities.ErrAddressNotFound
	}
	if err != nil {
		return entities.Address{}, fmt.Errorf("failed to get default address: %w", err)
	}
	return AddressToEntity(address), nil
}

func (r *postgresRepo) SaveAddress(ctx context.Context, a entities.Address) error {
	query, args := r.qb.Insert("addresses").
		Columns("id", "user_id", "line1", "line2", "city", "state", "country", "postal_code", "is_default", "created_at").
		Values(a.ID, a.UserID, a.Line1, nullString(a.Line2), a.City, a.State, a.Country, a.PostalCode, a.Default, a.CreatedAt).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save address: %w", err)
	}
	return nil
}
