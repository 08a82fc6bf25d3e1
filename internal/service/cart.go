package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
)

type CartRepo interface {
	UpsertEntry(ctx context.Context, userID, variantID string, delta int) (entities.CartEntry, error)
	SetQuantity(ctx context.Context, userID, variantID string, quantity int) (entities.CartEntry, error)
	DeleteEntry(ctx context.Context, userID, variantID string) error
	DeleteEntries(ctx context.Context, userID string) error
	ListProjection(ctx context.Context, userID string) ([]entities.CartItem, error)
}

type VariantRepo interface {
	GetVariant(ctx context.Context, variantID string) (entities.ProductVariant, error)
}

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
}

type cartService struct {
	logger    *slog.Logger
	txManager trm.Manager
	carts     CartRepo
	variants  VariantRepo
	cache     Cache
}

func NewCartService(logger *slog.Logger, txManager trm.Manager, carts CartRepo, variants VariantRepo, cache Cache) *cartService {
	return &cartService{
		logger:    logger.With(slog.String("service", "cart")),
		txManager: txManager,
		carts:     carts,
		variants:  variants,
		cache:     cache,
	}
}

// AddItem инкрементирует запись (user, variant) или создаёт новую. Проверка
// стока выполняется после апсерта в той же транзакции: при нехватке вся
// мутация откатывается и корзина остаётся нетронутой.
func (s *cartService) AddItem(ctx context.Context, userID, variantID string, quantity int) (entities.CartEntry, error) {
	if quantity < 1 {
		return entities.CartEntry{}, entities.ErrInvalidQuantity
	}

	var entry entities.CartEntry
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		variant, err := s.variants.GetVariant(ctx, variantID)
		if err != nil {
			return err
		}

		entry, err = s.carts.UpsertEntry(ctx, userID, variantID, quantity)
		if err != nil {
			return fmt.Errorf("failed to add cart entry: %w", err)
		}

		if variant.Stock < entry.Quantity {
			return entities.ErrOutOfStock
		}
		return nil
	})
	if err != nil {
		return entities.CartEntry{}, err
	}

	s.cache.Delete(userID)
	s.logger.Debug("item added to cart",
		slog.String("user_id", userID),
		slog.String("variant_id", variantID),
		slog.Int("quantity", entry.Quantity),
	)
	return entry, nil
}

// UpdateQuantity перезаписывает количество. Для нуля caller должен
// использовать RemoveItem.
func (s *cartService) UpdateQuantity(ctx context.Context, userID, variantID string, quantity int) (entities.CartEntry, error) {
	if quantity <= 0 {
		return entities.CartEntry{}, entities.ErrInvalidQuantity
	}

	var entry entities.CartEntry
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		variant, err := s.variants.GetVariant(ctx, variantID)
		if err != nil {
			return err
		}
		if variant.Stock < quantity {
			return entities.ErrOutOfStock
		}

		entry, err = s.carts.SetQuantity(ctx, userID, variantID, quantity)
		return err
	})
	if err != nil {
		return entities.CartEntry{}, err
	}

	s.cache.Delete(userID)
	return entry, nil
}

// RemoveItem идемпотентен: отсутствие записи не считается ошибкой.
func (s *cartService) RemoveItem(ctx context.Context, userID, variantID string) error {
	if err := s.carts.DeleteEntry(ctx, userID, variantID); err != nil {
		return err
	}
	s.cache.Delete(userID)
	return nil
}

func (s *cartService) Clear(ctx context.Context, userID string) error {
	if err := s.carts.DeleteEntries(ctx, userID); err != nil {
		return err
	}
	s.cache.Delete(userID)
	return nil
}

// ListItems возвращает витринную проекцию корзины. Проекция кэшируется и
// не используется как источник истины при оформлении заказа.
func (s *cartService) ListItems(ctx context.Context, userID string) (entities.CartProjection, error) {
	if data, ok := s.cache.Get(userID); ok {
		var projection entities.CartProjection
		if err := projection.Unmarshal(data); err == nil {
			return projection, nil
		}
		// Битую запись просто выбрасываем и перечитываем из базы.
		s.cache.Delete(userID)
	}

	var items []entities.CartItem
	fn := func() error {
		var err error
		items, err = s.carts.ListProjection(ctx, userID)
		return err
	}
	cfg := utils.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxAttempts:  3,
		Multiplier:   2,
	}
	if err := utils.Retry(cfg, fn); err != nil {
		return entities.CartProjection{}, err
	}

	projection := entities.CartProjection{UserID: userID, Items: items}
	for _, item := range items {
		projection.TotalAmount += item.Subtotal
	}

	if data, err := projection.Marshal(); err == nil {
		s.cache.Set(userID, data)
	} else {
		s.logger.Error("failed to marshal cart projection", slog.Any("error", err))
	}

	return projection, nil
}
