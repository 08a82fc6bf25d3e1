package repo

import (
	"database/sql"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

type CartEntry struct {
	UserID    string    `db:"user_id"`
	VariantID string    `db:"variant_id"`
	Quantity  int       `db:"quantity"`
	AddedAt   time.Time `db:"added_at"`
}

type CartItem struct {
	VariantID   string         `db:"variant_id"`
	ProductID   string         `db:"product_id"`
	ProductName string         `db:"product_name"`
	ImageURL    sql.NullString `db:"image_url"`
	Price       int64          `db:"price"`
	Quantity    int            `db:"quantity"`
	Subtotal    int64          `db:"subtotal"`
}

type ProductVariant struct {
	ID        string `db:"id"`
	ProductID string `db:"product_id"`
	Price     int64  `db:"price"`
	Stock     int    `db:"stock"`
}

type Address struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	Line1      string         `db:"line1"`
	Line2      sql.NullString `db:"line2"`
	City       string         `db:"city"`
	State      string         `db:"state"`
	Country    string         `db:"country"`
	PostalCode string         `db:"postal_code"`
	Default    bool           `db:"is_default"`
	CreatedAt  time.Time      `db:"created_at"`
}

type Payment struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	OrderID       sql.NullString `db:"order_id"`
	Status        string         `db:"status"`
	TransactionID string         `db:"transaction_id"`
	Amount        int64          `db:"amount"`
	Currency      string         `db:"currency"`
	Provider      string         `db:"provider"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

type Order struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	Status         string    `db:"status"`
	TotalAmount    int64     `db:"total_amount"`
	Currency       string    `db:"currency"`
	PaymentStatus  string    `db:"payment_status"`
	DeliveryStatus string    `db:"delivery_status"`
	AddressID      string    `db:"address_id"`
	PaymentID      string    `db:"payment_id"`
	CreatedAt      time.Time `db:"created_at"`
}

type OrderItem struct {
	ID              string `db:"id"`
	OrderID         string `db:"order_id"`
	VariantID       string `db:"variant_id"`
	Quantity        int    `db:"quantity"`
	PriceAtPurchase int64  `db:"price_at_purchase"`
}

func CartEntryToEntity(e CartEntry) entities.CartEntry {
	return entities.CartEntry{
		UserID:    e.UserID,
		VariantID: e.VariantID,
		Quantity:  e.Quantity,
		AddedAt:   e.AddedAt,
	}
}

func CartItemToEntity(i CartItem) entities.CartItem {
	return entities.CartItem{
		VariantID:   i.VariantID,
		ProductID:   i.ProductID,
		ProductName: i.ProductName,
		ImageURL:    nullStringToString(i.ImageURL),
		Price:       i.Price,
		Quantity:    i.Quantity,
		Subtotal:    i.Subtotal,
	}
}

func VariantToEntity(v ProductVariant) entities.ProductVariant {
	return entities.ProductVariant{
		ID:        v.ID,
		ProductID: v.ProductID,
		Price:     v.Price,
		Stock:     v.Stock,
	}
}

func AddressToEntity(a Address) entities.Address {
	return entities.Address{
		ID:         a.ID,
		UserID:     a.UserID,
		Line1:      a.Line1,
		Line2:      nullStringToString(a.Line2),
		City:       a.City,
		State:      a.State,
		Country:    a.Country,
		PostalCode: a.PostalCode,
		Default:    a.Default,
		CreatedAt:  a.CreatedAt,
	}
}

func PaymentToEntity(p Payment) entities.Payment {
	return entities.Payment{
		ID:            p.ID,
		UserID:        p.UserID,
		OrderID:       nullStringToString(p.OrderID),
		Status:        entities.PaymentStatus(p.Status),
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Provider:      p.Provider,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func OrderToEntity(o Order, items []OrderItem) entities.Order {
	order := entities.Order{
		ID:             o.ID,
		UserID:         o.UserID,
		Status:         entities.OrderStatus(o.Status),
		TotalAmount:    o.TotalAmount,
		Currency:       o.Currency,
		PaymentStatus:  entities.PaymentStatus(o.PaymentStatus),
		DeliveryStatus: entities.DeliveryStatus(o.DeliveryStatus),
		AddressID:      o.AddressID,
		PaymentID:      o.PaymentID,
		CreatedAt:      o.CreatedAt,
	}

	if len(items) > 0 {
		order.Items = make([]entities.OrderItem, 0, len(items))
		for _, it := range items {
			order.Items = append(order.Items, OrderItemToEntity(it))
		}
	}

	return order
}

func OrderItemToEntity(i OrderItem) entities.OrderItem {
	return entities.OrderItem{
		ID:              i.ID,
		OrderID:         i.OrderID,
		VariantID:       i.VariantID,
		Quantity:        i.Quantity,
		PriceAtPurchase: i.PriceAtPurchase,
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
