package handler

import (
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

type AddItemRequest struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required"`
}

type AddressInput struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	Country    string `json:"country" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
}

type SelectAddressRequest struct {
	AddressID string        `json:"address_id,omitempty"`
	Address   *AddressInput `json:"address,omitempty"`
}

type SubmitPaymentRequest struct {
	Provider string `json:"provider" validate:"required"`
	MethodID string `json:"method_id" validate:"required"`
}

type ValidatePaymentRequest struct {
	ValidationData string `json:"validation_data" validate:"required"`
}

type CreateOrderRequest struct {
	AddressID string `json:"address_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
}

// CartEntry запись корзины
type CartEntry struct {
	VariantID string    `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// CartItem позиция витринной проекции корзины
type CartItem struct {
	VariantID   string `json:"variant_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	ImageURL    string `json:"image_url,omitempty"`
	Price       int64  `json:"price"`
	Quantity    int    `json:"quantity"`
	Subtotal    int64  `json:"subtotal"`
}

// Cart проекция корзины целиком
type Cart struct {
	Items       []CartItem `json:"items"`
	TotalAmount int64      `json:"total_amount"`
}

// Checkout состояние сессии оформления заказа
type Checkout struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	AddressID string `json:"address_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

// Payment платёж
type Payment struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id,omitempty"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Provider      string    `json:"provider"`
	CreatedAt     time.Time `json:"created_at"`
}

// OrderItem позиция заказа
type OrderItem struct {
	VariantID       string `json:"variant_id"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
}

// Order заказ
type Order struct {
	ID             string      `json:"id"`
	Status         string      `json:"status"`
	TotalAmount    int64       `json:"total_amount"`
	Currency       string      `json:"currency"`
	PaymentStatus  string      `json:"payment_status"`
	DeliveryStatus string      `json:"delivery_status"`
	AddressID      string      `json:"address_id"`
	PaymentID      string      `json:"payment_id"`
	Items          []OrderItem `json:"items"`
	CreatedAt      time.Time   `json:"created_at"`
}

func AddressInputToEntity(a AddressInput) entities.Address {
	return entities.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		Country:    a.Country,
		PostalCode: a.PostalCode,
	}
}

func CartEntryToJSON(e entities.CartEntry) CartEntry {
	return CartEntry{
		VariantID: e.VariantID,
		Quantity:  e.Quantity,
		AddedAt:   e.AddedAt,
	}
}

func CartProjectionToJSON(p entities.CartProjection) Cart {
	items := make([]CartItem, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, CartItem{
			VariantID:   it.VariantID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ImageURL:    it.ImageURL,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
		})
	}
	return Cart{Items: items, TotalAmount: p.TotalAmount}
}

func CheckoutToJSON(c entities.Checkout) Checkout {
	return Checkout{
		ID:        c.ID,
		State:     string(c.State),
		AddressID: c.AddressID,
		PaymentID: c.PaymentID,
	}
}

func PaymentToJSON(p entities.Payment) Payment {
	return Payment{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Provider:      p.Provider,
		CreatedAt:     p.CreatedAt,
	}
}

func OrderToJSON(o entities.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItem{
			VariantID:       it.VariantID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		})
	}

	return Order{
		ID:             o.ID,
		Status:         string(o.Status),
		TotalAmount:    o.TotalAmount,
		Currency:       o.Currency,
		PaymentStatus:  string(o.PaymentStatus),
		DeliveryStatus: string(o.DeliveryStatus),
		AddressID:      o.AddressID,
		PaymentID:      o.PaymentID,
		Items:          items,
		CreatedAt:      o.CreatedAt,
	}
}
