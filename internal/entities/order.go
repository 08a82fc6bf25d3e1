package entities

import "time"

type OrderStatus string

const (
	OrderCreated OrderStatus = "CREATED"
)

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
)

// Order материализуется атомарно вместе со своими позициями:
// либо коммитится целиком (позиции, списание стока, очистка корзины),
// либо не создаётся вовсе.
type Order struct {
	ID             string
	UserID         string
	Status         OrderStatus
	TotalAmount    int64
	Currency       string
	PaymentStatus  PaymentStatus
	DeliveryStatus DeliveryStatus
	AddressID      string
	PaymentID      string
	CreatedAt      time.Time

	Items []OrderItem
}

// OrderItem fixes PriceAtPurchase at commit time so later price changes
// do not rewrite historical orders.
type OrderItem struct {
	ID              string
	OrderID         string
	VariantID       string
	Quantity        int
	PriceAtPurchase int64
}
