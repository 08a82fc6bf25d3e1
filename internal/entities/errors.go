package entities

import "errors"

var (
	ErrVariantNotFound   = errors.New("product variant not found")
	ErrOutOfStock        = errors.New("not enough stock for requested quantity")
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
	ErrCartEntryNotFound = errors.New("cart entry not found")
	ErrEmptyCart         = errors.New("cart is empty")

	ErrAddressNotFound = errors.New("address not found")
	ErrInvalidAddress  = errors.New("address is missing required fields")

	ErrCheckoutNotFound     = errors.New("checkout session not found")
	ErrInvalidCheckoutState = errors.New("operation is not allowed in current checkout state")
	ErrSubmitInFlight       = errors.New("payment submission already in flight")

	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPaymentDeclined   = errors.New("payment declined by provider")
	ErrPaymentTimeout    = errors.New("payment gateway timed out")
	ErrPaymentNotSettled = errors.New("payment is not settled")
	ErrPaymentLinked     = errors.New("payment is already linked to an order")
	ErrValidationExpired = errors.New("payment validation window expired")

	ErrStockChanged = errors.New("stock changed during order commit")
	// ErrPaymentSettledOrderFailed означает, что деньги списаны, а заказ не создан.
	// Такой платёж нельзя повторять против шлюза - только ручная сверка.
	ErrPaymentSettledOrderFailed = errors.New("payment settled but order commit failed")

	ErrOrderNotFound = errors.New("order not found")

	ErrUnauthenticated = errors.New("no authenticated user")
)
