package entities

import "time"

type CheckoutState string

const (
	CheckoutAddressSelection CheckoutState = "ADDRESS_SELECTION"
	CheckoutPaymentSelection CheckoutState = "PAYMENT_SELECTION"
	CheckoutPaymentSubmitted CheckoutState = "PAYMENT_SUBMITTED"
	CheckoutPaymentFailed    CheckoutState = "PAYMENT_FAILED"
	CheckoutOrderCommitted   CheckoutState = "ORDER_COMMITTED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutAddressSelection: {CheckoutPaymentSelection},
	CheckoutPaymentSelection: {CheckoutPaymentSelection, CheckoutPaymentSubmitted},
	CheckoutPaymentSubmitted: {CheckoutOrderCommitted, CheckoutPaymentFailed},
	CheckoutPaymentFailed:    {CheckoutPaymentSelection, CheckoutPaymentSubmitted},
	CheckoutOrderCommitted:   {},
}

// CanTransition reports whether the state machine allows moving to next.
func (s CheckoutState) CanTransition(next CheckoutState) bool {
	for _, allowed := range checkoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the checkout reached its final state.
func (s CheckoutState) Terminal() bool {
	return s == CheckoutOrderCommitted
}

type Checkout struct {
	ID        string
	UserID    string
	State     CheckoutState
	AddressID string
	PaymentID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckoutResult - итог отправки платежа. Order заполнен только когда
// заказ закоммичен; платёж в статусе VALIDATING возвращается без заказа.
type CheckoutResult struct {
	Order   *Order
	Payment Payment
}
