package entities

import "time"

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentValidating PaymentStatus = "VALIDATING"
	PaymentSettled    PaymentStatus = "SETTLED"
	PaymentFailed     PaymentStatus = "FAILED"
)

// Terminal reports whether the payment reached a final state.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSettled || s == PaymentFailed
}

// Payment создаётся в момент обращения к шлюзу. OrderID заполняется только
// после коммита заказа; до этого платёж и заказ связаны через TransactionID.
type Payment struct {
	ID            string
	UserID        string
	OrderID       string
	Status        PaymentStatus
	TransactionID string
	Amount        int64
	Currency      string
	Provider      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
