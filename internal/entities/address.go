package entities

import "time"

type Address struct {
	ID         string
	UserID     string
	Line1      string
	Line2      string
	City       string
	State      string
	Country    string
	PostalCode string
	Default    bool
	CreatedAt  time.Time
}

// Validate проверяет структурную полноту адреса перед оформлением заказа.
func (a Address) Validate() error {
	if a.Line1 == "" || a.City == "" || a.State == "" || a.Country == "" || a.PostalCode == "" {
		return ErrInvalidAddress
	}
	return nil
}
