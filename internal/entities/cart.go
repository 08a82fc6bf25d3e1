package entities

import (
	"bytes"
	"encoding/gob"
	"time"
)

// CartEntry - запись корзины, максимум одна на пару (user, variant).
type CartEntry struct {
	UserID    string
	VariantID string
	Quantity  int
	AddedAt   time.Time
}

// CartItem is the denormalized display projection of a cart entry.
// It is rebuilt from the store after every mutation and is never
// treated as authoritative at checkout time.
type CartItem struct {
	VariantID   string
	ProductID   string
	ProductName string
	ImageURL    string
	Price       int64
	Quantity    int
	Subtotal    int64
}

type CartProjection struct {
	UserID      string
	Items       []CartItem
	TotalAmount int64
}

func (p *CartProjection) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *CartProjection) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	return dec.Decode(p)
}

func init() {
	gob.Register(CartProjection{})
	gob.Register(CartItem{})
}
