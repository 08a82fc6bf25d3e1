package entities

// ProductVariant is read-only for this service except for the conditional
// stock decrement performed by the order ledger. Price is in minor units.
type ProductVariant struct {
	ID        string
	ProductID string
	Price     int64
	Stock     int
}
