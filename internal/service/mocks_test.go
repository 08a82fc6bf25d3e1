package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/service"
	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"
)

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// nopTxManager выполняет callback без реальной транзакции.
type nopTxManager struct{}

func (nopTxManager) BeginTx(ctx context.Context, _ *sql.TxOptions) (context.Context, trm.Transaction, error) {
	return ctx, nopTx{}, nil
}

func (nopTxManager) Do(ctx context.Context, callback func(ctx context.Context) error) error {
	return callback(ctx)
}

// countingTxManager дополнительно считает запуски Do.
type countingTxManager struct {
	mu    sync.Mutex
	calls int
}

func (m *countingTxManager) BeginTx(ctx context.Context, _ *sql.TxOptions) (context.Context, trm.Transaction, error) {
	return ctx, nopTx{}, nil
}

func (m *countingTxManager) Do(ctx context.Context, callback func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return callback(ctx)
}

func (m *countingTxManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *memCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *memCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// fakeStore - in-memory реализация репозитория корзины, вариантов и леджера.
// Все операции защищены одним мьютексом, как строки одной базы.
type fakeStore struct {
	mu sync.Mutex

	variants map[string]entities.ProductVariant
	entries  map[string]map[string]entities.CartEntry
	orders   map[string]entities.Order
	linked   map[string]string

	listErr      error
	decrementErr error
	insertErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		variants: make(map[string]entities.ProductVariant),
		entries:  make(map[string]map[string]entities.CartEntry),
		orders:   make(map[string]entities.Order),
		linked:   make(map[string]string),
	}
}

func (s *fakeStore) addVariant(id string, price int64, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[id] = entities.ProductVariant{ID: id, ProductID: "p-" + id, Price: price, Stock: stock}
}

func (s *fakeStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variants[id].Stock
}

func (s *fakeStore) cartSize(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[userID])
}

func (s *fakeStore) GetVariant(_ context.Context, variantID string) (entities.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[variantID]
	if !ok {
		return entities.ProductVariant{}, entities.ErrVariantNotFound
	}
	return v, nil
}

func (s *fakeStore) UpsertEntry(_ context.Context, userID, variantID string, delta int) (entities.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[userID] == nil {
		s.entries[userID] = make(map[string]entities.CartEntry)
	}
	entry, ok := s.entries[userID][variantID]
	if !ok {
		entry = entities.CartEntry{UserID: userID, VariantID: variantID, AddedAt: time.Now()}
	}
	entry.Quantity += delta
	s.entries[userID][variantID] = entry
	return entry, nil
}

func (s *fakeStore) SetQuantity(_ context.Context, userID, variantID string, quantity int) (entities.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID][variantID]
	if !ok {
		return entities.CartEntry{}, entities.ErrCartEntryNotFound
	}
	entry.Quantity = quantity
	s.entries[userID][variantID] = entry
	return entry, nil
}

func (s *fakeStore) DeleteEntry(_ context.Context, userID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[userID], variantID)
	return nil
}

func (s *fakeStore) DeleteEntries(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

func (s *fakeStore) ListProjection(_ context.Context, userID string) ([]entities.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	items := make([]entities.CartItem, 0, len(s.entries[userID]))
	for _, entry := range s.entries[userID] {
		v := s.variants[entry.VariantID]
		items = append(items, entities.CartItem{
			VariantID:   entry.VariantID,
			ProductID:   v.ProductID,
			ProductName: "product " + v.ProductID,
			Price:       v.Price,
			Quantity:    entry.Quantity,
			Subtotal:    v.Price * int64(entry.Quantity),
		})
	}
	return items, nil
}

func (s *fakeStore) ListEntriesForUpdate(_ context.Context, userID string) ([]entities.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]entities.CartEntry, 0, len(s.entries[userID]))
	for _, entry := range s.entries[userID] {
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *fakeStore) DecrementStock(_ context.Context, variantID string, quantity int) (entities.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.decrementErr != nil {
		return entities.ProductVariant{}, s.decrementErr
	}

	v, ok := s.variants[variantID]
	if !ok || v.Stock < quantity {
		return entities.ProductVariant{}, entities.ErrStockChanged
	}
	v.Stock -= quantity
	s.variants[variantID] = v
	return v, nil
}

func (s *fakeStore) InsertOrder(_ context.Context, o entities.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return s.insertErr
	}
	s.orders[o.ID] = o
	return nil
}

func (s *fakeStore) InsertOrderItems(_ context.Context, items []entities.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(items) == 0 {
		return fmt.Errorf("empty order items")
	}
	order, ok := s.orders[items[0].OrderID]
	if !ok {
		return fmt.Errorf("order %s not found", items[0].OrderID)
	}
	order.Items = items
	s.orders[order.ID] = order
	return nil
}

func (s *fakeStore) LinkPaymentToOrder(_ context.Context, paymentID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.linked[paymentID]; ok {
		return entities.ErrPaymentLinked
	}
	s.linked[paymentID] = orderID
	return nil
}

func (s *fakeStore) GetOrderByID(_ context.Context, orderID string) (entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	return o, nil
}

type fakePayments struct {
	mu       sync.Mutex
	payments map[string]entities.Payment
}

func newFakePayments() *fakePayments {
	return &fakePayments{payments: make(map[string]entities.Payment)}
}

func (p *fakePayments) InsertPayment(_ context.Context, payment entities.Payment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments[payment.ID] = payment
	return nil
}

func (p *fakePayments) GetPaymentByID(_ context.Context, paymentID string) (entities.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	payment, ok := p.payments[paymentID]
	if !ok {
		return entities.Payment{}, entities.ErrPaymentNotFound
	}
	return payment, nil
}

func (p *fakePayments) UpdatePaymentStatus(_ context.Context, paymentID string, status entities.PaymentStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	payment, ok := p.payments[paymentID]
	if !ok {
		return entities.ErrPaymentNotFound
	}
	payment.Status = status
	p.payments[paymentID] = payment
	return nil
}

func (p *fakePayments) status(paymentID string) entities.PaymentStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.payments[paymentID].Status
}

func (p *fakePayments) backdate(paymentID string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	payment := p.payments[paymentID]
	payment.CreatedAt = payment.CreatedAt.Add(-d)
	p.payments[paymentID] = payment
}

type fakeAddresses struct {
	mu        sync.Mutex
	addresses map[string]entities.Address
}

func newFakeAddresses() *fakeAddresses {
	return &fakeAddresses{addresses: make(map[string]entities.Address)}
}

func (a *fakeAddresses) GetAddress(_ context.Context, addressID, userID string) (entities.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	addr, ok := a.addresses[addressID]
	if !ok || addr.UserID != userID {
		return entities.Address{}, entities.ErrAddressNotFound
	}
	return addr, nil
}

func (a *fakeAddresses) GetDefaultAddress(_ context.Context, userID string) (entities.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, addr := range a.addresses {
		if addr.UserID == userID && addr.Default {
			return addr, nil
		}
	}
	return entities.Address{}, entities.ErrAddressNotFound
}

func (a *fakeAddresses) SaveAddress(_ context.Context, addr entities.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addresses[addr.ID] = addr
	return nil
}

type fakeGateway struct {
	chargeFn func(ctx context.Context, req service.ChargeRequest) (service.ChargeResult, error)
	verifyFn func(ctx context.Context, transactionID, validationData string) (service.ChargeResult, error)
}

func (g *fakeGateway) Charge(ctx context.Context, req service.ChargeRequest) (service.ChargeResult, error) {
	return g.chargeFn(ctx, req)
}

func (g *fakeGateway) Verify(ctx context.Context, transactionID, validationData string) (service.ChargeResult, error) {
	return g.verifyFn(ctx, transactionID, validationData)
}

type capturingPublisher struct {
	mu     sync.Mutex
	orders []entities.Order
	err    error
}

func (p *capturingPublisher) OrderCreated(_ context.Context, order entities.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.orders = append(p.orders, order)
	return nil
}

func (p *capturingPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}
