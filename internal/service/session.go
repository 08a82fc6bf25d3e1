package service

import (
	"context"
	"sync"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"

	"github.com/google/uuid"
)

const sessionJanitorInterval = time.Minute

// checkoutSession хранит состояние конечного автомата одной попытки
// оформления заказа плюс one-shot guard на отправку платежа.
type checkoutSession struct {
	mu       sync.Mutex
	checkout entities.Checkout

	inFlight   bool
	inFlightAt time.Time

	// transaction id попытки, завершившейся таймаутом шлюза
	retryTxnID string
}

func (s *checkoutSession) Snapshot() entities.Checkout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkout
}

func (s *checkoutSession) Advance(next entities.CheckoutState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.checkout.State.CanTransition(next) {
		return entities.ErrInvalidCheckoutState
	}
	s.checkout.State = next
	s.checkout.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *checkoutSession) SetAddress(addressID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkout.AddressID = addressID
	s.checkout.UpdatedAt = time.Now().UTC()
}

func (s *checkoutSession) SetPayment(paymentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkout.PaymentID = paymentID
	s.checkout.UpdatedAt = time.Now().UTC()
}

// BeginSubmit захватывает guard на отправку платежа. Повторный submit,
// пока первый в полёте, отклоняется. Протухший guard (шлюз не ответил
// за timeout) перехватывается - попытка считается провалившейся.
func (s *checkoutSession) BeginSubmit(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight && time.Since(s.inFlightAt) < timeout {
		return entities.ErrSubmitInFlight
	}
	s.inFlight = true
	s.inFlightAt = time.Now()
	return nil
}

func (s *checkoutSession) EndSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

// StashRetryTransaction запоминает transaction id попытки, исход которой
// неизвестен. Повторный submit обязан уйти в шлюз с тем же id, иначе
// дедупликация на стороне провайдера не сработает и списание задвоится.
func (s *checkoutSession) StashRetryTransaction(transactionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryTxnID = transactionID
}

// TakeRetryTransaction отдаёт отложенный transaction id и очищает его.
// Пустая строка означает, что попытка должна получить новый id.
func (s *checkoutSession) TakeRetryTransaction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.retryTxnID
	s.retryTxnID = ""
	return id
}

// sessionStore - in-memory хранилище сессий оформления. Брошенные сессии
// протухают по TTL без побочных эффектов.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*checkoutSession
	ttl      time.Duration
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*checkoutSession),
		ttl:      ttl,
	}
}

func (st *sessionStore) Create(userID string) *checkoutSession {
	now := time.Now().UTC()
	session := &checkoutSession{
		checkout: entities.Checkout{
			ID:        uuid.NewString(),
			UserID:    userID,
			State:     entities.CheckoutAddressSelection,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	st.mu.Lock()
	st.sessions[session.checkout.ID] = session
	st.mu.Unlock()

	return session
}

func (st *sessionStore) Get(checkoutID, userID string) (*checkoutSession, error) {
	st.mu.RLock()
	session, ok := st.sessions[checkoutID]
	st.mu.RUnlock()

	if !ok {
		return nil, entities.ErrCheckoutNotFound
	}

	snap := session.Snapshot()
	if snap.UserID != userID || st.expired(snap) {
		return nil, entities.ErrCheckoutNotFound
	}
	return session, nil
}

func (st *sessionStore) FindByPayment(paymentID, userID string) (*checkoutSession, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	for _, session := range st.sessions {
		snap := session.Snapshot()
		if snap.PaymentID == paymentID && snap.UserID == userID && !st.expired(snap) {
			return session, true
		}
	}
	return nil, false
}

func (st *sessionStore) expired(c entities.Checkout) bool {
	return time.Since(c.UpdatedAt) > st.ttl
}

// Start запускает фоновую очистку протухших сессий до отмены ctx.
func (st *sessionStore) Start(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(sessionJanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (st *sessionStore) cleanup() {
	st.mu.Lock()
	defer st.mu.Unlock()

	for id, session := range st.sessions {
		if st.expired(session.Snapshot()) {
			delete(st.sessions, id)
		}
	}
}
