package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"

	"github.com/google/uuid"
)

type ChargeOutcome string

const (
	OutcomeSettled            ChargeOutcome = "settled"
	OutcomeRequiresValidation ChargeOutcome = "requires_validation"
	OutcomeDeclined           ChargeOutcome = "declined"
)

type ChargeRequest struct {
	TransactionID string
	Amount        int64
	Currency      string
	Provider      string
	MethodID      string
}

type ChargeResult struct {
	Outcome ChargeOutcome
	Reason  string
}

// PaymentGateway - внешний платёжный шлюз. Вызовы идемпотентны по
// TransactionID, поэтому повтор после таймаута не списывает деньги дважды.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Verify(ctx context.Context, transactionID, validationData string) (ChargeResult, error)
}

type OrderLedger interface {
	CommitOrder(ctx context.Context, userID, addressID string, payment entities.Payment) (entities.Order, error)
}

type AddressRepo interface {
	GetAddress(ctx context.Context, addressID, userID string) (entities.Address, error)
	GetDefaultAddress(ctx context.Context, userID string) (entities.Address, error)
	SaveAddress(ctx context.Context, a entities.Address) error
}

type PaymentRepo interface {
	InsertPayment(ctx context.Context, p entities.Payment) error
	GetPaymentByID(ctx context.Context, paymentID string) (entities.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID string, status entities.PaymentStatus) error
}

type OrderRepo interface {
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
}

type OrderPublisher interface {
	OrderCreated(ctx context.Context, order entities.Order) error
}

type CheckoutConfig struct {
	Currency      string
	SessionTTL    time.Duration
	SubmitTimeout time.Duration
	ValidationTTL time.Duration
}

type checkoutService struct {
	logger    *slog.Logger
	cfg       CheckoutConfig
	txManager trm.Manager
	sessions  *sessionStore
	carts     CartRepo
	addresses AddressRepo
	payments  PaymentRepo
	orders    OrderRepo
	gateway   PaymentGateway
	ledger    OrderLedger
	publisher OrderPublisher
}

func NewCheckoutService(
	logger *slog.Logger,
	cfg CheckoutConfig,
	txManager trm.Manager,
	carts CartRepo,
	addresses AddressRepo,
	payments PaymentRepo,
	orders OrderRepo,
	gateway PaymentGateway,
	ledger OrderLedger,
	publisher OrderPublisher,
) *checkoutService {
	return &checkoutService{
		logger:    logger.With(slog.String("service", "checkout")),
		cfg:       cfg,
		txManager: txManager,
		sessions:  newSessionStore(cfg.SessionTTL),
		carts:     carts,
		addresses: addresses,
		payments:  payments,
		orders:    orders,
		gateway:   gateway,
		ledger:    ledger,
		publisher: publisher,
	}
}

// SessionJanitor возвращает стартер фоновой очистки протухших сессий.
func (s *checkoutService) SessionJanitor() *sessionStore {
	return s.sessions
}

func (s *checkoutService) Start(ctx context.Context, userID string) (entities.Checkout, error) {
	items, err := s.carts.ListProjection(ctx, userID)
	if err != nil {
		return entities.Checkout{}, err
	}
	if len(items) == 0 {
		return entities.Checkout{}, entities.ErrEmptyCart
	}

	session := s.sessions.Create(userID)
	checkout := session.Snapshot()

	s.logger.Debug("checkout started",
		slog.String("checkout_id", checkout.ID),
		slog.String("user_id", userID),
	)
	return checkout, nil
}

// SelectAddress переводит сессию в PAYMENT_SELECTION. Адрес берётся по id,
// из нового инлайн-адреса (тогда он сначала сохраняется) или из дефолтного.
func (s *checkoutService) SelectAddress(ctx context.Context, userID, checkoutID, addressID string, newAddress *entities.Address) (entities.Checkout, error) {
	session, err := s.sessions.Get(checkoutID, userID)
	if err != nil {
		return entities.Checkout{}, err
	}

	var address entities.Address
	switch {
	case newAddress != nil:
		address = *newAddress
		address.ID = uuid.NewString()
		address.UserID = userID
		address.CreatedAt = time.Now().UTC()
		if err := address.Validate(); err != nil {
			return entities.Checkout{}, err
		}
		if err := s.addresses.SaveAddress(ctx, address); err != nil {
			return entities.Checkout{}, err
		}
	case addressID != "":
		address, err = s.addresses.GetAddress(ctx, addressID, userID)
		if err != nil {
			return entities.Checkout{}, err
		}
	default:
		address, err = s.addresses.GetDefaultAddress(ctx, userID)
		if err != nil {
			return entities.Checkout{}, err
		}
	}

	if err := address.Validate(); err != nil {
		return entities.Checkout{}, err
	}
	if err := session.Advance(entities.CheckoutPaymentSelection); err != nil {
		return entities.Checkout{}, err
	}
	session.SetAddress(address.ID)

	return session.Snapshot(), nil
}

// SubmitPayment - единственный переход с внешним эффектом. Сумма считается
// из актуального снапшота корзины в момент отправки, а не из более раннего.
func (s *checkoutService) SubmitPayment(ctx context.Context, userID, checkoutID, provider, methodID string) (entities.CheckoutResult, error) {
	session, err := s.sessions.Get(checkoutID, userID)
	if err != nil {
		return entities.CheckoutResult{}, err
	}
	if session.Snapshot().AddressID == "" {
		return entities.CheckoutResult{}, entities.ErrInvalidCheckoutState
	}

	if err := session.BeginSubmit(s.cfg.SubmitTimeout); err != nil {
		return entities.CheckoutResult{}, err
	}

	// Снапшот корзины читается в транзакции, чтобы сумма к списанию
	// соответствовала одному консистентному состоянию строк.
	var amount int64
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		items, err := s.carts.ListProjection(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return entities.ErrEmptyCart
		}
		for _, item := range items {
			amount += item.Subtotal
		}
		return nil
	})
	if err != nil {
		session.EndSubmit()
		return entities.CheckoutResult{}, err
	}

	if err := session.Advance(entities.CheckoutPaymentSubmitted); err != nil {
		session.EndSubmit()
		return entities.CheckoutResult{}, err
	}

	// Повтор после таймаута несёт тот же transaction id: шлюз дедуплицирует
	// по нему, и зависшая попытка не превращается во второе списание.
	transactionID := session.TakeRetryTransaction()
	if transactionID == "" {
		transactionID = uuid.NewString()
	}

	now := time.Now().UTC()
	payment := entities.Payment{
		ID:            uuid.NewString(),
		UserID:        userID,
		Status:        entities.PaymentPending,
		TransactionID: transactionID,
		Amount:        amount,
		Currency:      s.cfg.Currency,
		Provider:      provider,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.payments.InsertPayment(ctx, payment); err != nil {
		// До шлюза не дошли, id остаётся пригодным для следующей попытки.
		session.StashRetryTransaction(payment.TransactionID)
		session.EndSubmit()
		return entities.CheckoutResult{}, err
	}
	session.SetPayment(payment.ID)

	result, err := s.gateway.Charge(ctx, ChargeRequest{
		TransactionID: payment.TransactionID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		Provider:      provider,
		MethodID:      methodID,
	})
	// Guard отпускается сразу после ответа шлюза, до коммита заказа.
	session.EndSubmit()

	if err != nil {
		if errors.Is(err, entities.ErrPaymentTimeout) {
			// Исход у провайдера неизвестен: попытка помечается FAILED,
			// но её transaction id обязан пережить ретрай.
			session.StashRetryTransaction(payment.TransactionID)
		}
		return entities.CheckoutResult{}, s.failPayment(ctx, session, payment, err)
	}

	switch result.Outcome {
	case OutcomeDeclined:
		return entities.CheckoutResult{}, s.failPayment(ctx, session, payment, entities.ErrPaymentDeclined)

	case OutcomeRequiresValidation:
		if err := s.payments.UpdatePaymentStatus(ctx, payment.ID, entities.PaymentValidating); err != nil {
			return entities.CheckoutResult{}, err
		}
		payment.Status = entities.PaymentValidating
		return entities.CheckoutResult{Payment: payment}, nil

	case OutcomeSettled:
		if err := s.payments.UpdatePaymentStatus(ctx, payment.ID, entities.PaymentSettled); err != nil {
			return entities.CheckoutResult{}, err
		}
		payment.Status = entities.PaymentSettled
		return s.commitSettled(ctx, session, payment)

	default:
		return entities.CheckoutResult{}, s.failPayment(ctx, session, payment, fmt.Errorf("unexpected gateway outcome %q", result.Outcome))
	}
}

// ValidatePayment завершает платёж, требующий вторичного подтверждения.
func (s *checkoutService) ValidatePayment(ctx context.Context, userID, paymentID, validationData string) (entities.CheckoutResult, error) {
	payment, err := s.payments.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return entities.CheckoutResult{}, err
	}
	if payment.UserID != userID {
		return entities.CheckoutResult{}, entities.ErrPaymentNotFound
	}
	if payment.Status != entities.PaymentValidating {
		return entities.CheckoutResult{}, entities.ErrPaymentNotSettled
	}

	if time.Since(payment.CreatedAt) > s.cfg.ValidationTTL {
		if err := s.payments.UpdatePaymentStatus(ctx, payment.ID, entities.PaymentFailed); err != nil {
			s.logger.Error("failed to expire payment", slog.Any("error", err), slog.String("payment_id", payment.ID))
		}
		return entities.CheckoutResult{}, entities.ErrValidationExpired
	}

	result, err := s.gateway.Verify(ctx, payment.TransactionID, validationData)
	if err != nil {
		return entities.CheckoutResult{}, err
	}

	session, hasSession := s.sessions.FindByPayment(payment.ID, userID)

	switch result.Outcome {
	case OutcomeSettled:
		if err := s.payments.UpdatePaymentStatus(ctx, payment.ID, entities.PaymentSettled); err != nil {
			return entities.CheckoutResult{}, err
		}
		payment.Status = entities.PaymentSettled
		if !hasSession {
			// Сессия протухла: платёж завершён, заказ создаётся
			// через createOrder.
			return entities.CheckoutResult{Payment: payment}, nil
		}
		return s.commitSettled(ctx, session, payment)

	default:
		var failErr error = entities.ErrPaymentDeclined
		if hasSession {
			failErr = s.failPayment(ctx, session, payment, failErr)
		} else if err := s.payments.UpdatePaymentStatus(ctx, payment.ID, entities.PaymentFailed); err != nil {
			s.logger.Error("failed to mark payment failed", slog.Any("error", err), slog.String("payment_id", payment.ID))
		}
		return entities.CheckoutResult{}, failErr
	}
}

// CreateOrder - прямой путь материализации заказа по уже рассчитанному
// платежу и выбранному адресу.
func (s *checkoutService) CreateOrder(ctx context.Context, userID, addressID, paymentID string) (entities.Order, error) {
	payment, err := s.payments.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return entities.Order{}, err
	}
	if payment.UserID != userID {
		return entities.Order{}, entities.ErrPaymentNotFound
	}
	if payment.OrderID != "" {
		return entities.Order{}, entities.ErrPaymentLinked
	}
	if payment.Status != entities.PaymentSettled {
		return entities.Order{}, entities.ErrPaymentNotSettled
	}

	address, err := s.addresses.GetAddress(ctx, addressID, userID)
	if err != nil {
		return entities.Order{}, err
	}
	if err := address.Validate(); err != nil {
		return entities.Order{}, err
	}

	order, err := s.ledger.CommitOrder(ctx, userID, address.ID, payment)
	if err != nil {
		return entities.Order{}, err
	}

	s.publishOrderCreated(ctx, order)
	return order, nil
}

func (s *checkoutService) GetOrder(ctx context.Context, userID, orderID string) (entities.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}
	if order.UserID != userID {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	return order, nil
}

// commitSettled коммитит заказ по рассчитанному платежу. Провал коммита
// после расчёта - случай ручной сверки: платёж остаётся рассчитанным и
// непривязанным, повторных обращений к шлюзу не делается.
func (s *checkoutService) commitSettled(ctx context.Context, session *checkoutSession, payment entities.Payment) (entities.CheckoutResult, error) {
	snap := session.Snapshot()

	order, err := s.ledger.CommitOrder(ctx, snap.UserID, snap.AddressID, payment)
	if err != nil {
		s.logger.Error("order commit failed after payment settled, manual reconciliation required",
			slog.Any("error", err),
			slog.String("payment_id", payment.ID),
			slog.String("transaction_id", payment.TransactionID),
			slog.String("user_id", snap.UserID),
		)
		return entities.CheckoutResult{}, fmt.Errorf("%w: %w", entities.ErrPaymentSettledOrderFailed, err)
	}

	if err := session.Advance(entities.CheckoutOrderCommitted); err != nil {
		// Сессия уже ушла из PAYMENT_SUBMITTED - заказ при этом закоммичен,
		// поэтому наружу отдаём успех.
		s.logger.Warn("checkout state advance failed after commit", slog.Any("error", err))
	}

	s.publishOrderCreated(ctx, order)
	return entities.CheckoutResult{Order: &order, Payment: payment}, nil
}

// failPayment помечает платёж FAILED и возвращает сессию на шаг оплаты.
// Корзина и сток при этом не трогаются.
func (s *checkoutService) failPayment(ctx context.Context, session *checkoutSession, payment entities.Payment, cause error) error {
	if err := s.payments.UpdatePaymentStatus(ctx, payment.ID, entities.PaymentFailed); err != nil {
		s.logger.Error("failed to mark payment failed", slog.Any("error", err), slog.String("payment_id", payment.ID))
	}
	if err := session.Advance(entities.CheckoutPaymentFailed); err != nil {
		s.logger.Warn("checkout state advance failed", slog.Any("error", err))
	}
	return cause
}

func (s *checkoutService) publishOrderCreated(ctx context.Context, order entities.Order) {
	if s.publisher == nil {
		return
	}
	// Публикация best-effort: заказ уже закоммичен, ошибка доставки события
	// не должна провалить запрос.
	if err := s.publisher.OrderCreated(ctx, order); err != nil {
		s.logger.Error("failed to publish order created event",
			slog.Any("error", err),
			slog.String("order_id", order.ID),
		)
	}
}
