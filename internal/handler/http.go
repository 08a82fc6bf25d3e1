package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/middleware"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type CartService interface {
	AddItem(ctx context.Context, userID, variantID string, quantity int) (entities.CartEntry, error)
	UpdateQuantity(ctx context.Context, userID, variantID string, quantity int) (entities.CartEntry, error)
	RemoveItem(ctx context.Context, userID, variantID string) error
	Clear(ctx context.Context, userID string) error
	ListItems(ctx context.Context, userID string) (entities.CartProjection, error)
}

type CheckoutService interface {
	Start(ctx context.Context, userID string) (entities.Checkout, error)
	SelectAddress(ctx context.Context, userID, checkoutID, addressID string, newAddress *entities.Address) (entities.Checkout, error)
	SubmitPayment(ctx context.Context, userID, checkoutID, provider, methodID string) (entities.CheckoutResult, error)
	ValidatePayment(ctx context.Context, userID, paymentID, validationData string) (entities.CheckoutResult, error)
	CreateOrder(ctx context.Context, userID, addressID, paymentID string) (entities.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (entities.Order, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	cart     CartService
	checkout CheckoutService
}

func NewHTTPHandler(logger *slog.Logger, cart CartService, checkout CheckoutService) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		cart:     cart,
		checkout: checkout,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Get("/healthz", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddItem)
			r.Patch("/items/{variant_id}", h.UpdateQuantity)
			r.Delete("/items/{variant_id}", h.RemoveItem)
			r.Delete("/", h.ClearCart)
		})

		r.Post("/checkout", h.StartCheckout)
		r.Post("/checkout/{checkout_id}/address", h.SelectAddress)
		r.Post("/checkout/{checkout_id}/payment", h.SubmitPayment)
		r.Post("/payments/{payment_id}/validate", h.ValidatePayment)

		r.Post("/orders", h.CreateOrder)
		r.Get("/orders/{order_id}", h.GetOrder)
	})
}

func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// GetCart возвращает витринную проекцию корзины текущего пользователя.
// @Summary      Получить корзину
// @Tags         cart
// @Success      200  {object}  Cart
// @Router       /cart [get]
func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserID(ctx)

	projection, err := h.cart.ListItems(ctx, userID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, CartProjectionToJSON(projection), http.StatusOK)
}

// AddItem добавляет вариант товара в корзину.
// @Summary      Добавить товар в корзину
// @Tags         cart
// @Param        request  body  AddItemRequest  true  "Вариант и количество"
// @Success      200  {object}  CartEntry
// @Failure      400  {object}  utils.ValidationErrorResponse
// @Failure      404  {object}  utils.ErrorResponse "Вариант не найден"
// @Failure      409  {object}  utils.ErrorResponse "Недостаточно стока"
// @Router       /cart/items [post]
func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserID(ctx)

	var req AddItemRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	entry, err := h.cart.AddItem(ctx, userID, req.VariantID, req.Quantity)
	if err != nil {
		cartMutations.WithLabelValues("add", "error").Inc()
		h.writeServiceError(ctx, w, err)
		return
	}

	cartMutations.WithLabelValues("add", "ok").Inc()
	utils.WriteJSON(w, CartEntryToJSON(entry), http.StatusOK)
}

// UpdateQuantity перезаписывает количество позиции корзины.
// @Summary      Изменить количество
// @Tags         cart
// @Param        variant_id  path  string  true  "Идентификатор варианта"
// @Param        request  body  UpdateQuantityRequest  true  "Новое количество"
// @Success      200  {object}  CartEntry
// @Failure      400  {object}  utils.ErrorResponse "Некорректное количество"
// @Router       /cart/items/{variant_id} [patch]
func (h *HTTPHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserID(ctx)
	variantID := chi.URLParam(r, "variant_id")

	var req UpdateQuantityRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.cart.UpdateQuantity(ctx, userID, variantID, req.Quantity)
	if err != nil {
		cartMutations.WithLabelValues("update", "error").Inc()
		h.writeServiceError(ctx, w, err)
		return
	}

	cartMutations.WithLabelValues("update", "ok").Inc()
	utils.WriteJSON(w, CartEntryToJSON(entry), http.StatusOK)
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserID(ctx)
	variantID := chi.URLParam(r, "variant_id")

	if err := h.cart.RemoveItem(ctx, userID, variantID); err != nil {
		cartMutations.WithLabelValues("remove", "error").Inc()
		h.writeServiceError(ctx, w, err)
		return
	}

	cartMutations.WithLabelValues("remove", "ok").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserID(ctx)

	if err := h.cart.Clear(ctx, userID); err != nil {
		cartMutations.WithLabelValues("clear", "error").Inc()
		h.writeServiceError(ctx, w, err)
		return
	}

	cartMutations.WithLabelValues("clear", "ok").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// StartCheckout открывает сессию оформления заказа.
// @Summary      Начать оформление
// @Tags         checkout
// @Success      201  {object}  Checkout
// @Failure      409  {object}  utils.ErrorResponse "Пустая корзина"
// @Router       /checkout [post]
func (h *HTTPHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserID(ctx)

	checkout, err := h.checkout.Start(ctx, userID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	checkoutsStarted.Inc()
	utils.WriteJSON(w, CheckoutToJSON(checkout), http.StatusCreated)
}

// SelectAddress выбирает адрес доставки для сессии оформления.
// @Summary      Выбрать адрес доставки
// @Tags         checkout
// @Param        checkout_id  path  string  true  "Идентификатор сессии"
// @Param        request  body  SelectAddressRequest  true  "Существующий или новый адрес"
// @Success      200  {object}  Checkout
// @Failure      400  {object}  utils.ErrorResponse "Неполный адрес"
// @Router       /checkout/{checkout_id}/address [post]
func (h *HTTPHandler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserID(ctx)
	checkoutID := chi.URLParam(r, "checkout_id")

	var req SelectAddressRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var newAddress *entities.Address
	if req.Address != nil {
		if err := h.validate.Struct(req.Address); err != nil {
			utils.WriteValidationError(w, err)
			return
		}
		address := AddressInputToEntity(*req.Address)
		newAddress = &address
	}

	checkout, err := h.checkout.SelectAddress(ctx, userID, checkoutID, req.AddressID, newAddress)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, CheckoutToJSON(checkout), http.StatusOK)
}

// SubmitPayment отправляет платёж и при расчёте коммитит заказ.
// @Summary      Отправить платёж
// @Tags         checkout
// @Param        checkout_id  path  string  true  "Идентификатор сессии"
// @Param        request  body  SubmitPaymentRequest  true  "Провайдер и метод оплаты"
// @Success      200  {object}  Order
// @Success      202  {object}  Payment "Требуется вторичное подтверждение"
// @Failure      402  {object}  utils.ErrorResponse "Платёж отклонён"
// @Failure      409  {object}  utils.ErrorResponse "Сток изменился или submit уже в полёте"
// @Failure      504  {object}  utils.ErrorResponse "Таймаут шлюза"
// @Router       /checkout/{checkout_id}/payment [post]
func (h *HTTPHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserID(ctx)
	checkoutID := chi.URLParam(r, "checkout_id")

	var req SubmitPaymentRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	result, err := h.checkout.SubmitPayment(ctx, userID, checkoutID, req.Provider, req.MethodID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.writeCheckoutResult(w, result)
}

// ValidatePayment завершает платёж со вторичным подтверждением.
// @Summary      Подтвердить платёж
// @Tags         checkout
// @Param        payment_id  path  string  true  "Идентификатор платежа"
// @Param        request  body  ValidatePaymentRequest  true  "Данные подтверждения"
// @Success      200  {object}  Order
// @Failure      410  {object}  utils.ErrorResponse "Окно подтверждения истекло"
// @Router       /payments/{payment_id}/validate [post]
func (h *HTTPHandler) ValidatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserID(ctx)
	paymentID := chi.URLParam(r, "payment_id")

	var req ValidatePaymentRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	result, err := h.checkout.ValidatePayment(ctx, userID, paymentID, req.ValidationData)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.writeCheckoutResult(w, result)
}

// CreateOrder материализует заказ по рассчитанному платежу.
// @Summary      Создать заказ
// @Tags         orders
// @Param        request  body  CreateOrderRequest  true  "Адрес и платёж"
// @Success      201  {object}  Order
// @Failure      409  {object}  utils.ErrorResponse "Сток изменился / платёж уже привязан"
// @Router       /orders [post]
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserID(ctx)

	var req CreateOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.checkout.CreateOrder(ctx, userID, req.AddressID, req.PaymentID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	ordersCommitted.Inc()
	utils.WriteJSON(w, OrderToJSON(order), http.StatusCreated)
}

// GetOrder возвращает заказ по идентификатору.
// @Summary      Получить заказ
// @Tags         orders
// @Param        order_id  path  string  true  "Идентификатор заказа"
// @Success      200  {object}  Order
// @Failure      404  {object}  utils.ErrorResponse "Заказ не найден"
// @Router       /orders/{order_id} [get]
func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserID(ctx)
	orderID := chi.URLParam(r, "order_id")

	if err := h.validate.Var(orderID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.checkout.GetOrder(ctx, userID, orderID)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, OrderToJSON(order), http.StatusOK)
}

func (h *HTTPHandler) writeCheckoutResult(w http.ResponseWriter, result entities.CheckoutResult) {
	if result.Order != nil {
		ordersCommitted.Inc()
		utils.WriteJSON(w, OrderToJSON(*result.Order), http.StatusOK)
		return
	}
	// Платёж в статусе VALIDATING: заказ появится после подтверждения.
	utils.WriteJSON(w, PaymentToJSON(result.Payment), http.StatusAccepted)
}

func (h *HTTPHandler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	// Проверяется первым: ошибка несёт в себе причину провала коммита
	// (например ErrStockChanged), и её ветка не должна перехватить кейс.
	case errors.Is(err, entities.ErrPaymentSettledOrderFailed):
		reconciliationsRequired.Inc()
		h.logger.ErrorContext(ctx, "payment settled but order commit failed", slog.Any("error", err))
		utils.WriteError(w, "order could not be committed, payment requires reconciliation", http.StatusInternalServerError)

	case errors.Is(err, entities.ErrInvalidQuantity),
		errors.Is(err, entities.ErrInvalidAddress):
		utils.WriteError(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, entities.ErrUnauthenticated):
		utils.WriteError(w, err.Error(), http.StatusUnauthorized)

	case errors.Is(err, entities.ErrPaymentDeclined):
		paymentsDeclined.Inc()
		utils.WriteError(w, err.Error(), http.StatusPaymentRequired)

	case errors.Is(err, entities.ErrVariantNotFound),
		errors.Is(err, entities.ErrCartEntryNotFound),
		errors.Is(err, entities.ErrCheckoutNotFound),
		errors.Is(err, entities.ErrAddressNotFound),
		errors.Is(err, entities.ErrPaymentNotFound),
		errors.Is(err, entities.ErrOrderNotFound):
		utils.WriteError(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, entities.ErrStockChanged):
		stockConflicts.Inc()
		utils.WriteError(w, err.Error(), http.StatusConflict)

	case errors.Is(err, entities.ErrOutOfStock),
		errors.Is(err, entities.ErrEmptyCart),
		errors.Is(err, entities.ErrSubmitInFlight),
		errors.Is(err, entities.ErrPaymentLinked),
		errors.Is(err, entities.ErrPaymentNotSettled),
		errors.Is(err, entities.ErrInvalidCheckoutState):
		utils.WriteError(w, err.Error(), http.StatusConflict)

	case errors.Is(err, entities.ErrValidationExpired):
		utils.WriteError(w, err.Error(), http.StatusGone)

	case errors.Is(err, entities.ErrPaymentTimeout):
		paymentTimeouts.Inc()
		utils.WriteError(w, err.Error(), http.StatusGatewayTimeout)

	default:
		h.logger.ErrorContext(ctx, "internal error", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
