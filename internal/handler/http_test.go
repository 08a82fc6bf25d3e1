package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCartService struct {
	addItemFn        func(ctx context.Context, userID, variantID string, quantity int) (entities.CartEntry, error)
	updateQuantityFn func(ctx context.Context, userID, variantID string, quantity int) (entities.CartEntry, error)
	removeItemFn     func(ctx context.Context, userID, variantID string) error
	clearFn          func(ctx context.Context, userID string) error
	listItemsFn      func(ctx context.Context, userID string) (entities.CartProjection, error)
}

func (f *fakeCartService) AddItem(ctx context.Context, userID, variantID string, quantity int) (entities.CartEntry, error) {
	return f.addItemFn(ctx, userID, variantID, quantity)
}

func (f *fakeCartService) UpdateQuantity(ctx context.Context, userID, variantID string, quantity int) (entities.CartEntry, error) {
	return f.updateQuantityFn(ctx, userID, variantID, quantity)
}

func (f *fakeCartService) RemoveItem(ctx context.Context, userID, variantID string) error {
	return f.removeItemFn(ctx, userID, variantID)
}

func (f *fakeCartService) Clear(ctx context.Context, userID string) error {
	return f.clearFn(ctx, userID)
}

func (f *fakeCartService) ListItems(ctx context.Context, userID string) (entities.CartProjection, error) {
	return f.listItemsFn(ctx, userID)
}

type fakeCheckoutService struct {
	startFn           func(ctx context.Context, userID string) (entities.Checkout, error)
	selectAddressFn   func(ctx context.Context, userID, checkoutID, addressID string, newAddress *entities.Address) (entities.Checkout, error)
	submitPaymentFn   func(ctx context.Context, userID, checkoutID, provider, methodID string) (entities.CheckoutResult, error)
	validatePaymentFn func(ctx context.Context, userID, paymentID, validationData string) (entities.CheckoutResult, error)
	createOrderFn     func(ctx context.Context, userID, addressID, paymentID string) (entities.Order, error)
	getOrderFn        func(ctx context.Context, userID, orderID string) (entities.Order, error)
}

func (f *fakeCheckoutService) Start(ctx context.Context, userID string) (entities.Checkout, error) {
	return f.startFn(ctx, userID)
}

func (f *fakeCheckoutService) SelectAddress(ctx context.Context, userID, checkoutID, addressID string, newAddress *entities.Address) (entities.Checkout, error) {
	return f.selectAddressFn(ctx, userID, checkoutID, addressID, newAddress)
}

func (f *fakeCheckoutService) SubmitPayment(ctx context.Context, userID, checkoutID, provider, methodID string) (entities.CheckoutResult, error) {
	return f.submitPaymentFn(ctx, userID, checkoutID, provider, methodID)
}

func (f *fakeCheckoutService) ValidatePayment(ctx context.Context, userID, paymentID, validationData string) (entities.CheckoutResult, error) {
	return f.validatePaymentFn(ctx, userID, paymentID, validationData)
}

func (f *fakeCheckoutService) CreateOrder(ctx context.Context, userID, addressID, paymentID string) (entities.Order, error) {
	return f.createOrderFn(ctx, userID, addressID, paymentID)
}

func (f *fakeCheckoutService) GetOrder(ctx context.Context, userID, orderID string) (entities.Order, error) {
	return f.getOrderFn(ctx, userID, orderID)
}

func newRouter(cart *fakeCartService, checkout *fakeCheckoutService) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.NewHTTPHandler(logger, cart, checkout)

	r := chi.NewRouter()
	h.Init(r)
	return r
}

func doRequest(t *testing.T, r chi.Router, method, path, body, userID string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	res := rr.Result()
	t.Cleanup(func() { res.Body.Close() })

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(raw)
}

func TestHTTPHandler_Auth(t *testing.T) {
	r := newRouter(&fakeCartService{}, &fakeCheckoutService{})

	res, body := doRequest(t, r, http.MethodGet, "/cart", "", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Contains(t, body, "unauthenticated")
}

func TestHTTPHandler_Cart(t *testing.T) {
	t.Run("get cart", func(t *testing.T) {
		cart := &fakeCartService{
			listItemsFn: func(_ context.Context, userID string) (entities.CartProjection, error) {
				assert.Equal(t, "u1", userID)
				return entities.CartProjection{
					UserID:      userID,
					Items:       []entities.CartItem{{VariantID: "v1", Quantity: 2, Price: 700, Subtotal: 1400}},
					TotalAmount: 1400,
				}, nil
			},
		}
		r := newRouter(cart, &fakeCheckoutService{})

		res, body := doRequest(t, r, http.MethodGet, "/cart", "", "u1")
		assert.Equal(t, http.StatusOK, res.StatusCode)

		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &resp))
		assert.Equal(t, float64(1400), resp["total_amount"])
	})

	t.Run("add item", func(t *testing.T) {
		testCases := []struct {
			name       string
			body       string
			err        error
			wantStatus int
		}{
			{
				name:       "success",
				body:       `{"variant_id":"v1","quantity":2}`,
				wantStatus: http.StatusOK,
			},
			{
				name:       "missing quantity",
				body:       `{"variant_id":"v1"}`,
				wantStatus: http.StatusBadRequest,
			},
			{
				name:       "malformed json",
				body:       `{`,
				wantStatus: http.StatusBadRequest,
			},
			{
				name:       "variant not found",
				body:       `{"variant_id":"missing","quantity":1}`,
				err:        entities.ErrVariantNotFound,
				wantStatus: http.StatusNotFound,
			},
			{
				name:       "out of stock",
				body:       `{"variant_id":"v1","quantity":100}`,
				err:        entities.ErrOutOfStock,
				wantStatus: http.StatusConflict,
			},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				cart := &fakeCartService{
					addItemFn: func(_ context.Context, userID, variantID string, quantity int) (entities.CartEntry, error) {
						if tc.err != nil {
							return entities.CartEntry{}, tc.err
						}
						return entities.CartEntry{UserID: userID, VariantID: variantID, Quantity: quantity}, nil
					},
				}
				r := newRouter(cart, &fakeCheckoutService{})

				res, _ := doRequest(t, r, http.MethodPost, "/cart/items", tc.body, "u1")
				assert.Equal(t, tc.wantStatus, res.StatusCode)
			})
		}
	})

	t.Run("update quantity maps invalid quantity", func(t *testing.T) {
		cart := &fakeCartService{
			updateQuantityFn: func(_ context.Context, _, _ string, quantity int) (entities.CartEntry, error) {
				if quantity <= 0 {
					return entities.CartEntry{}, entities.ErrInvalidQuantity
				}
				return entities.CartEntry{VariantID: "v1", Quantity: quantity}, nil
			},
		}
		r := newRouter(cart, &fakeCheckoutService{})

		res, body := doRequest(t, r, http.MethodPatch, "/cart/items/v1", `{"quantity":0}`, "u1")
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Contains(t, body, "quantity must be greater than zero")

		res, _ = doRequest(t, r, http.MethodPatch, "/cart/items/v1", `{"quantity":3}`, "u1")
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("remove item returns no content", func(t *testing.T) {
		cart := &fakeCartService{
			removeItemFn: func(_ context.Context, _, variantID string) error {
				assert.Equal(t, "v1", variantID)
				return nil
			},
		}
		r := newRouter(cart, &fakeCheckoutService{})

		res, _ := doRequest(t, r, http.MethodDelete, "/cart/items/v1", "", "u1")
		assert.Equal(t, http.StatusNoContent, res.StatusCode)
	})
}

func TestHTTPHandler_Checkout(t *testing.T) {
	t.Run("start checkout", func(t *testing.T) {
		checkout := &fakeCheckoutService{
			startFn: func(_ context.Context, userID string) (entities.Checkout, error) {
				return entities.Checkout{ID: "chk-1", UserID: userID, State: entities.CheckoutAddressSelection}, nil
			},
		}
		r := newRouter(&fakeCartService{}, checkout)

		res, body := doRequest(t, r, http.MethodPost, "/checkout", "", "u1")
		assert.Equal(t, http.StatusCreated, res.StatusCode)
		assert.Contains(t, body, `"state":"ADDRESS_SELECTION"`)
	})

	t.Run("start with empty cart", func(t *testing.T) {
		checkout := &fakeCheckoutService{
			startFn: func(_ context.Context, _ string) (entities.Checkout, error) {
				return entities.Checkout{}, entities.ErrEmptyCart
			},
		}
		r := newRouter(&fakeCartService{}, checkout)

		res, _ := doRequest(t, r, http.MethodPost, "/checkout", "", "u1")
		assert.Equal(t, http.StatusConflict, res.StatusCode)
	})

	t.Run("select inline address", func(t *testing.T) {
		checkout := &fakeCheckoutService{
			selectAddressFn: func(_ context.Context, _, checkoutID, addressID string, newAddress *entities.Address) (entities.Checkout, error) {
				assert.Equal(t, "chk-1", checkoutID)
				assert.Empty(t, addressID)
				require.NotNil(t, newAddress)
				assert.Equal(t, "Main st 1", newAddress.Line1)
				return entities.Checkout{ID: checkoutID, State: entities.CheckoutPaymentSelection, AddressID: "addr-1"}, nil
			},
		}
		r := newRouter(&fakeCartService{}, checkout)

		body := `{"address":{"line1":"Main st 1","city":"Springfield","state":"IL","country":"US","postal_code":"62704"}}`
		res, got := doRequest(t, r, http.MethodPost, "/checkout/chk-1/address", body, "u1")
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, got, `"state":"PAYMENT_SELECTION"`)
	})

	t.Run("incomplete inline address fails validation", func(t *testing.T) {
		r := newRouter(&fakeCartService{}, &fakeCheckoutService{})

		body := `{"address":{"line1":"Main st 1"}}`
		res, got := doRequest(t, r, http.MethodPost, "/checkout/chk-1/address", body, "u1")
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Contains(t, got, "invalid request")
	})

	t.Run("submit payment status mapping", func(t *testing.T) {
		order := entities.Order{ID: "ord-1", TotalAmount: 2000}
		validating := entities.Payment{ID: "pay-1", Status: entities.PaymentValidating}

		testCases := []struct {
			name       string
			result     entities.CheckoutResult
			err        error
			wantStatus int
			wantBody   string
		}{
			{
				name:       "settled returns order",
				result:     entities.CheckoutResult{Order: &order},
				wantStatus: http.StatusOK,
				wantBody:   `"id":"ord-1"`,
			},
			{
				name:       "validating returns accepted",
				result:     entities.CheckoutResult{Payment: validating},
				wantStatus: http.StatusAccepted,
				wantBody:   `"status":"VALIDATING"`,
			},
			{
				name:       "declined",
				err:        entities.ErrPaymentDeclined,
				wantStatus: http.StatusPaymentRequired,
			},
			{
				name:       "timeout",
				err:        entities.ErrPaymentTimeout,
				wantStatus: http.StatusGatewayTimeout,
			},
			{
				name:       "submit in flight",
				err:        entities.ErrSubmitInFlight,
				wantStatus: http.StatusConflict,
			},
			{
				name:       "stock changed",
				err:        entities.ErrStockChanged,
				wantStatus: http.StatusConflict,
			},
			{
				name:       "settled but commit failed",
				err:        entities.ErrPaymentSettledOrderFailed,
				wantStatus: http.StatusInternalServerError,
				wantBody:   "reconciliation",
			},
			{
				// причина провала коммита не должна маскировать сверку
				name:       "settled but commit failed on stock conflict",
				err:        fmt.Errorf("%w: %w", entities.ErrPaymentSettledOrderFailed, entities.ErrStockChanged),
				wantStatus: http.StatusInternalServerError,
				wantBody:   "reconciliation",
			},
			{
				name:       "unknown checkout",
				err:        entities.ErrCheckoutNotFound,
				wantStatus: http.StatusNotFound,
			},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				checkout := &fakeCheckoutService{
					submitPaymentFn: func(_ context.Context, _, _, provider, methodID string) (entities.CheckoutResult, error) {
						assert.Equal(t, "card", provider)
						assert.Equal(t, "pm-1", methodID)
						if tc.err != nil {
							return entities.CheckoutResult{}, tc.err
						}
						return tc.result, nil
					},
				}
				r := newRouter(&fakeCartService{}, checkout)

				res, body := doRequest(t, r, http.MethodPost, "/checkout/chk-1/payment", `{"provider":"card","method_id":"pm-1"}`, "u1")
				assert.Equal(t, tc.wantStatus, res.StatusCode)
				if tc.wantBody != "" {
					assert.Contains(t, body, tc.wantBody)
				}
			})
		}
	})

	t.Run("validate payment expired", func(t *testing.T) {
		checkout := &fakeCheckoutService{
			validatePaymentFn: func(_ context.Context, _, paymentID, validationData string) (entities.CheckoutResult, error) {
				assert.Equal(t, "pay-1", paymentID)
				assert.Equal(t, "otp-123", validationData)
				return entities.CheckoutResult{}, entities.ErrValidationExpired
			},
		}
		r := newRouter(&fakeCartService{}, checkout)

		res, _ := doRequest(t, r, http.MethodPost, "/payments/pay-1/validate", `{"validation_data":"otp-123"}`, "u1")
		assert.Equal(t, http.StatusGone, res.StatusCode)
	})
}

func TestHTTPHandler_Orders(t *testing.T) {
	t.Run("create order", func(t *testing.T) {
		checkout := &fakeCheckoutService{
			createOrderFn: func(_ context.Context, userID, addressID, paymentID string) (entities.Order, error) {
				assert.Equal(t, "u1", userID)
				assert.Equal(t, "addr-1", addressID)
				assert.Equal(t, "pay-1", paymentID)
				return entities.Order{ID: "ord-1", UserID: userID, TotalAmount: 2000}, nil
			},
		}
		r := newRouter(&fakeCartService{}, checkout)

		res, body := doRequest(t, r, http.MethodPost, "/orders", `{"address_id":"addr-1","payment_id":"pay-1"}`, "u1")
		assert.Equal(t, http.StatusCreated, res.StatusCode)
		assert.Contains(t, body, `"id":"ord-1"`)
	})

	t.Run("create order with linked payment", func(t *testing.T) {
		checkout := &fakeCheckoutService{
			createOrderFn: func(_ context.Context, _, _, _ string) (entities.Order, error) {
				return entities.Order{}, entities.ErrPaymentLinked
			},
		}
		r := newRouter(&fakeCartService{}, checkout)

		res, _ := doRequest(t, r, http.MethodPost, "/orders", `{"address_id":"addr-1","payment_id":"pay-1"}`, "u1")
		assert.Equal(t, http.StatusConflict, res.StatusCode)
	})

	t.Run("get order", func(t *testing.T) {
		checkout := &fakeCheckoutService{
			getOrderFn: func(_ context.Context, _, orderID string) (entities.Order, error) {
				if orderID != "ord-1" {
					return entities.Order{}, entities.ErrOrderNotFound
				}
				return entities.Order{ID: orderID}, nil
			},
		}
		r := newRouter(&fakeCartService{}, checkout)

		res, _ := doRequest(t, r, http.MethodGet, "/orders/ord-1", "", "u1")
		assert.Equal(t, http.StatusOK, res.StatusCode)

		res, _ = doRequest(t, r, http.MethodGet, "/orders/missing", "", "u1")
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})
}
