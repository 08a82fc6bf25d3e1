package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/service"
)

// Client - адаптер внешнего платёжного шлюза. Каждый запрос несёт
// Idempotency-Key (transaction id платежа), поэтому ретраи после таймаута
// безопасны на стороне провайдера.
type Client struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
}

func New(logger *slog.Logger, cfg config.Gateway) *Client {
	return &Client{
		logger:  logger.With(slog.String("adapter", "payment_gateway")),
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
	}
}

type chargeRequest struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Provider      string `json:"provider"`
	MethodID      string `json:"method_id"`
}

type verifyRequest struct {
	ValidationData string `json:"validation_data"`
}

type gatewayResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (c *Client) Charge(ctx context.Context, req service.ChargeRequest) (service.ChargeResult, error) {
	body := chargeRequest{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Provider:      req.Provider,
		MethodID:      req.MethodID,
	}
	return c.post(ctx, c.baseURL+"/charges", req.TransactionID, body)
}

func (c *Client) Verify(ctx context.Context, transactionID, validationData string) (service.ChargeResult, error) {
	url := fmt.Sprintf("%s/charges/%s/verify", c.baseURL, transactionID)
	return c.post(ctx, url, transactionID, verifyRequest{ValidationData: validationData})
}

func (c *Client) post(ctx context.Context, url, idempotencyKey string, body any) (service.ChargeResult, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return service.ChargeResult{}, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return service.ChargeResult{}, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return service.ChargeResult{}, entities.ErrPaymentTimeout
		}
		return service.ChargeResult{}, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return service.ChargeResult{}, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var payload gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return service.ChargeResult{}, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	switch payload.Status {
	case "settled":
		return service.ChargeResult{Outcome: service.OutcomeSettled}, nil
	case "requires_validation":
		return service.ChargeResult{Outcome: service.OutcomeRequiresValidation}, nil
	case "declined":
		return service.ChargeResult{Outcome: service.OutcomeDeclined, Reason: payload.Reason}, nil
	case "expired":
		return service.ChargeResult{}, entities.ErrValidationExpired
	default:
		return service.ChargeResult{}, fmt.Errorf("unknown gateway status %q", payload.Status)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}

var _ service.PaymentGateway = (*Client)(nil)
