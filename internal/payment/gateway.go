// Package payment reads payment intent status from the payment provider.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Gateway is the read side of the payment provider the booking core needs.
type Gateway interface {
	CheckStatus(ctx context.Context, paymentID string) (*domain.PaymentIntent, error)
}

type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGateway returns a client for the provider's REST API. Per-call
// deadlines come from the caller's context; timeout only bounds a call whose
// context has none.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type intentResponse struct {
	ID          string    `json:"id"`
	BookingRef  string    `json:"booking_ref"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (g *HTTPGateway) CheckStatus(ctx context.Context, paymentID string) (*domain.PaymentIntent, error) {
	logger.ExternalServiceCall("payment", "CheckStatus", "paymentID", paymentID)

	intent, err := g.checkStatus(ctx, paymentID)
	logger.ExternalServiceResult("payment", "CheckStatus", err, "paymentID", paymentID)
	return intent, err
}

func (g *HTTPGateway) checkStatus(ctx context.Context, paymentID string) (*domain.PaymentIntent, error) {
	endpoint := fmt.Sprintf("%s/payments/%s", g.baseURL, url.PathEscape(paymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build payment request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPaymentNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var body intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}

	status := domain.PaymentStatus(strings.ToLower(body.Status))
	switch status {
	case domain.PaymentStatusPending, domain.PaymentStatusPaid, domain.PaymentStatusFailed:
	default:
		return nil, fmt.Errorf("payment %s has unknown status %q", paymentID, body.Status)
	}

	id := body.ID
	if id == "" {
		id = paymentID
	}
	return &domain.PaymentIntent{
		PaymentID:   id,
		BookingRef:  body.BookingRef,
		AmountCents: body.AmountCents,
		Status:      status,
		ExpiresAt:   body.ExpiresAt,
	}, nil
}
