// Package checkout submits confirmed funnel orders to the order backend.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
)

const (
	defaultTimeout           = 8 * time.Second
	defaultIdempotencyHeader = "Idempotency-Key"
)

var (
	// ErrOrderRejected is returned when the backend refuses the order (4xx).
	ErrOrderRejected = errors.New("checkout: order rejected")
	// ErrBackendUnavailable is returned for transport failures and 5xx responses.
	ErrBackendUnavailable = errors.New("checkout: order backend unavailable")
)

// Options tunes the client.
type Options struct {
	Timeout           time.Duration
	IdempotencyHeader string
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// Client posts orders to the backend. With no base URL it accepts orders
// locally.
type Client struct {
	baseURL string
	header  string
	http    *http.Client
	logger  *zap.Logger
}

// OrderRequest carries a confirmed funnel and request metadata.
type OrderRequest struct {
	FunnelID       string
	SessionID      string
	Locale         string
	IdempotencyKey string
	Confirmation   funnel.Confirmation
}

// OrderResponse is the backend's acknowledgement.
type OrderResponse struct {
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	Total     int64     `json:"total"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewClient constructs an order client. When baseURL is empty, the client serves mock data.
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if strings.TrimSpace(opts.IdempotencyHeader) == "" {
		opts.IdempotencyHeader = defaultIdempotencyHeader
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		header:  opts.IdempotencyHeader,
		http:    opts.HTTPClient,
		logger:  opts.Logger.Named("checkout"),
	}
}

// Fake reports whether orders are accepted locally.
func (c *Client) Fake() bool { return c == nil || c.baseURL == "" }

// SubmitOrder sends the confirmation to <base>/orders.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	key := ensureIdempotencyKey(req.IdempotencyKey, req.FunnelID)
	if c.Fake() {
		resp := fakeOrderResponse(req.Confirmation)
		c.logger.Info("order accepted locally",
			zap.String("order_id", resp.OrderID),
			zap.String("funnel_id", req.FunnelID),
			zap.String("idempotency_key", key),
		)
		return resp, nil
	}

	endpoint, err := url.JoinPath(c.baseURL, "orders")
	if err != nil {
		return OrderResponse{}, err
	}
	payload, err := json.Marshal(orderPayload{
		FunnelID:     req.FunnelID,
		SessionID:    req.SessionID,
		Locale:       req.Locale,
		Confirmation: req.Confirmation,
	})
	if err != nil {
		return OrderResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return OrderResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(c.header, key)
	if req.Locale != "" {
		httpReq.Header.Set("Accept-Language", req.Locale)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 500:
		return OrderResponse{}, fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, drainError(resp.Body))
	case resp.StatusCode >= 400:
		return OrderResponse{}, fmt.Errorf("%w: status %d: %s", ErrOrderRejected, resp.StatusCode, drainError(resp.Body))
	}

	var out OrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return OrderResponse{}, fmt.Errorf("checkout: decode order response: %w", err)
	}
	out.OrderID = strings.TrimSpace(out.OrderID)
	out.Status = defaultString(out.Status, "pending")
	if out.Currency == "" {
		out.Currency = req.Confirmation.Quote.Currency
	}
	if out.Total == 0 {
		out.Total = req.Confirmation.Quote.Total
	}
	return out, nil
}

type orderPayload struct {
	FunnelID     string              `json:"funnelId"`
	SessionID    string              `json:"sessionId,omitempty"`
	Locale       string              `json:"locale,omitempty"`
	Confirmation funnel.Confirmation `json:"confirmation"`
}

// ensureIdempotencyKey prefers the caller's key, then one derived from the
// funnel so retries of the same funnel share it.
func ensureIdempotencyKey(key, funnelID string) string {
	if key = strings.TrimSpace(key); key != "" {
		return key
	}
	if funnelID = strings.TrimSpace(funnelID); funnelID != "" {
		return "funnel_" + funnelID
	}
	return randomID("ord")
}

func defaultString(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return strings.TrimSpace(val)
}

func drainError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
