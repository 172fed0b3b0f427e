package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
	apperrors "github.com/fundacjapwm/paw-aid-cart/pkg/errors"
)

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client calls the fulfillment service to create orders.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates an order-creation client against the given base URL.
func NewClient(httpClient HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		logger:  logger,
	}
}

type createOrderRequest struct {
	RequestID   string       `json:"request_id"`
	UserID      string       `json:"user_id,omitempty"`
	Lines       domain.Lines `json:"lines"`
	TotalAmount int64        `json:"total_amount"`
}

type createOrderResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Create posts an order snapshot of the cart. The request carries a
// generated request ID so the fulfillment service can deduplicate retries.
func (c *Client) Create(ctx context.Context, userID string, lines domain.Lines, total int64) (string, error) {
	body, err := json.Marshal(createOrderRequest{
		RequestID:   uuid.New().String(),
		UserID:      userID,
		Lines:       lines,
		TotalAmount: total,
	})
	if err != nil {
		return "", fmt.Errorf("marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", apperrors.PurchaseFailed(fmt.Sprintf("order service unreachable: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperrors.PurchaseFailed(fmt.Sprintf("read order response: %v", err))
	}

	var parsed createOrderResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			return "", apperrors.PurchaseFailed(fmt.Sprintf("order service: %s", parsed.Error.Message))
		}
		return "", apperrors.PurchaseFailed(fmt.Sprintf("order service returned status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperrors.PurchaseFailed(fmt.Sprintf("decode order response: %v", err))
	}
	if parsed.Data.ID == "" {
		return "", apperrors.PurchaseFailed("order service returned no order id")
	}

	c.logger.InfoContext(ctx, "order created",
		slog.String("order_id", parsed.Data.ID),
		slog.Int("line_count", len(lines)),
		slog.Int64("total_amount", total),
	)

	return parsed.Data.ID, nil
}
