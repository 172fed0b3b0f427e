package order

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
	apperrors "github.com/fundacjapwm/paw-aid-cart/pkg/errors"
	"github.com/fundacjapwm/paw-aid-cart/pkg/httpclient"
)

func testHTTPClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{
		Timeout:         2 * time.Second,
		MaxRetries:      0,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    time.Millisecond,
		MaxConnsPerHost: 10,
	})
}

func testLines() domain.Lines {
	return domain.Lines{
		{ProductID: "prod-1", ProductName: "Dry food 10kg", UnitPrice: 8900, Quantity: 2},
		{ProductID: "prod-2", ProductName: "Flea collar", UnitPrice: 2500, Quantity: 1, GroupID: "bundle-7", GroupLabel: "Starter kit"},
	}
}

func TestClientCreate(t *testing.T) {
	var got createOrderRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"order-42"}}`))
	}))
	defer srv.Close()

	client := NewClient(testHTTPClient(), srv.URL, slog.New(slog.DiscardHandler))

	orderID, err := client.Create(context.Background(), "user-1", testLines(), 20300)
	require.NoError(t, err)
	assert.Equal(t, "order-42", orderID)

	assert.NotEmpty(t, got.RequestID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, int64(20300), got.TotalAmount)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "prod-2", got.Lines[1].ProductID)
	assert.Equal(t, "bundle-7", got.Lines[1].GroupID)
}

func TestClientCreateServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"OUT_OF_STOCK","message":"product prod-1 is out of stock"}}`))
	}))
	defer srv.Close()

	client := NewClient(testHTTPClient(), srv.URL, slog.New(slog.DiscardHandler))

	_, err := client.Create(context.Background(), "user-1", testLines(), 20300)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PURCHASE_FAILED", appErr.Code)
	assert.Contains(t, appErr.Message, "out of stock")
}

func TestClientCreateBadStatusWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(testHTTPClient(), srv.URL, slog.New(slog.DiscardHandler))

	_, err := client.Create(context.Background(), "user-1", testLines(), 20300)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPurchaseFailed))
	assert.Contains(t, err.Error(), "status 400")
}

func TestClientCreateMissingOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	client := NewClient(testHTTPClient(), srv.URL, slog.New(slog.DiscardHandler))

	_, err := client.Create(context.Background(), "user-1", testLines(), 20300)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPurchaseFailed))
}

func TestClientCreateUnreachable(t *testing.T) {
	client := NewClient(testHTTPClient(), "http://127.0.0.1:1", slog.New(slog.DiscardHandler))

	_, err := client.Create(context.Background(), "user-1", testLines(), 20300)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPurchaseFailed))
}
