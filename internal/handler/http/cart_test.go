package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
	"github.com/fundacjapwm/paw-aid-cart/internal/engine"
	"github.com/fundacjapwm/paw-aid-cart/internal/event"
	apperrors "github.com/fundacjapwm/paw-aid-cart/pkg/errors"
	"github.com/fundacjapwm/paw-aid-cart/pkg/httputil"
)

// ============================================================================
// Test fakes
// ============================================================================

type fakeSnapshot struct {
	mu    sync.Mutex
	carts map[string]domain.Lines
}

func newFakeSnapshot() *fakeSnapshot {
	return &fakeSnapshot{carts: make(map[string]domain.Lines)}
}

func (s *fakeSnapshot) Load(_ context.Context, sessionID string) (domain.Lines, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carts[sessionID].Clone(), nil
}

func (s *fakeSnapshot) Save(_ context.Context, sessionID string, lines domain.Lines) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(lines) == 0 {
		delete(s.carts, sessionID)
		return nil
	}
	s.carts[sessionID] = lines.Clone()
	return nil
}

func (s *fakeSnapshot) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}

type fakeRemote struct {
	mu       sync.Mutex
	fetch    domain.Lines
	fetchErr error
	replaced []domain.Lines
	cleared  int
}

func (r *fakeRemote) FetchActive(_ context.Context, _ string, _ time.Duration) (domain.Lines, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetch.Clone(), r.fetchErr
}

func (r *fakeRemote) ReplaceAll(_ context.Context, _ string, lines domain.Lines) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaced = append(r.replaced, lines.Clone())
	return nil
}

func (r *fakeRemote) Clear(_ context.Context, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared++
	return nil
}

type fakeOrders struct {
	orderID string
	err     error
}

func (o *fakeOrders) Create(_ context.Context, _ string, _ domain.Lines, _ int64) (string, error) {
	return o.orderID, o.err
}

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type testEnv struct {
	router http.Handler
	remote *fakeRemote
	orders *fakeOrders
}

func setupCartRouter(t *testing.T) *testEnv {
	t.Helper()

	remote := &fakeRemote{}
	orders := &fakeOrders{orderID: "order-1"}
	manager := engine.NewManager(newFakeSnapshot(), remote, orders, event.Nop{}, 24*time.Hour, 30*time.Minute, testLogger())
	t.Cleanup(func() {
		_ = manager.Close(context.Background())
	})

	handler := NewCartHandler(manager, testLogger())

	r := chi.NewRouter()
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(SessionIDFromHeader)

		r.Get("/", handler.GetCart)
		r.Delete("/", handler.ClearCart)

		r.Post("/lines", handler.AddLine)
		r.Post("/lines/bulk", handler.BulkAddLines)
		r.Put("/lines/{productId}", handler.UpdateLineQuantity)
		r.Delete("/lines/{productId}", handler.RemoveLine)

		r.Delete("/groups/{groupId}", handler.RemoveGroup)
		r.Get("/groups/{groupId}/added", handler.GroupAddedStatus)
		r.Post("/groups/{groupId}/added", handler.MarkGroupAdded)

		r.Post("/checkout", handler.Checkout)

		r.Post("/identity", handler.SetIdentity)
		r.Delete("/identity", handler.ClearIdentity)
	})

	return &testEnv{router: r, remote: remote, orders: orders}
}

func (env *testEnv) do(t *testing.T, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeMutation(t *testing.T, rec *httptest.ResponseRecorder) MutationResult {
	t.Helper()
	var resp struct {
		Data MutationResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Data
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) CartView {
	t.Helper()
	var resp struct {
		Data CartView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func addLineBody(productID string, quantity, maxQuantity int) AddLineRequest {
	return AddLineRequest{
		ProductID:   productID,
		ProductName: "Dry food 10kg",
		UnitPrice:   8900,
		Quantity:    quantity,
		MaxQuantity: maxQuantity,
	}
}

// ============================================================================
// Tests
// ============================================================================

func TestGetCartEmpty(t *testing.T) {
	env := setupCartRouter(t)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	assert.Empty(t, cart.Lines)
	assert.Zero(t, cart.TotalAmount)
	assert.Zero(t, cart.ItemCount)
}

func TestMissingSessionHeader(t *testing.T) {
	env := setupCartRouter(t)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestAddLine(t *testing.T) {
	env := setupCartRouter(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", addLineBody("p1", 2, 5))

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeMutation(t, rec)
	assert.Equal(t, domain.OutcomeSuccess, result.Outcome.Kind)
	require.Len(t, result.Cart.Lines, 1)
	assert.Equal(t, 2, result.Cart.Lines[0].Quantity)
	assert.Equal(t, int64(2*8900), result.Cart.TotalAmount)
}

func TestAddLineValidation(t *testing.T) {
	env := setupCartRouter(t)

	body := addLineBody("", 1, 0)
	rec := env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", errResp.Code)
	assert.Contains(t, errResp.Fields, "ProductID")
}

func TestAddLineLimitReached(t *testing.T) {
	env := setupCartRouter(t)

	env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", addLineBody("p1", 5, 5))
	rec := env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", addLineBody("p1", 1, 5))

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeMutation(t, rec)
	assert.Equal(t, domain.OutcomeLimitReached, result.Outcome.Kind)
	assert.Equal(t, 5, result.Outcome.Limit)
	require.Len(t, result.Cart.Lines, 1)
	assert.Equal(t, 5, result.Cart.Lines[0].Quantity)
}

func TestBulkAddEmptyList(t *testing.T) {
	env := setupCartRouter(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/lines/bulk", "sess-1", BulkAddRequest{GroupLabel: "Rex"})

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeMutation(t, rec)
	assert.Equal(t, domain.OutcomeNothingToDo, result.Outcome.Kind)
	assert.Equal(t, "Rex", result.Outcome.GroupLabel)
}

func TestBulkAddSetsBounds(t *testing.T) {
	env := setupCartRouter(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/lines/bulk", "sess-1", BulkAddRequest{
		GroupLabel: "Rex",
		Lines: []BulkAddLine{
			{ProductID: "p1", ProductName: "Dry food 10kg", UnitPrice: 8900, MaxQuantity: 4, GroupID: "rex", GroupLabel: "Rex"},
			{ProductID: "p2", ProductName: "Leash", UnitPrice: 1500, GroupID: "rex", GroupLabel: "Rex"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeMutation(t, rec)
	assert.Equal(t, domain.OutcomeSuccess, result.Outcome.Kind)
	require.Len(t, result.Cart.Lines, 2)
	assert.Equal(t, 4, result.Cart.Lines[0].Quantity)
	assert.Equal(t, 1, result.Cart.Lines[1].Quantity)
}

func TestUpdateLineQuantityWithGroup(t *testing.T) {
	env := setupCartRouter(t)

	body := addLineBody("p1", 1, 10)
	body.GroupID = "rex"
	env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", body)

	rec := env.do(t, http.MethodPut, "/api/v1/cart/lines/p1?group_id=rex", "sess-1", UpdateQuantityRequest{Quantity: 7})

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeMutation(t, rec)
	assert.Equal(t, domain.OutcomeSuccess, result.Outcome.Kind)
	require.Len(t, result.Cart.Lines, 1)
	assert.Equal(t, 7, result.Cart.Lines[0].Quantity)
}

func TestRemoveLine(t *testing.T) {
	env := setupCartRouter(t)

	env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", addLineBody("p1", 2, 5))
	rec := env.do(t, http.MethodDelete, "/api/v1/cart/lines/p1", "sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeMutation(t, rec)
	assert.Equal(t, domain.OutcomeRemoved, result.Outcome.Kind)
	assert.Empty(t, result.Cart.Lines)
}

func TestRemoveGroup(t *testing.T) {
	env := setupCartRouter(t)

	body := addLineBody("p1", 2, 5)
	body.GroupID = "rex"
	body.GroupLabel = "Rex"
	env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", body)

	rec := env.do(t, http.MethodDelete, "/api/v1/cart/groups/rex?label=Rex", "sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeMutation(t, rec)
	assert.Equal(t, domain.OutcomeRemoved, result.Outcome.Kind)
	assert.Equal(t, "Rex", result.Outcome.GroupLabel)
	assert.Equal(t, 2, result.Outcome.RemovedQuantity)
	assert.Empty(t, result.Cart.Lines)
}

func TestClearCart(t *testing.T) {
	env := setupCartRouter(t)

	env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", addLineBody("p1", 2, 5))
	rec := env.do(t, http.MethodDelete, "/api/v1/cart", "sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeMutation(t, rec).Cart.Lines)
}

func TestCheckoutSuccess(t *testing.T) {
	env := setupCartRouter(t)
	env.orders.orderID = "order-9"

	env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", addLineBody("p1", 2, 5))
	rec := env.do(t, http.MethodPost, "/api/v1/cart/checkout", "sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data CheckoutResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "order-9", resp.Data.OrderID)
	assert.Empty(t, resp.Data.Cart.Lines)
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	env := setupCartRouter(t)
	env.orders.err = apperrors.PurchaseFailed("order service unavailable")

	env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", addLineBody("p1", 2, 5))
	rec := env.do(t, http.MethodPost, "/api/v1/cart/checkout", "sess-1", nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "PURCHASE_FAILED", decodeError(t, rec).Code)

	cart := decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart", "sess-1", nil))
	require.Len(t, cart.Lines, 1)
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := setupCartRouter(t)
	env.orders.err = errors.New("should not be called")

	rec := env.do(t, http.MethodPost, "/api/v1/cart/checkout", "sess-1", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestGroupAddedMarkers(t *testing.T) {
	env := setupCartRouter(t)

	rec := env.do(t, http.MethodGet, "/api/v1/cart/groups/rex/added", "sess-1", nil)
	var resp struct {
		Data map[string]bool `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Data["added"])

	env.do(t, http.MethodPost, "/api/v1/cart/groups/rex/added", "sess-1", nil)

	rec = env.do(t, http.MethodGet, "/api/v1/cart/groups/rex/added", "sess-1", nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Data["added"])
}

func TestSetIdentityRemoteWins(t *testing.T) {
	env := setupCartRouter(t)
	env.remote.fetch = domain.Lines{{ProductID: "remote-1", ProductName: "Vet visit", UnitPrice: 12000, Quantity: 1}}

	env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", addLineBody("local-1", 2, 5))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/identity", nil)
	req.Header.Set("X-Session-ID", "sess-1")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	assert.Equal(t, "user-1", cart.UserID)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "remote-1", cart.Lines[0].ProductID)
}

func TestSetIdentityRequiresHeader(t *testing.T) {
	env := setupCartRouter(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/identity", "sess-1", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestClearIdentity(t *testing.T) {
	env := setupCartRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/identity", nil)
	req.Header.Set("X-Session-ID", "sess-1")
	req.Header.Set("X-User-ID", "user-1")
	env.router.ServeHTTP(httptest.NewRecorder(), req)

	rec := env.do(t, http.MethodDelete, "/api/v1/cart/identity", "sess-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	assert.Empty(t, cart.UserID)
	assert.Empty(t, cart.Lines)
}

func TestSessionsAreIsolated(t *testing.T) {
	env := setupCartRouter(t)

	env.do(t, http.MethodPost, "/api/v1/cart/lines", "sess-1", addLineBody("p1", 2, 5))

	cart := decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart", "sess-2", nil))
	assert.Empty(t, cart.Lines)
}

func TestUnsupportedMediaType(t *testing.T) {
	env := setupCartRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/lines", bytes.NewBufferString("<xml/>"))
	req.Header.Set("X-Session-ID", "sess-1")
	req.Header.Set("Content-Type", "text/xml")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
