package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
	"github.com/fundacjapwm/paw-aid-cart/internal/engine"
	"github.com/fundacjapwm/paw-aid-cart/pkg/httputil"
	"github.com/fundacjapwm/paw-aid-cart/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints. Each request
// resolves its session's engine through the manager; the engine applies the
// mutation and the handler renders the resulting cart plus the mutation
// outcome.
type CartHandler struct {
	manager *engine.Manager
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(manager *engine.Manager, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		manager: manager,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddLineRequest is the JSON request body for adding a product line.
type AddLineRequest struct {
	ProductID   string `json:"product_id" validate:"required"`
	ProductName string `json:"product_name" validate:"required,min=1,max=500"`
	UnitPrice   int64  `json:"unit_price" validate:"gte=0"`
	Quantity    int    `json:"quantity" validate:"gte=0"`
	MaxQuantity int    `json:"max_quantity" validate:"gte=0"`
	GroupID     string `json:"group_id"`
	GroupLabel  string `json:"group_label"`
	Silent      bool   `json:"silent"`
}

// BulkAddRequest is the JSON request body for adding a group's wishlist in
// full. An empty line list is valid and reports nothing to do.
type BulkAddRequest struct {
	GroupLabel string        `json:"group_label"`
	Lines      []BulkAddLine `json:"lines" validate:"dive"`
}

// BulkAddLine is one wishlist entry in a bulk add.
type BulkAddLine struct {
	ProductID   string `json:"product_id" validate:"required"`
	ProductName string `json:"product_name" validate:"required,min=1,max=500"`
	UnitPrice   int64  `json:"unit_price" validate:"gte=0"`
	MaxQuantity int    `json:"max_quantity" validate:"gte=0"`
	GroupID     string `json:"group_id"`
	GroupLabel  string `json:"group_label"`
}

// UpdateQuantityRequest is the JSON request body for setting a line's
// quantity. Zero and negative values remove the line.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// --- Response DTOs ---

// CartView is the cart as rendered to the storefront.
type CartView struct {
	Lines       domain.Lines `json:"lines"`
	TotalAmount int64        `json:"total_amount"`
	ItemCount   int          `json:"item_count"`
	UserID      string       `json:"user_id,omitempty"`
}

// MutationResult pairs the post-mutation cart with the outcome the UI
// renders as a notification.
type MutationResult struct {
	Cart    CartView       `json:"cart"`
	Outcome domain.Outcome `json:"outcome"`
}

// CheckoutResult is returned by a successful checkout.
type CheckoutResult struct {
	OrderID string   `json:"order_id"`
	Cart    CartView `json:"cart"`
}

func viewOf(e *engine.Engine) CartView {
	lines := e.Lines()
	if lines == nil {
		lines = domain.Lines{}
	}
	return CartView{
		Lines:       lines,
		TotalAmount: lines.Total(),
		ItemCount:   lines.Count(),
		UserID:      e.UserID(),
	}
}

func (h *CartHandler) engine(r *http.Request) *engine.Engine {
	return h.manager.Get(r.Context(), sessionIDFromContext(r.Context()))
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: viewOf(h.engine(r))})
}

// AddLine handles POST /api/v1/cart/lines
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req AddLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	e := h.engine(r)
	outcome := e.Add(r.Context(), domain.CartLine{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		UnitPrice:   req.UnitPrice,
		MaxQuantity: req.MaxQuantity,
		GroupID:     req.GroupID,
		GroupLabel:  req.GroupLabel,
	}, req.Quantity, req.Silent)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MutationResult{Cart: viewOf(e), Outcome: outcome}})
}

// BulkAddLines handles POST /api/v1/cart/lines/bulk
func (h *CartHandler) BulkAddLines(w http.ResponseWriter, r *http.Request) {
	var req BulkAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	lines := make(domain.Lines, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.CartLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice,
			MaxQuantity: l.MaxQuantity,
			GroupID:     l.GroupID,
			GroupLabel:  l.GroupLabel,
		})
	}

	e := h.engine(r)
	outcome := e.BulkAdd(r.Context(), lines, req.GroupLabel)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MutationResult{Cart: viewOf(e), Outcome: outcome}})
}

// UpdateLineQuantity handles PUT /api/v1/cart/lines/{productId}
func (h *CartHandler) UpdateLineQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	groupID := r.URL.Query().Get("group_id")

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	e := h.engine(r)
	outcome := e.UpdateQuantity(r.Context(), productID, groupID, req.Quantity)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MutationResult{Cart: viewOf(e), Outcome: outcome}})
}

// RemoveLine handles DELETE /api/v1/cart/lines/{productId}
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	groupID := r.URL.Query().Get("group_id")

	e := h.engine(r)
	outcome := e.Remove(r.Context(), productID, groupID)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MutationResult{Cart: viewOf(e), Outcome: outcome}})
}

// RemoveGroup handles DELETE /api/v1/cart/groups/{groupId}
func (h *CartHandler) RemoveGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")
	groupLabel := r.URL.Query().Get("label")

	e := h.engine(r)
	outcome := e.RemoveGroup(r.Context(), groupID, groupLabel)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MutationResult{Cart: viewOf(e), Outcome: outcome}})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	e := h.engine(r)
	outcome := e.Clear(r.Context())

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: MutationResult{Cart: viewOf(e), Outcome: outcome}})
}

// Checkout handles POST /api/v1/cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	e := h.engine(r)
	orderID, err := e.CompletePurchase(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: CheckoutResult{OrderID: orderID, Cart: viewOf(e)}})
}

// GroupAddedStatus handles GET /api/v1/cart/groups/{groupId}/added
func (h *CartHandler) GroupAddedStatus(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")
	added := h.engine(r).IsGroupFullyAdded(groupID)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]bool{"added": added}})
}

// MarkGroupAdded handles POST /api/v1/cart/groups/{groupId}/added
func (h *CartHandler) MarkGroupAdded(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")
	h.engine(r).MarkGroupAsAdded(groupID)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]bool{"added": true}})
}

// SetIdentity handles POST /api/v1/cart/identity
func (h *CartHandler) SetIdentity(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "X-User-ID header is required"},
		})
		return
	}

	e := h.engine(r)
	e.SetUser(r.Context(), userID)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: viewOf(e)})
}

// ClearIdentity handles DELETE /api/v1/cart/identity
func (h *CartHandler) ClearIdentity(w http.ResponseWriter, r *http.Request) {
	e := h.engine(r)
	e.ClearUser(r.Context())

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: viewOf(e)})
}
