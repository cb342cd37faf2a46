package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tamrstore/storefront/internal/domain"
	"github.com/tamrstore/storefront/internal/service"
	"github.com/tamrstore/storefront/pkg/httputil"
	"github.com/tamrstore/storefront/pkg/validator"
)

const maxBodyBytes = 1 << 20

// CartService is the cart behaviour the handlers need.
type CartService interface {
	Cart(ctx context.Context, shopperID string) (domain.Summary, error)
	AddProduct(ctx context.Context, shopperID string, productID int64) (domain.Summary, error)
	SetQuantity(ctx context.Context, shopperID string, productID int64, quantity int) (domain.Summary, error)
	RemoveItem(ctx context.Context, shopperID string, productID int64) (domain.Summary, error)
	Clear(ctx context.Context, shopperID string) error
}

// CheckoutService places orders from a cart.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, shopperID string, in service.CheckoutInput, idempotencyKey string) (*service.OrderConfirmation, error)
}

// CartHandler serves /api/v1/cart.
type CartHandler struct {
	carts    CartService
	checkout CheckoutService
	logger   *slog.Logger
}

// NewCartHandler creates a CartHandler.
func NewCartHandler(carts CartService, checkout CheckoutService, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, checkout: checkout, logger: logger}
}

// AddItemRequest is the body of POST /api/v1/cart/items.
type AddItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// SetQuantityRequest is the body of PUT /api/v1/cart/items/{productId}.
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=1000000"`
}

// GetCart handles GET /api/v1/cart.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sum, err := h.carts.Cart(r.Context(), shopperFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sum})
}

// ClearCart handles DELETE /api/v1/cart.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), shopperFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: domain.Summarize(nil)})
}

// AddItem handles POST /api/v1/cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sum, err := h.carts.AddProduct(r.Context(), shopperFromContext(r.Context()), req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sum})
}

// SetQuantity handles PUT /api/v1/cart/items/{productId}. A quantity below 1
// leaves the cart unchanged and still answers 200.
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	var req SetQuantityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sum, err := h.carts.SetQuantity(r.Context(), shopperFromContext(r.Context()), id, *req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sum})
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	sum, err := h.carts.RemoveItem(r.Context(), shopperFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sum})
}

// Checkout handles POST /api/v1/cart/checkout.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var in service.CheckoutInput
	if !decodeAndValidate(w, r, &in) {
		return
	}

	conf, err := h.checkout.PlaceOrder(r.Context(), shopperFromContext(r.Context()), in, r.Header.Get("Idempotency-Key"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: conf})
}

// decodeAndValidate reads a JSON body into dst and validates it, writing a
// 400 and returning false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: msg},
		})
		return false
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
