package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tamrstore/storefront/internal/cart"
	"github.com/tamrstore/storefront/internal/domain"
	apperrors "github.com/tamrstore/storefront/pkg/errors"
	"github.com/tamrstore/storefront/pkg/httpclient"
)

// CircuitOpenFallback replaces the breaker's ErrOpenState with a 503 the
// storefront can show to the shopper.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("ordering is temporarily unavailable, please retry shortly")
}

// CheckoutInput is the delivery and contact data for an order.
type CheckoutInput struct {
	CustomerName string `json:"customer_name" validate:"required,max=120"`
	Phone        string `json:"phone" validate:"required,min=7,max=20"`
	CityID       int64  `json:"city_id" validate:"required,gt=0"`
	Address      string `json:"address" validate:"required,max=500"`
	Notes        string `json:"notes" validate:"max=1000"`
}

// OrderConfirmation is what the order API returns for a placed order.
type OrderConfirmation struct {
	ID          int64           `json:"id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type orderItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	CustomerName string          `json:"customer_name"`
	Phone        string          `json:"phone"`
	CityID       int64           `json:"city_id"`
	Address      string          `json:"address"`
	Notes        string          `json:"notes,omitempty"`
	Items        []orderItem     `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

type createOrderResponse struct {
	Data *OrderConfirmation `json:"data"`
}

// CheckoutService turns a shopper's cart into an order on the order API.
type CheckoutService struct {
	carts    *cart.Registry
	http     httpclient.Doer
	orderURL string
	events   EventPublisher
	logger   *slog.Logger
}

// NewCheckoutService creates a CheckoutService posting to orderURL.
func NewCheckoutService(carts *cart.Registry, doer httpclient.Doer, orderURL string, events EventPublisher, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		http:     doer,
		orderURL: strings.TrimRight(orderURL, "/"),
		events:   events,
		logger:   logger,
	}
}

// PlaceOrder submits the cart as an order priced at the cart's effective
// unit prices. Any 2xx from the order API removes the ordered lines from the
// cart, even if the confirmation body cannot be read; anything added while
// the order was in flight stays. An empty idempotencyKey is replaced with
// a fresh UUID.
func (s *CheckoutService) PlaceOrder(ctx context.Context, shopperID string, in CheckoutInput, idempotencyKey string) (*OrderConfirmation, error) {
	store, err := s.carts.Get(ctx, shopperID)
	if err != nil {
		return nil, err
	}

	summary := store.Summary()
	if len(summary.Lines) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	req := createOrderRequest{
		CustomerName: in.CustomerName,
		Phone:        in.Phone,
		CityID:       in.CityID,
		Address:      in.Address,
		Notes:        in.Notes,
		Items:        make([]orderItem, len(summary.Lines)),
		TotalAmount:  summary.TotalAmount,
	}
	for i, l := range summary.Lines {
		req.Items[i] = orderItem{ProductID: l.ID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.orderURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := s.http.Do(ctx, httpReq)
	if err != nil {
		s.logger.WarnContext(ctx, "order request failed", slog.String("error", err.Error()))
		return nil, httpclient.TransportError(err, "ordering")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpclient.ParseResponseError(resp, "orders")
	}

	ordered := make([]domain.CartLine, len(summary.Lines))
	for i, l := range summary.Lines {
		ordered[i] = l.CartLine
	}
	if store.RemoveOrdered(ctx, ordered) {
		if err := s.events.PublishCartCleared(ctx, shopperID); err != nil {
			s.logger.WarnContext(ctx, "failed to publish cart.cleared", slog.String("error", err.Error()))
		}
	} else if err := s.events.PublishCartUpdated(ctx, shopperID, store.Summary()); err != nil {
		s.logger.WarnContext(ctx, "failed to publish cart.updated", slog.String("error", err.Error()))
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Data == nil {
		s.logger.WarnContext(ctx, "order accepted with unreadable response body", slog.Any("error", err))
		out.Data = &OrderConfirmation{Status: "accepted", TotalAmount: summary.TotalAmount}
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.Int64("order_id", out.Data.ID),
		slog.Int("items", summary.TotalItems),
		slog.String("total_amount", summary.TotalAmount.String()),
	)
	return out.Data, nil
}
