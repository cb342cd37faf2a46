package service

import (
	"context"
	"log/slog"

	"github.com/tamrstore/storefront/internal/cart"
	"github.com/tamrstore/storefront/internal/domain"
	apperrors "github.com/tamrstore/storefront/pkg/errors"
)

// CatalogReader resolves product IDs to catalog items.
type CatalogReader interface {
	Product(ctx context.Context, id int64) (*domain.CatalogItem, error)
}

// EventPublisher announces cart changes. Both event.Producer and
// event.NoopProducer satisfy it.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, userID string, summary domain.Summary) error
	PublishCartCleared(ctx context.Context, userID string) error
}

// CartService applies shopper cart operations on top of the per-shopper
// Cart Stores. It owns the stock policy and event publication; pricing and
// persistence stay inside cart.Store.
type CartService struct {
	carts   *cart.Registry
	catalog CatalogReader
	events  EventPublisher
	logger  *slog.Logger
}

// NewCartService creates a CartService.
func NewCartService(carts *cart.Registry, catalog CatalogReader, events EventPublisher, logger *slog.Logger) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		events:  events,
		logger:  logger,
	}
}

// Cart returns the shopper's priced cart.
func (s *CartService) Cart(ctx context.Context, shopperID string) (domain.Summary, error) {
	store, err := s.carts.Get(ctx, shopperID)
	if err != nil {
		return domain.Summary{}, err
	}
	return store.Summary(), nil
}

// AddProduct looks the product up in the catalog and adds one unit. Products
// with no stock are rejected before the cart is touched.
func (s *CartService) AddProduct(ctx context.Context, shopperID string, productID int64) (domain.Summary, error) {
	if productID <= 0 {
		return domain.Summary{}, apperrors.InvalidInput("product id must be positive")
	}

	store, err := s.carts.Get(ctx, shopperID)
	if err != nil {
		return domain.Summary{}, err
	}

	item, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return domain.Summary{}, err
	}
	if item.Stock <= 0 {
		return domain.Summary{}, apperrors.Conflict("product is out of stock")
	}

	store.AddToCart(ctx, *item)
	summary := store.Summary()
	s.publishUpdated(ctx, shopperID, summary)
	return summary, nil
}

// SetQuantity replaces a line's quantity. Quantities below 1 and products
// not in the cart leave the cart unchanged.
func (s *CartService) SetQuantity(ctx context.Context, shopperID string, productID int64, quantity int) (domain.Summary, error) {
	store, err := s.carts.Get(ctx, shopperID)
	if err != nil {
		return domain.Summary{}, err
	}

	line, ok := store.Line(productID)
	store.SetQuantity(ctx, productID, quantity)
	summary := store.Summary()
	if ok && quantity >= 1 && line.Quantity != quantity {
		s.publishUpdated(ctx, shopperID, summary)
	}
	return summary, nil
}

// RemoveItem drops a product from the cart. Removing an absent product is
// not an error.
func (s *CartService) RemoveItem(ctx context.Context, shopperID string, productID int64) (domain.Summary, error) {
	store, err := s.carts.Get(ctx, shopperID)
	if err != nil {
		return domain.Summary{}, err
	}

	_, ok := store.Line(productID)
	store.RemoveFromCart(ctx, productID)
	summary := store.Summary()
	if ok {
		s.publishUpdated(ctx, shopperID, summary)
	}
	return summary, nil
}

// Clear empties the shopper's cart.
func (s *CartService) Clear(ctx context.Context, shopperID string) error {
	store, err := s.carts.Get(ctx, shopperID)
	if err != nil {
		return err
	}

	store.ClearCart(ctx)
	s.publishCleared(ctx, shopperID)
	return nil
}

func (s *CartService) publishUpdated(ctx context.Context, shopperID string, summary domain.Summary) {
	if err := s.events.PublishCartUpdated(ctx, shopperID, summary); err != nil {
		s.logger.WarnContext(ctx, "failed to publish cart.updated", slog.String("error", err.Error()))
	}
}

func (s *CartService) publishCleared(ctx context.Context, shopperID string) {
	if err := s.events.PublishCartCleared(ctx, shopperID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish cart.cleared", slog.String("error", err.Error()))
	}
}
