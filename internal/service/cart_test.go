package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tamrstore/storefront/internal/cart"
	"github.com/tamrstore/storefront/internal/domain"
	"github.com/tamrstore/storefront/internal/repository/memory"
	apperrors "github.com/tamrstore/storefront/pkg/errors"
	"github.com/tamrstore/storefront/pkg/logger"
)

// --- Mocks ---

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) Product(ctx context.Context, id int64) (*domain.CatalogItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CatalogItem), args.Error(1)
}

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishCartUpdated(ctx context.Context, userID string, summary domain.Summary) error {
	args := m.Called(ctx, userID, summary)
	return args.Error(0)
}

func (m *mockEvents) PublishCartCleared(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Helpers ---

func newTestLogger() *slog.Logger {
	return logger.NewWithWriter("test", "error", &bytes.Buffer{})
}

func newTestRegistry() *cart.Registry {
	return cart.NewRegistry(memory.New(), "cart", newTestLogger())
}

func catalogItem(id int64, retail string, stock int) *domain.CatalogItem {
	return &domain.CatalogItem{ID: id, Name: "Barhi", RetailPrice: decimal.RequireFromString(retail), Stock: stock}
}

func newCartService(t *testing.T) (*CartService, *mockCatalog, *mockEvents, *cart.Registry) {
	t.Helper()
	cat := new(mockCatalog)
	ev := new(mockEvents)
	reg := newTestRegistry()
	t.Cleanup(func() {
		cat.AssertExpectations(t)
		ev.AssertExpectations(t)
	})
	return NewCartService(reg, cat, ev, newTestLogger()), cat, ev, reg
}

// --- Tests ---

func TestCart_EmptyForNewShopper(t *testing.T) {
	svc, _, _, _ := newCartService(t)

	sum, err := svc.Cart(context.Background(), "shopper-1")
	require.NoError(t, err)
	assert.Empty(t, sum.Lines)
	assert.Zero(t, sum.TotalItems)
}

func TestCart_MissingShopper(t *testing.T) {
	svc, _, _, _ := newCartService(t)

	_, err := svc.Cart(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddProduct_Success(t *testing.T) {
	svc, cat, ev, _ := newCartService(t)
	ctx := context.Background()

	cat.On("Product", mock.Anything, int64(5)).Return(catalogItem(5, "20", 3), nil).Twice()
	ev.On("PublishCartUpdated", mock.Anything, "shopper-1", mock.AnythingOfType("domain.Summary")).Return(nil).Twice()

	_, err := svc.AddProduct(ctx, "shopper-1", 5)
	require.NoError(t, err)
	sum, err := svc.AddProduct(ctx, "shopper-1", 5)
	require.NoError(t, err)

	require.Len(t, sum.Lines, 1)
	assert.Equal(t, 2, sum.Lines[0].Quantity)
	assert.True(t, decimal.NewFromInt(40).Equal(sum.TotalAmount))
}

func TestAddProduct_OutOfStock(t *testing.T) {
	svc, cat, _, reg := newCartService(t)
	ctx := context.Background()

	cat.On("Product", mock.Anything, int64(5)).Return(catalogItem(5, "20", 0), nil)

	_, err := svc.AddProduct(ctx, "shopper-1", 5)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	store, _ := reg.Get(ctx, "shopper-1")
	assert.Empty(t, store.Items())
}

func TestAddProduct_InvalidID(t *testing.T) {
	svc, _, _, _ := newCartService(t)

	_, err := svc.AddProduct(context.Background(), "shopper-1", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddProduct_CatalogError(t *testing.T) {
	svc, cat, _, _ := newCartService(t)

	cat.On("Product", mock.Anything, int64(8)).Return(nil, apperrors.NotFound("product", "8"))

	_, err := svc.AddProduct(context.Background(), "shopper-1", 8)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddProduct_PublishFailureNotSurfaced(t *testing.T) {
	svc, cat, ev, _ := newCartService(t)

	cat.On("Product", mock.Anything, int64(1)).Return(catalogItem(1, "5", 9), nil)
	ev.On("PublishCartUpdated", mock.Anything, "shopper-1", mock.Anything).Return(errors.New("broker down"))

	sum, err := svc.AddProduct(context.Background(), "shopper-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalItems)
}

func TestSetQuantity(t *testing.T) {
	svc, cat, ev, _ := newCartService(t)
	ctx := context.Background()

	cat.On("Product", mock.Anything, int64(1)).Return(catalogItem(1, "5", 9), nil)
	ev.On("PublishCartUpdated", mock.Anything, "shopper-1", mock.Anything).Return(nil).Twice()

	_, err := svc.AddProduct(ctx, "shopper-1", 1)
	require.NoError(t, err)

	sum, err := svc.SetQuantity(ctx, "shopper-1", 1, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, sum.TotalItems)
}

func TestSetQuantity_NonPositiveUnchanged(t *testing.T) {
	svc, cat, ev, _ := newCartService(t)
	ctx := context.Background()

	cat.On("Product", mock.Anything, int64(1)).Return(catalogItem(1, "5", 9), nil)
	ev.On("PublishCartUpdated", mock.Anything, "shopper-1", mock.Anything).Return(nil).Once()

	_, err := svc.AddProduct(ctx, "shopper-1", 1)
	require.NoError(t, err)

	for _, q := range []int{0, -5} {
		sum, err := svc.SetQuantity(ctx, "shopper-1", 1, q)
		require.NoError(t, err)
		require.Len(t, sum.Lines, 1)
		assert.Equal(t, 1, sum.Lines[0].Quantity)
	}
}

func TestRemoveItem(t *testing.T) {
	svc, cat, ev, _ := newCartService(t)
	ctx := context.Background()

	cat.On("Product", mock.Anything, int64(1)).Return(catalogItem(1, "5", 9), nil)
	ev.On("PublishCartUpdated", mock.Anything, "shopper-1", mock.Anything).Return(nil).Twice()

	_, err := svc.AddProduct(ctx, "shopper-1", 1)
	require.NoError(t, err)

	sum, err := svc.RemoveItem(ctx, "shopper-1", 1)
	require.NoError(t, err)
	assert.Empty(t, sum.Lines)

	sum, err = svc.RemoveItem(ctx, "shopper-1", 1)
	require.NoError(t, err, "removing an absent product is not an error")
	assert.Empty(t, sum.Lines)
}

func TestClear(t *testing.T) {
	svc, cat, ev, reg := newCartService(t)
	ctx := context.Background()

	cat.On("Product", mock.Anything, int64(1)).Return(catalogItem(1, "5", 9), nil)
	ev.On("PublishCartUpdated", mock.Anything, "shopper-1", mock.Anything).Return(nil)
	ev.On("PublishCartCleared", mock.Anything, "shopper-1").Return(nil).Once()

	_, err := svc.AddProduct(ctx, "shopper-1", 1)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "shopper-1"))

	store, _ := reg.Get(ctx, "shopper-1")
	assert.Empty(t, store.Items())
}
