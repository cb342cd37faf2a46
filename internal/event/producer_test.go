package event

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tamrstore/storefront/internal/domain"
	pkgkafka "github.com/tamrstore/storefront/pkg/kafka"
	"github.com/tamrstore/storefront/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, ev *pkgkafka.Event) error {
	args := m.Called(ctx, topic, ev)
	return args.Error(0)
}

func TestPublishCartUpdated(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, logger.NewWithWriter("test", "info", &bytes.Buffer{}))

	var captured *pkgkafka.Event
	pub.On("Publish", mock.Anything, TopicCartUpdated, mock.AnythingOfType("*kafka.Event")).
		Run(func(args mock.Arguments) { captured = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	summary := domain.Summarize([]domain.CartLine{
		{ID: 1, Name: "Ajwa", RetailPrice: decimal.NewFromInt(10), Quantity: 3},
	})
	ctx := logger.WithCorrelationID(context.Background(), "corr-42")

	require.NoError(t, p.PublishCartUpdated(ctx, "shopper-1", summary))
	pub.AssertExpectations(t)

	require.NotNil(t, captured)
	assert.Equal(t, "shopper-1", captured.AggregateID)
	assert.Equal(t, "corr-42", captured.CorrelationID)

	var data CartUpdatedData
	require.NoError(t, captured.UnmarshalData(&data))
	assert.Equal(t, 3, data.ItemCount)
	assert.True(t, decimal.NewFromInt(30).Equal(data.TotalAmount))
	require.Len(t, data.Items, 1)
	assert.Equal(t, int64(1), data.Items[0].ProductID)
}

func TestPublishCartCleared_Error(t *testing.T) {
	pub := new(mockPublisher)
	p := NewProducer(pub, logger.NewWithWriter("test", "info", &bytes.Buffer{}))

	pub.On("Publish", mock.Anything, TopicCartCleared, mock.Anything).Return(errors.New("broker down"))

	err := p.PublishCartCleared(context.Background(), "shopper-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNoopProducer(t *testing.T) {
	var n NoopProducer
	assert.NoError(t, n.PublishCartUpdated(context.Background(), "x", domain.Summary{}))
	assert.NoError(t, n.PublishCartCleared(context.Background(), "x"))
}
