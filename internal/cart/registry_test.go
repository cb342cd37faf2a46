package cart

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamrstore/storefront/internal/repository/file"
	"github.com/tamrstore/storefront/internal/repository/memory"
	apperrors "github.com/tamrstore/storefront/pkg/errors"
)

// gatedDevice blocks reads of one key until release is closed.
type gatedDevice struct {
	*memory.Store
	gatedKey string
	entered  chan struct{}
	release  chan struct{}
	reads    atomic.Int32
	once     sync.Once
}

func (d *gatedDevice) Get(ctx context.Context, key string) ([]byte, error) {
	if key == d.gatedKey {
		d.reads.Add(1)
		d.once.Do(func() { close(d.entered) })
		<-d.release
	}
	return d.Store.Get(ctx, key)
}

func TestRegistry_OneStorePerShopper(t *testing.T) {
	ctx := context.Background()
	dev := memory.New()
	r := NewRegistry(dev, "cart", testLogger(&bytes.Buffer{}))

	a1, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	a2, err := r.Get(ctx, " alice ")
	require.NoError(t, err)
	b, err := r.Get(ctx, "bob")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "cart:alice", a1.Key())

	a1.AddToCart(ctx, plain(1, "2"))
	assert.Empty(t, b.Items())

	_, err = dev.Get(ctx, "cart:alice")
	assert.NoError(t, err)
}

func TestRegistry_RehydratesFromDevice(t *testing.T) {
	ctx := context.Background()
	dev := memory.New()
	require.NoError(t, dev.Set(ctx, "cart:carol", []byte(`[{"id":5,"price":3,"quantity":2}]`)))

	r := NewRegistry(dev, "cart", testLogger(&bytes.Buffer{}))
	s, err := r.Get(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalItems())
}

func TestRegistry_EmptyShopperID(t *testing.T) {
	r := NewRegistry(memory.New(), "cart", testLogger(&bytes.Buffer{}))

	_, err := r.Get(context.Background(), "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, r.Len())
}

func TestRegistry_FailedReadIsNotCached(t *testing.T) {
	ctx := context.Background()
	d := newDevice()
	require.NoError(t, d.Store.Set(ctx, "cart:alice", []byte(`[{"id":1,"name":"Ajwa","price":10,"quantity":3}]`)))
	r := NewRegistry(d, "cart", testLogger(&bytes.Buffer{}))

	d.failReads(errors.New("i/o timeout"))
	_, err := r.Get(ctx, "alice")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Zero(t, r.Len())
	assert.Zero(t, d.writes())

	d.failReads(nil)
	s, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	s.AddToCart(ctx, plain(2, "4"))

	line, ok := s.Line(1)
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)

	reopened, err := Open(ctx, d, "cart:alice", testLogger(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Len(t, reopened.Items(), 2)
	assert.Equal(t, 4, reopened.TotalItems())
}

func TestRegistry_CanceledReadKeepsFileRecord(t *testing.T) {
	dev, err := file.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, dev.Set(context.Background(), "cart:alice", []byte(`[{"id":1,"price":10,"quantity":3}]`)))
	r := NewRegistry(dev, "cart", testLogger(&bytes.Buffer{}))

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Get(canceled, "alice")
	require.ErrorIs(t, err, apperrors.ErrServiceUnavail)

	s, err := r.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalItems())
	s.AddToCart(context.Background(), plain(2, "4"))

	reopened, err := Open(context.Background(), dev, "cart:alice", testLogger(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, 4, reopened.TotalItems())
}

func TestRegistry_EvictsIdleStores(t *testing.T) {
	ctx := context.Background()
	dev := memory.New()
	r := NewRegistry(dev, "cart", testLogger(&bytes.Buffer{}), WithIdleTTL(time.Minute))
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	alice, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	alice.AddToCart(ctx, plain(1, "2"))
	_, err = r.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	now = now.Add(30 * time.Second)
	_, err = r.Get(ctx, "bob")
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	_, err = r.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len(), "alice was idle past the TTL")

	again, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	assert.NotSame(t, alice, again)
	assert.Equal(t, 1, again.TotalItems(), "reopened from the device")
}

func TestRegistry_ZeroIdleTTLKeepsStores(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(memory.New(), "cart", testLogger(&bytes.Buffer{}), WithIdleTTL(0))
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	alice, err := r.Get(ctx, "alice")
	require.NoError(t, err)

	now = now.Add(24 * time.Hour)
	_, err = r.Get(ctx, "bob")
	require.NoError(t, err)

	again, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, alice, again)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_SlowReadDoesNotBlockOtherShoppers(t *testing.T) {
	dev := &gatedDevice{
		Store:    memory.New(),
		gatedKey: "cart:slow",
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	r := NewRegistry(dev, "cart", testLogger(&bytes.Buffer{}))
	ctx := context.Background()

	results := make(chan *Store, 2)
	for i := 0; i < 2; i++ {
		go func() {
			s, err := r.Get(ctx, "slow")
			assert.NoError(t, err)
			results <- s
		}()
	}
	<-dev.entered

	done := make(chan struct{})
	go func() {
		_, err := r.Get(ctx, "fast")
		assert.NoError(t, err)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Get for another shopper waited on a slow read")
	}

	close(dev.release)
	a, b := <-results, <-results
	assert.Same(t, a, b)
	assert.Equal(t, int32(1), dev.reads.Load(), "concurrent first calls share one read")
}

func TestRegistry_WaiterHonoursContext(t *testing.T) {
	dev := &gatedDevice{
		Store:    memory.New(),
		gatedKey: "cart:slow",
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	r := NewRegistry(dev, "cart", testLogger(&bytes.Buffer{}))
	defer close(dev.release)

	go func() { _, _ = r.Get(context.Background(), "slow") }()
	<-dev.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Get(ctx, "slow")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}
