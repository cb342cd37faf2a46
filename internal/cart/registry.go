package cart

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tamrstore/storefront/internal/repository"
	apperrors "github.com/tamrstore/storefront/pkg/errors"
)

// DefaultIdleTTL is how long an unused Store stays cached.
const DefaultIdleTTL = 30 * time.Minute

// entry is a cached Store. ready is closed once the open attempt finishes;
// store and err are immutable after that.
type entry struct {
	ready    chan struct{}
	store    *Store
	err      error
	lastSeen time.Time
}

// Registry hands out one Store per shopper, opening each lazily on first
// use. Stores unused for longer than the idle TTL are dropped and reopened
// from the device on the next call. Device reads happen outside the
// registry lock; concurrent first calls for one shopper share a single read.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*entry
	device    repository.KeyValueStore
	prefix    string
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleTTL sets how long an unused Store stays cached. Zero disables
// eviction; a negative ttl keeps the default.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl >= 0 {
			r.idleTTL = ttl
		}
	}
}

// NewRegistry persists each shopper's cart under "<prefix>:<shopperID>".
func NewRegistry(device repository.KeyValueStore, prefix string, logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		device:  device,
		prefix:  prefix,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the shopper's Store, rehydrating it on first use. A device
// read failure is returned as ServiceUnavailable and nothing is cached, so
// the persisted record is never overwritten by an empty cart.
func (r *Registry) Get(ctx context.Context, shopperID string) (*Store, error) {
	shopperID = strings.TrimSpace(shopperID)
	if shopperID == "" {
		return nil, apperrors.InvalidInput("shopper id is required")
	}

	r.mu.Lock()
	now := r.now()
	r.sweepLocked(now)
	e, ok := r.entries[shopperID]
	if ok {
		e.lastSeen = now
		r.mu.Unlock()
		return r.wait(ctx, e)
	}
	e = &entry{ready: make(chan struct{}), lastSeen: now}
	r.entries[shopperID] = e
	r.mu.Unlock()

	s, err := Open(ctx, r.device, r.Key(shopperID), r.logger)

	r.mu.Lock()
	if err != nil {
		delete(r.entries, shopperID)
	}
	e.store, e.err = s, err
	close(e.ready)
	r.mu.Unlock()

	if err != nil {
		r.logger.WarnContext(ctx, "cart storage read failed",
			slog.String("cart_key", r.Key(shopperID)),
			slog.String("error", err.Error()),
		)
		return nil, errStorageUnavailable()
	}
	return s, nil
}

func (r *Registry) wait(ctx context.Context, e *entry) (*Store, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, errStorageUnavailable()
	}
	if e.err != nil {
		return nil, errStorageUnavailable()
	}
	return e.store, nil
}

func errStorageUnavailable() error {
	return apperrors.ServiceUnavailable("cart storage is unavailable, try again")
}

// sweepLocked drops opened stores idle for longer than the TTL, at most
// once per TTL. It must be called with r.mu held.
func (r *Registry) sweepLocked(now time.Time) {
	if r.idleTTL == 0 || now.Sub(r.lastSweep) < r.idleTTL {
		return
	}
	for id, e := range r.entries {
		select {
		case <-e.ready:
		default:
			continue
		}
		if now.Sub(e.lastSeen) > r.idleTTL {
			delete(r.entries, id)
		}
	}
	r.lastSweep = now
}

// Key is the device key for shopperID.
func (r *Registry) Key(shopperID string) string {
	return r.prefix + ":" + shopperID
}

// Len is the number of cached stores, including ones still opening.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
