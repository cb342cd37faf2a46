package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tamrstore/storefront/internal/domain"
	"github.com/tamrstore/storefront/internal/repository"
	apperrors "github.com/tamrstore/storefront/pkg/errors"
)

// Store holds one cart. The in-memory lines are authoritative: every
// mutation updates them first and then overwrites the persisted record.
// A failed write is logged and counted but never returned to the caller.
//
// Store is safe for concurrent use; operations on one Store are applied in
// the order they acquire its lock.
type Store struct {
	mu     sync.RWMutex
	lines  []domain.CartLine
	device repository.KeyValueStore
	key    string
	logger *slog.Logger
}

// Open rehydrates the cart stored under key. A missing record yields an
// empty cart. A malformed record is deleted from the device and also yields
// an empty cart. Any other read error is returned and the record is left
// untouched, so a later Open can still recover it.
func Open(ctx context.Context, device repository.KeyValueStore, key string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		lines:  []domain.CartLine{},
		device: device,
		key:    key,
		logger: logger.With(slog.String("cart_key", key)),
	}

	data, err := device.Get(ctx, key)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read cart record %s: %w", key, err)
	}

	lines, err := domain.DecodeLines(data)
	if err != nil {
		recordsDiscardedTotal.Inc()
		s.logger.WarnContext(ctx, "discarding malformed cart record", slog.String("error", err.Error()))
		if delErr := device.Delete(ctx, key); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to delete malformed cart record", slog.String("error", delErr.Error()))
		}
		return s, nil
	}

	s.lines = lines
	return s, nil
}

// Key is the device key this store persists to.
func (s *Store) Key() string { return s.key }

// AddToCart snapshots item into a new line with quantity 1, or increments an
// existing line for item.ID by one without touching its price snapshot.
// Stock is not checked here.
func (s *Store) AddToCart(ctx context.Context, item domain.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(item.ID); i >= 0 {
		s.lines[i].Quantity++
	} else {
		s.lines = append(s.lines, domain.NewLine(item))
	}
	s.persist(ctx, "add")
}

// RemoveFromCart drops the line for id. Absent ids are ignored.
func (s *Store) RemoveFromCart(ctx context.Context, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.persist(ctx, "remove")
}

// SetQuantity replaces the quantity of the line for id. Quantities below 1
// and absent ids are ignored; the line is neither removed nor clamped.
func (s *Store) SetQuantity(ctx context.Context, id int64, quantity int) {
	if quantity < 1 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}
	s.lines[i].Quantity = quantity
	s.persist(ctx, "set_quantity")
}

// ClearCart empties the cart and persists the empty record.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = s.lines[:0]
	s.persist(ctx, "clear")
}

// RemoveOrdered takes ordered quantities out of the cart after a checkout.
// A line whose quantity is covered by the order is removed; a line that grew
// since the order was built keeps the surplus. Lines added after the
// snapshot are untouched. It reports whether the cart is now empty.
func (s *Store) RemoveOrdered(ctx context.Context, ordered []domain.CartLine) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range ordered {
		i := s.indexOf(o.ID)
		if i < 0 {
			continue
		}
		if s.lines[i].Quantity <= o.Quantity {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			continue
		}
		s.lines[i].Quantity -= o.Quantity
	}
	s.persist(ctx, "checkout")
	return len(s.lines) == 0
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CartLine, len(s.lines))
	for i, l := range s.lines {
		out[i] = l.Clone()
	}
	return out
}

// Line returns a copy of the line for id.
func (s *Store) Line(id int64) (domain.CartLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.lines[i].Clone(), true
	}
	return domain.CartLine{}, false
}

// GetItemPrice is the effective unit price of line at its own quantity.
func (s *Store) GetItemPrice(line domain.CartLine) decimal.Decimal {
	return line.UnitPrice()
}

// TotalItems is the sum of all line quantities.
func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// TotalAmount is the sum of unit price times quantity over all lines.
func (s *Store) TotalAmount() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// Summary prices every line and totals them under a single read lock.
func (s *Store) Summary() domain.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.Summarize(s.lines)
}

func (s *Store) indexOf(id int64) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context, op string) {
	mutationsTotal.WithLabelValues(op).Inc()

	data, err := domain.EncodeLines(s.lines)
	if err == nil {
		err = s.device.Set(ctx, s.key, data)
	}
	if err != nil {
		persistFailuresTotal.Inc()
		s.logger.ErrorContext(ctx, "failed to persist cart",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.DebugContext(ctx, "cart persisted",
		slog.String("op", op),
		slog.Int("lines", len(s.lines)),
	)
}
