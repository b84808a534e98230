// Package cart keeps a customer's line items and persists them after every
// change.
//
//	store := cart.New(ctx, cart.NewFilePersister("storage/restaurant-cart.json", cart.DefaultKey))
//	_ = store.AddItem(item, 2)
//	total := store.Total()
//
// Cart operations never touch the network and never fail except on invalid
// input. Persistence failures are logged; the in-memory cart stays
// authoritative.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/menu"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// ErrInvalidQuantity is returned by AddItem for a quantity below 1.
var ErrInvalidQuantity = errors.New("cart: quantity must be a positive integer")

// ErrEmptyItemID is returned by AddItem for an item without an id.
var ErrEmptyItemID = errors.New("cart: item has no id")

// saveTimeout bounds a single persister call.
const saveTimeout = 3 * time.Second

// Store is a mutex-guarded cart with at most one line per item id, kept in
// insertion order.
type Store struct {
	mu    sync.Mutex
	lines []Line
	p     Persister
	log   *slog.Logger
}

// New restores the cart from p. Missing or malformed data yields an empty
// cart.
func New(ctx context.Context, p Persister) *Store {
	s := &Store{p: p, log: logger.WithCtx(ctx)}

	lines, err := p.Load(ctx)
	if err != nil {
		s.log.Warn("cart: stored cart unreadable, starting empty", "error", err)
		return s
	}
	s.lines = normalize(lines)
	return s
}

// normalize merges duplicate ids and drops non-positive quantities.
func normalize(in []Line) []Line {
	out := make([]Line, 0, len(in))
	idx := map[string]int{}
	for _, l := range in {
		if l.ItemID == "" || l.Quantity <= 0 {
			continue
		}
		if i, ok := idx[l.ItemID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ItemID] = len(out)
		out = append(out, l)
	}
	return out
}

func (s *Store) find(itemID string) int {
	for i, l := range s.lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

// AddItem adds quantity of item, merging with an existing line.
func (s *Store) AddItem(item menu.Item, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if item.ID == "" {
		return ErrEmptyItemID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.find(item.ID); i >= 0 {
		s.lines[i].Quantity += quantity
	} else {
		s.lines = append(s.lines, lineFromItem(item, quantity))
	}
	s.persist("add")
	return nil
}

// SetQuantity overwrites an existing line's quantity. A quantity of zero or
// less removes the line. Setting an item that is not in the cart is a no-op.
func (s *Store) SetQuantity(itemID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(itemID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	} else {
		s.lines[i].Quantity = quantity
	}
	s.persist("set")
}

// RemoveItem deletes the line for itemID, if any.
func (s *Store) RemoveItem(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(itemID)
	if i < 0 {
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.persist("remove")
}

// Clear empties the cart and erases its stored copy.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	metrics.CartMutations.WithLabelValues("clear").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.p.Clear(ctx); err != nil {
		s.log.Error("cart: clear stored cart", "error", err)
	}
}

// Total is Σ price × quantity, computed on every call.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ItemCount is the sum of quantities.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.lines...)
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

// persist must be called with mu held.
func (s *Store) persist(op string) {
	metrics.CartMutations.WithLabelValues(op).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.p.Save(ctx, append([]Line(nil), s.lines...)); err != nil {
		s.log.Error("cart: save", "op", op, "error", err)
	}
}
