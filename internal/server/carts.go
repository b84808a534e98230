package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/cart"
)

// PersisterFunc opens the persister for one cart id.
type PersisterFunc func(cartID string) cart.Persister

// Carts keeps one cart.Store per cart id. A store that has been idle for
// longer than the idle window is released; durable drivers restore it on
// the next request, the memory driver forgets it.
type Carts struct {
	open PersisterFunc
	idle time.Duration

	mu      sync.Mutex
	entries map[string]*cartEntry
}

type cartEntry struct {
	store *cart.Store
	seen  time.Time
}

func NewCarts(open PersisterFunc, idle time.Duration) *Carts {
	return &Carts{open: open, idle: idle, entries: map[string]*cartEntry{}}
}

// Get returns the store for cartID, restoring it from its persister on
// first use.
func (c *Carts) Get(ctx context.Context, cartID string) *cart.Store {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[cartID]; ok {
		e.seen = now
		return e.store
	}
	s := cart.New(ctx, c.open(cartID))
	c.entries[cartID] = &cartEntry{store: s, seen: now}
	return s
}

// Sweep releases stores idle since before now-idle and returns how many it
// released.
func (c *Carts) Sweep(now time.Time) int {
	if c.idle <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if now.Sub(e.seen) > c.idle {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

func (c *Carts) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CartBackends are the connections the durable cart drivers need.
type CartBackends struct {
	File  string
	Cache *cache.Cache
	DB    *gorm.DB
	TTL   time.Duration
}

// Persisters returns the PersisterFunc for driver: memory, file, redis or
// sql.
func Persisters(driver string, b CartBackends) (PersisterFunc, error) {
	switch driver {
	case "memory":
		return func(string) cart.Persister { return cart.NewMemoryPersister() }, nil
	case "file":
		if b.File == "" {
			return nil, fmt.Errorf("server: cart driver file needs CART_FILE")
		}
		return func(id string) cart.Persister {
			return cart.NewFilePersister(b.File, cart.DefaultKey+":"+id)
		}, nil
	case "redis":
		if b.Cache == nil {
			return nil, fmt.Errorf("server: cart driver redis needs a reachable REDIS_ADDR")
		}
		return func(id string) cart.Persister { return cart.NewRedisPersister(b.Cache, id, b.TTL) }, nil
	case "sql":
		if b.DB == nil {
			return nil, fmt.Errorf("server: cart driver sql needs a database")
		}
		return func(id string) cart.Persister { return cart.NewSQLPersister(b.DB, id) }, nil
	default:
		return nil, fmt.Errorf("server: unknown cart driver %q", driver)
	}
}
