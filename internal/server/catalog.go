package server

import (
	"context"
	"sync"
	"time"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/menu"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// catalog remembers the last menu that loaded successfully so the
// storefront keeps serving it while a reload is retrying or has failed.
type catalog struct {
	loader *menu.Loader
	cache  *cache.Cache
	key    string
	ttl    time.Duration

	mu   sync.RWMutex
	last *menu.Menu
}

func newCatalog(l *menu.Loader, c *cache.Cache) *catalog {
	return &catalog{
		loader: l,
		cache:  c,
		key:    "storefront:menu:" + l.BusinessID(),
		// Resolved image URLs inside the menu expire with the URL cache.
		ttl: config.Duration("BLOB_URL_CACHE_TTL", time.Hour),
	}
}

// observe runs on the loader goroutine for every transition.
func (c *catalog) observe(s menu.Snapshot) {
	if s.State != menu.StateSuccess || s.Menu == nil {
		return
	}
	c.mu.Lock()
	c.last = s.Menu
	c.mu.Unlock()

	if c.cache == nil {
		return
	}
	go func(m *menu.Menu) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.cache.Set(ctx, c.key, m, c.ttl); err != nil {
			logger.Warn("server: cache menu", "error", err)
		}
	}(s.Menu)
}

// warm seeds the last good menu from Redis when nothing has loaded yet.
func (c *catalog) warm(ctx context.Context) {
	if c.cache == nil {
		return
	}
	c.mu.RLock()
	loaded := c.last != nil
	c.mu.RUnlock()
	if loaded {
		return
	}

	var m menu.Menu
	if !c.cache.Get(ctx, c.key, &m) {
		metrics.CacheMisses.WithLabelValues("menu").Inc()
		return
	}
	metrics.CacheHits.WithLabelValues("menu").Inc()

	c.mu.Lock()
	if c.last == nil {
		c.last = &m
	}
	c.mu.Unlock()
	logger.Info("server: serving cached menu until the first load", "categories", len(m.Categories))
}

// Current returns the menu to serve and the loader's live snapshot.
func (c *catalog) Current() (*menu.Menu, menu.Snapshot) {
	snap := c.loader.Snapshot()
	if snap.Menu != nil {
		return snap.Menu, snap
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, snap
}

// menuView is the menu as the API and live channels present it.
type menuView struct {
	State     menu.State `json:"state"`
	Menu      *menu.Menu `json:"menu"`
	Stale     bool       `json:"stale"`
	Message   string     `json:"message,omitempty"`
	Retryable bool       `json:"retryable"`
	Attempt   int        `json:"attempt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (c *catalog) view() menuView {
	_, snap := c.Current()
	return c.viewOf(snap)
}

// viewOf presents snap, falling back to the last good menu when snap has
// none.
func (c *catalog) viewOf(snap menu.Snapshot) menuView {
	v := menuView{
		State:     snap.State,
		Menu:      snap.Menu,
		Retryable: snap.Retryable,
		Attempt:   snap.Attempt,
		UpdatedAt: snap.UpdatedAt,
	}
	if snap.Err != nil {
		v.Message = menu.Message(snap.Err)
	}
	if v.Menu == nil {
		c.mu.RLock()
		v.Menu = c.last
		c.mu.RUnlock()
		v.Stale = v.Menu != nil
	}
	return v
}
