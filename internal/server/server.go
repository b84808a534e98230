// Package server wires the storefront's HTTP surface: the menu, per-visitor
// carts, checkout, the payment return page, GraphQL and live menu updates.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	gql "github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/graphql"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/menu"
	"github.com/shashiranjanraj/storefront/pkg/order"
	"github.com/shashiranjanraj/storefront/pkg/schedule"
	"github.com/shashiranjanraj/storefront/pkg/ws"
)

// OrderLookup reads a stored order for the payment return page.
type OrderLookup interface {
	Find(ctx context.Context, orderID string) (map[string]any, error)
}

// Deps are the collaborators a Server is built from. Loader, Carts and
// Orders are required.
type Deps struct {
	Loader *menu.Loader
	Carts  *Carts
	Orders *order.Service

	// Lookup enriches the payment return response. Optional.
	Lookup OrderLookup
	// Cache keeps the last good menu across restarts. Optional.
	Cache *cache.Cache
	// Health reports backend reachability for /healthz. Optional.
	Health func(ctx context.Context) error

	// CheckoutLimit is checkout requests per client per minute. Zero means 10.
	CheckoutLimit int
	// MenuRefresh reloads the menu on an interval. Zero disables it.
	MenuRefresh time.Duration
	// WatchMenu follows backend change streams and reloads on change.
	WatchMenu bool
}

type Server struct {
	loader  *menu.Loader
	catalog *catalog
	carts   *Carts
	orders  *order.Service
	lookup  OrderLookup
	health  func(ctx context.Context) error
	hub     *ws.Hub
	schema  gql.Schema

	checkoutLimit int
	menuRefresh   time.Duration
	watchMenu     bool

	// base outlives requests; background reloads run on it.
	base   context.Context
	cancel context.CancelFunc
	unsub  func()
}

func New(d Deps) (*Server, error) {
	if d.Loader == nil || d.Carts == nil || d.Orders == nil {
		return nil, errors.New("server: loader, carts and orders are required")
	}
	if d.CheckoutLimit <= 0 {
		d.CheckoutLimit = 10
	}

	s := &Server{
		loader:        d.Loader,
		catalog:       newCatalog(d.Loader, d.Cache),
		carts:         d.Carts,
		orders:        d.Orders,
		lookup:        d.Lookup,
		health:        d.Health,
		hub:           ws.NewHub(),
		checkoutLimit: d.CheckoutLimit,
		menuRefresh:   d.MenuRefresh,
		watchMenu:     d.WatchMenu,
	}
	s.base, s.cancel = context.WithCancel(context.Background())

	schema, err := graphql.NewSchema(s.catalog)
	if err != nil {
		s.cancel()
		return nil, err
	}
	s.schema = schema

	s.hub.OnConnect = s.greet
	s.hub.OnMessage = s.command
	s.unsub = d.Loader.Subscribe(func(snap menu.Snapshot) {
		s.catalog.observe(snap)
		if err := s.hub.BroadcastJSON(liveEvent{Type: "snapshot", Menu: s.catalog.viewOf(snap)}); err != nil {
			logger.Warn("server: broadcast snapshot", "error", err)
		}
	})
	go s.hub.Run()
	return s, nil
}

// Handler returns the routed handler with the global middleware stack.
func (s *Server) Handler() http.Handler {
	return s.Router().Handler()
}

// Close stops live connections and background work. It does not close the
// collaborators passed in Deps.
func (s *Server) Close() {
	s.unsub()
	s.loader.Cancel()
	s.cancel()
	s.hub.Stop()
}

// Serve loads the menu, starts background refreshes and serves addr until
// ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	defer s.Close()

	s.catalog.warm(ctx)
	go s.loader.Reload(s.base)

	bg, stop := context.WithCancel(ctx)
	defer stop()

	sched := schedule.New()
	sched.Every(s.menuRefresh).Name("menu-refresh").WithoutOverlapping().Run(func(ctx context.Context) {
		s.loader.Reload(ctx)
	})
	sched.Every(10 * time.Minute).Name("cart-sweep").Run(func(context.Context) {
		if n := s.carts.Sweep(time.Now()); n > 0 {
			logger.Debug("server: idle carts released", "count", n)
		}
	})
	go sched.Start(bg)

	if s.watchMenu {
		go func() {
			if err := s.loader.Follow(bg, 2*time.Second); err != nil {
				logger.Warn("server: menu watch stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", addr, "business_id", s.loader.BusinessID())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("server: shutting down")
	s.hub.Stop()
	sctx, cancel := context.WithTimeout(context.Background(), config.Duration("SHUTDOWN_TIMEOUT", 10*time.Second))
	defer cancel()
	return srv.Shutdown(sctx)
}
