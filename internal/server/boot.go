package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/backend"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/cart"
	"github.com/shashiranjanraj/storefront/pkg/database"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/menu"
	"github.com/shashiranjanraj/storefront/pkg/order"
	"github.com/shashiranjanraj/storefront/pkg/workerpool"
)

// Boot builds a Server from configuration. cleanup releases every
// connection Boot opened and is safe to call when err is non-nil.
func Boot(ctx context.Context) (s *Server, cleanup func(), err error) {
	var closers []func()
	cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			cleanup()
		}
	}()

	if err = config.Load(); err != nil {
		return nil, cleanup, fmt.Errorf("config: %w", err)
	}
	businessID := config.BusinessID()
	if businessID == "" {
		return nil, cleanup, errors.New("server: BUSINESS_ID is not set")
	}

	if config.Bool("LOG_MONGO", false) {
		sink, serr := logger.NewMongoSink(ctx, config.MongoURI(), config.MongoDB(), slog.LevelWarn)
		if serr != nil {
			logger.Warn("server: mongo log sink disabled", "error", serr)
		} else {
			logger.Tee(sink)
			closers = append(closers, func() {
				cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = sink.Close(cctx)
			})
		}
	}

	conns := backend.NewManager(backend.DefaultDialer{})
	cfg := backend.ConfigFromEnv()
	closers = append(closers, func() {
		if rerr := conns.Reset(context.Background()); rerr != nil {
			logger.Warn("server: backend reset", "error", rerr)
		}
	})

	pool := workerpool.New(8)
	closers = append(closers, pool.Shutdown)

	repo := menu.NewRepository(conns, cfg, menu.PolicyFromEnv(), menu.WithPool(pool))
	loader := menu.NewLoader(repo, businessID)

	c := connectCache(ctx)
	if c != nil {
		closers = append(closers, func() { _ = c.Close() })
	}

	driver := config.CartDriver()
	backends := CartBackends{File: config.CartFile(), Cache: c, TTL: config.Duration("CART_TTL", 30*24*time.Hour)}
	if driver == "sql" {
		db, derr := database.Connect()
		if derr != nil {
			return nil, cleanup, derr
		}
		closers = append(closers, func() { _ = database.Close(db) })
		if err = cart.Migrate(db); err != nil {
			return nil, cleanup, fmt.Errorf("server: migrate carts: %w", err)
		}
		backends.DB = db
	}
	open, err := Persisters(driver, backends)
	if err != nil {
		return nil, cleanup, err
	}
	idle := 30 * time.Minute
	if driver == "memory" {
		idle = backends.TTL
	}

	cash := order.NewMongoOrders(conns, cfg)
	gateways := map[order.Method]order.Gateway{order.MethodCash: cash}
	if u := config.PaymentsURL(); u != "" {
		gateways[order.MethodGateway] = order.NewCallableGateway(u)
	}

	var events order.Publisher
	if u := config.NATSURL(); u != "" {
		pub, perr := order.NewNATSPublisher(u)
		if perr != nil {
			logger.Warn("server: order events disabled", "error", perr)
		} else {
			events = pub
			closers = append(closers, func() { _ = pub.Close() })
		}
	}

	s, err = New(Deps{
		Loader: loader,
		Carts:  NewCarts(open, idle),
		Orders: order.NewService(businessID, config.PaymentsBackURL(), gateways, events),
		Lookup: cash,
		Cache:  c,
		Health: func(ctx context.Context) error {
			h, herr := conns.Handle()
			if herr != nil {
				return herr
			}
			return h.DB.Ping(ctx)
		},
		CheckoutLimit: config.Int("CHECKOUT_RATE_LIMIT", 10),
		MenuRefresh:   config.Duration("MENU_REFRESH", 0),
		WatchMenu:     config.Bool("MENU_WATCH", false),
	})
	if err != nil {
		return nil, cleanup, err
	}
	return s, cleanup, nil
}

// connectCache returns nil when Redis is not configured or not reachable.
func connectCache(ctx context.Context) *cache.Cache {
	addr := config.RedisAddr()
	if addr == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	c, err := cache.Connect(ctx, addr, config.RedisPassword())
	if err != nil {
		logger.Warn("server: redis unavailable", "addr", addr, "error", err)
		return nil
	}
	return c
}
