package server

import (
	"net/http"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/graphql"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
	"github.com/shashiranjanraj/storefront/pkg/router"
)

// Router builds the named route table. The CLI lists it without serving.
func (s *Server) Router() *router.Router {
	r := router.New()

	// Outermost first: metrics sees total latency, and both recovery and
	// the logger read the request id.
	r.Use(metrics.Middleware())
	r.Use(reqid.Middleware())
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.CORSOptionsFromEnv()))

	r.NotFound(ctx.Wrap(func(c *ctx.Context) { c.NotFound("Route not found") }))

	r.Get("/healthz", "health", ctx.Wrap(s.healthz))
	r.Get("/metrics", "metrics", metrics.Handler())

	api := r.Group("/api")
	api.Get("/business", "business.show", ctx.Wrap(s.showBusiness))
	api.Get("/menu", "menu.show", ctx.Wrap(s.showMenu))
	api.Post("/menu/reload", "menu.reload", ctx.Wrap(s.reloadMenu))
	api.Get("/menu/featured", "menu.featured", ctx.Wrap(s.featured))
	api.Get("/menu/events", "menu.events", s.menuEvents)

	carts := api.Group("/cart", middleware.CartToken)
	carts.Get("", "cart.show", ctx.Wrap(s.showCart))
	carts.Post("/items", "cart.items.add", ctx.Wrap(s.addItem))
	carts.Put("/items/{itemID}", "cart.items.update", ctx.Wrap(s.setQuantity))
	carts.Delete("/items/{itemID}", "cart.items.remove", ctx.Wrap(s.removeItem))
	carts.Delete("", "cart.clear", ctx.Wrap(s.clearCart))

	api.Post("/checkout", "checkout", ctx.Wrap(s.checkout),
		middleware.RateLimit(s.checkoutLimit, time.Minute), middleware.CartToken)
	api.Get("/payment/return", "payment.return", ctx.Wrap(s.paymentReturn))

	gh := graphql.Handler(s.schema)
	r.Get("/graphql", "graphql.query", gh)
	r.Post("/graphql", "graphql", gh)
	r.Get("/ws/menu", "menu.live", s.menuSocket)

	return r
}

func (s *Server) healthz(c *ctx.Context) {
	body := map[string]any{
		"status":  "ok",
		"menu":    s.loader.Snapshot().State,
		"carts":   s.carts.Len(),
		"clients": s.hub.ClientCount(),
	}
	if s.health != nil {
		if err := s.health(c.Context()); err != nil {
			body["status"] = "degraded"
			body["backend"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["backend"] = "ok"
	}
	c.JSON(http.StatusOK, body)
}

// Routes lists the named routes without building a Server.
func Routes() []router.RouteInfo {
	return (&Server{checkoutLimit: 10}).Router().Routes()
}
