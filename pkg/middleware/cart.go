package middleware

import (
	"context"
	"net/http"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

const (
	// CartTokenHeader carries the cart token for API clients.
	CartTokenHeader = "X-Cart-Token"

	// CartTokenCookie carries the cart token for browsers.
	CartTokenCookie = "cart_token"
)

type cartKey struct{}

// CartID returns the cart id attached by CartToken, or "".
func CartID(ctx context.Context) string {
	id, _ := ctx.Value(cartKey{}).(string)
	return id
}

// WithCartID attaches a cart id to ctx. Tests and the CLI use it to call
// handlers without a token.
func WithCartID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cartKey{}, id)
}

// CartToken resolves the caller's cart from the X-Cart-Token header or the
// cart_token cookie. A missing, expired or forged token starts a new cart:
// a fresh token is returned in both the header and the cookie.
func CartToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(CartTokenHeader)
		if raw == "" {
			if c, err := r.Cookie(CartTokenCookie); err == nil {
				raw = c.Value
			}
		}

		var cartID string
		if raw != "" {
			claims, err := auth.ParseCartToken(raw)
			if err == nil {
				cartID = claims.CartID
			} else {
				logger.WithCtx(r.Context()).Debug("cart token rejected", "error", err)
			}
		}

		if cartID == "" {
			cartID = auth.NewCartID()
			tok, err := auth.IssueCartToken(cartID)
			if err != nil {
				logger.WithCtx(r.Context()).Error("issue cart token", "error", err)
				http.Error(w, `{"status":500,"message":"Internal Server Error"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set(CartTokenHeader, tok)
			http.SetCookie(w, &http.Cookie{
				Name:     CartTokenCookie,
				Value:    tok,
				Path:     "/",
				MaxAge:   int(auth.CartTokenTTL.Seconds()),
				HttpOnly: true,
				Secure:   config.AppEnv() == "production",
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(WithCartID(r.Context(), cartID)))
	})
}
