// Package auth issues and checks the signed cart tokens that key anonymous
// carts on the HTTP surface. A token carries only the cart id; there are no
// user accounts.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shashiranjanraj/storefront/config"
)

const (
	issuer = "storefront"

	// CartTokenTTL is how long a cart token stays valid.
	CartTokenTTL = 30 * 24 * time.Hour
)

// ErrInvalidToken wraps every parse or verification failure.
var ErrInvalidToken = errors.New("auth: invalid cart token")

// CartClaims holds the typed JWT payload.
type CartClaims struct {
	CartID string `json:"cart_id"`
	jwt.RegisteredClaims
}

func secret() []byte {
	return []byte(config.JWTSecret())
}

// NewCartID returns a fresh random cart id.
func NewCartID() string { return uuid.NewString() }

// IssueCartToken signs a token for cartID.
func IssueCartToken(cartID string) (string, error) {
	now := time.Now()
	claims := CartClaims{
		CartID: cartID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   cartID,
			ExpiresAt: jwt.NewNumericDate(now.Add(CartTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret())
}

// ParseCartToken validates t and returns its claims.
func ParseCartToken(t string) (*CartClaims, error) {
	token, err := jwt.ParseWithClaims(t, &CartClaims{}, func(tok *jwt.Token) (interface{}, error) {
		return secret(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CartClaims)
	if !ok || !token.Valid || claims.CartID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
