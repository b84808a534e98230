package menu

import (
	"time"

	"github.com/shashiranjanraj/storefront/config"
)

// Policy tunes how the repository talks to the backend.
type Policy struct {
	// MaxAttempts is the total number of attempts per load, first included.
	MaxAttempts int

	// BaseDelay doubles after every failed attempt, up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// CallTimeout bounds every individual backend call. Exceeding it counts
	// as a transient failure.
	CallTimeout time.Duration

	// OrderingFallback refetches unordered and sorts locally when the
	// backend cannot order a collection.
	OrderingFallback bool

	// CategoryPause spaces out per-category item fetches.
	CategoryPause time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      3,
		BaseDelay:        time.Second,
		MaxDelay:         8 * time.Second,
		CallTimeout:      10 * time.Second,
		OrderingFallback: true,
	}
}

// PolicyFromEnv reads the MENU_* keys over DefaultPolicy.
func PolicyFromEnv() Policy {
	d := DefaultPolicy()
	return Policy{
		MaxAttempts:      config.Int("MENU_MAX_ATTEMPTS", d.MaxAttempts),
		BaseDelay:        config.Duration("MENU_BACKOFF_BASE", d.BaseDelay),
		MaxDelay:         config.Duration("MENU_BACKOFF_MAX", d.MaxDelay),
		CallTimeout:      config.Duration("MENU_CALL_TIMEOUT", d.CallTimeout),
		OrderingFallback: config.Bool("MENU_ORDERING_FALLBACK", d.OrderingFallback),
		CategoryPause:    config.Duration("MENU_CATEGORY_PAUSE", d.CategoryPause),
	}.normalized()
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = d.CallTimeout
	}
	if p.CategoryPause < 0 {
		p.CategoryPause = 0
	}
	return p
}
