package menu

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/event"
)

type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateRetrying  State = "retrying"
	StateSuccess   State = "success"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Snapshot is the loader's state at one point in time. Menu is set only in
// StateSuccess; Err only in StateFailed (and, while retrying, holds the
// failure being retried).
type Snapshot struct {
	State     State         `json:"state"`
	Menu      *Menu         `json:"menu,omitempty"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
	Retryable bool          `json:"retryable,omitempty"`
	Attempt   int           `json:"attempt,omitempty"`
	Backoff   time.Duration `json:"backoffNs,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Loader drives one business's menu through
// Idle → Loading → {Success, Retrying, Failed, Cancelled} and publishes every
// transition.
type Loader struct {
	repo       *Repository
	businessID string
	bus        event.Bus[Snapshot]

	mu     sync.Mutex
	snap   Snapshot
	gen    int
	cancel context.CancelFunc
}

func NewLoader(repo *Repository, businessID string) *Loader {
	return &Loader{
		repo:       repo,
		businessID: businessID,
		snap:       Snapshot{State: StateIdle, UpdatedAt: time.Now()},
	}
}

func (l *Loader) BusinessID() string { return l.businessID }

// Snapshot returns the current state.
func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Subscribe calls fn with every subsequent transition, synchronously on the
// loading goroutine.
func (l *Loader) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return l.bus.Listen(fn)
}

// Reload starts a new load, cancelling any load already in flight, and
// blocks until it settles. Only the newest load publishes transitions.
func (l *Loader) Reload(ctx context.Context) Snapshot {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	l.cancel = cancel
	l.mu.Unlock()

	m, err := l.repo.load(ctx, l.businessID, hooks{
		attempt: func(n int) {
			l.publish(gen, Snapshot{State: StateLoading, Attempt: n})
		},
		retry: func(n int, err error, delay time.Duration) {
			l.publish(gen, Snapshot{State: StateRetrying, Attempt: n, Err: err, Error: err.Error(), Retryable: true, Backoff: delay})
		},
	})

	var final Snapshot
	switch {
	case err == nil:
		final = Snapshot{State: StateSuccess, Menu: &m}
	case errors.Is(err, ErrCancelled):
		final = Snapshot{State: StateCancelled}
	default:
		final = Snapshot{State: StateFailed, Err: err, Error: err.Error(), Retryable: isRetryable(err)}
	}
	if !l.publish(gen, final) {
		return l.Snapshot()
	}

	l.mu.Lock()
	if l.gen == gen {
		l.cancel = nil
	}
	l.mu.Unlock()
	return final
}

// Cancel stops the load in flight, if any. It settles as Cancelled.
func (l *Loader) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (l *Loader) publish(gen int, s Snapshot) bool {
	s.UpdatedAt = time.Now()

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return false
	}
	l.snap = s
	l.mu.Unlock()

	l.bus.Fire(s)
	return true
}
