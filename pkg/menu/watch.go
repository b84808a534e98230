package menu

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shashiranjanraj/storefront/pkg/backend"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/retry"
)

// ErrWatchUnsupported is returned when the document store has no change feed.
var ErrWatchUnsupported = errors.New("menu: document store cannot watch for changes")

// Watch calls onChange for every change to the business's categories or
// items until ctx is done or the connection is reset.
func (r *Repository) Watch(ctx context.Context, businessID string, onChange func(docPath string)) error {
	h, err := r.handle(ctx)
	if err != nil {
		return err
	}
	w, ok := h.DB.(backend.Watcher)
	if !ok {
		return ErrWatchUnsupported
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	untrack := r.conns.Track(cancel)
	defer untrack()

	prefix := backend.DocPath("businesses", businessID)
	g, gctx := errgroup.WithContext(ctx)
	for _, col := range []string{"menu", "items"} {
		col := col
		g.Go(func() error { return w.Watch(gctx, col, prefix, onChange) })
	}
	return g.Wait()
}

// Follow reloads the menu whenever it changes, coalescing bursts of changes
// that arrive within debounce. A watch cut short by a connection reset or a
// transient failure is re-established after a backoff, followed by one reload
// to cover changes missed in the gap. Follow returns nil when ctx is done and
// an error when the store cannot watch or fails permanently.
func (l *Loader) Follow(ctx context.Context, debounce time.Duration) error {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if ctx.Err() == nil {
				l.Reload(ctx)
			}
		})
	}

	policy := l.repo.policy
	for attempt := 0; ; {
		started := time.Now()
		err := l.repo.Watch(ctx, l.businessID, func(docPath string) {
			l.repo.log.Debug("menu: change detected", "path", docPath)
			schedule()
		})
		if ctx.Err() != nil {
			return nil
		}

		switch {
		case err == nil || errors.Is(err, context.Canceled):
			// reset underneath us
			attempt = 0
		case errors.Is(err, ErrWatchUnsupported), !backend.IsTransient(err):
			return err
		default:
			if time.Since(started) > policy.MaxDelay {
				attempt = 0
			}
			attempt++
		}

		delay := policy.BaseDelay
		if attempt > 0 {
			delay = retry.Backoff(policy.BaseDelay, policy.MaxDelay, attempt)
		}
		l.repo.log.Warn("menu: watch interrupted, resubscribing",
			"business_id", l.businessID, "attempt", attempt, "backoff", delay, "error", err)
		metrics.MenuWatchRestarts.Inc()
		if retry.Sleep(ctx, delay) != nil {
			return nil
		}
		schedule()
	}
}
