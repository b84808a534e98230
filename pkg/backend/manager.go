// Package backend owns the storefront's single live connection to its
// document database and blob store.
//
// A Manager is constructed once at startup and passed to whoever needs the
// backend:
//
//	mgr := backend.NewManager(backend.DefaultDialer{})
//	h, err := mgr.Initialize(ctx, backend.ConfigFromEnv())
//	doc, err := h.DB.Get(ctx, backend.DocPath("businesses", id))
//
// Initialize is idempotent for a given config, and concurrent callers share
// one in-flight dial. Reset disposes the handle and stops tracked watchers.
package backend

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// Handle is a live backend connection.
type Handle struct {
	App         string // config fingerprint
	DB          DocumentStore
	Storage     BlobStore
	Initialized bool
}

func (h *Handle) dispose(ctx context.Context) error {
	var errs []error
	if h.Storage != nil {
		errs = append(errs, h.Storage.Close(ctx))
	}
	if h.DB != nil {
		errs = append(errs, h.DB.Close(ctx))
	}
	h.Initialized = false
	return errors.Join(errs...)
}

// Dialer opens a new handle for cfg.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (*Handle, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, cfg Config) (*Handle, error)

func (f DialFunc) Dial(ctx context.Context, cfg Config) (*Handle, error) { return f(ctx, cfg) }

// Manager guards the process-wide handle.
type Manager struct {
	dialer Dialer
	group  singleflight.Group

	// dialMu serialises dials for different configs so the old handle is
	// always disposed before the next one is created.
	dialMu sync.Mutex

	mu       sync.Mutex
	handle   *Handle
	watchers map[int]context.CancelFunc
	nextID   int
}

func NewManager(d Dialer) *Manager {
	return &Manager{dialer: d, watchers: map[int]context.CancelFunc{}}
}

// Initialize returns the handle for cfg, dialing only when no handle for the
// same config exists. A different config disposes the current handle first.
//
// A rejected config fails with an error matching ErrConnection and leaves
// the manager uninitialized. Dial
// failures that look temporary match ErrTransient instead.
func (m *Manager) Initialize(ctx context.Context, cfg Config) (*Handle, error) {
	fp := cfg.Fingerprint()
	if h := m.current(fp); h != nil {
		return h, nil
	}

	ch := m.group.DoChan(fp, func() (any, error) {
		m.dialMu.Lock()
		defer m.dialMu.Unlock()

		if h := m.current(fp); h != nil {
			return h, nil
		}
		// The dial is shared by every waiter, so it must not die with the
		// first caller's context.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.dialTimeout())
		defer cancel()

		if err := m.Reset(dctx); err != nil {
			logger.Warn("backend: dispose previous handle", "error", err)
		}
		// A new config retires the old handle even when it is rejected.
		if err := cfg.Validate(); err != nil {
			return nil, err
		}

		h, err := m.dialer.Dial(dctx, cfg)
		if err != nil {
			metrics.BackendDials.WithLabelValues("error").Inc()
			return nil, dialError(err)
		}
		metrics.BackendDials.WithLabelValues("ok").Inc()

		h.App = fp
		h.Initialized = true

		m.mu.Lock()
		m.handle = h
		m.mu.Unlock()

		logger.Info("backend: connected", "app", fp, "database", cfg.Database, "disk", cfg.StorageDisk)
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, &Error{Op: "backend.initialize", Kind: Classify(ctx.Err()), Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	}
}

func dialError(err error) error {
	if IsTransient(err) {
		return &Error{Op: "backend.dial", Kind: Classify(err), Err: err}
	}
	return &Error{Op: "backend.dial", Kind: KindInvalidConfig, Err: err}
}

func (m *Manager) current(fp string) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != nil && m.handle.App == fp {
		return m.handle
	}
	return nil
}

// Handle returns the live handle or ErrNotInitialized.
func (m *Manager) Handle() (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return nil, ErrNotInitialized
	}
	return m.handle, nil
}

// Reset cancels tracked watchers and disposes the current handle. It is a
// no-op when nothing is initialized.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	h := m.handle
	m.handle = nil
	watchers := m.watchers
	m.watchers = map[int]context.CancelFunc{}
	m.mu.Unlock()

	for _, cancel := range watchers {
		cancel()
	}
	if h == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := h.dispose(ctx)
	logger.Info("backend: handle disposed", "app", h.App, "watchers", len(watchers))
	return err
}

// Track registers cancel to be called on the next Reset. The returned func
// unregisters it.
func (m *Manager) Track(cancel context.CancelFunc) (untrack func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = cancel
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}
