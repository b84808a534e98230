package menu_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/backend"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/menu"
	"github.com/shashiranjanraj/storefront/pkg/storage"
)

func init() { logger.Discard() }

var transient = &backend.Error{Op: "test", Kind: backend.KindUnavailable}

// fakeStore wraps a MemoryStore with programmable failures.
type fakeStore struct {
	*backend.MemoryStore

	calls atomic.Int32

	mu        sync.Mutex
	getErrs   []error          // consumed one per Get
	listErrs  map[string]error // by collection path suffix, returned every time
	noOrder   bool             // ordered lists fail as unsupported
	delay     time.Duration    // every call waits this long (ctx-aware)
	beforeOp  func(op, path string)
	afterStop atomic.Int32
	stopped   atomic.Bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{MemoryStore: backend.NewMemoryStore(), listErrs: map[string]error{}}
}

func (s *fakeStore) enter(ctx context.Context, op, path string) error {
	s.calls.Add(1)
	if s.stopped.Load() {
		s.afterStop.Add(1)
	}
	if s.beforeOp != nil {
		s.beforeOp(op, path)
	}
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return nil
}

func (s *fakeStore) Get(ctx context.Context, p string) (backend.Document, error) {
	if err := s.enter(ctx, "get", p); err != nil {
		return backend.Document{}, err
	}
	s.mu.Lock()
	if len(s.getErrs) > 0 {
		err := s.getErrs[0]
		s.getErrs = s.getErrs[1:]
		s.mu.Unlock()
		if err != nil {
			return backend.Document{}, err
		}
	} else {
		s.mu.Unlock()
	}
	return s.MemoryStore.Get(ctx, p)
}

func (s *fakeStore) List(ctx context.Context, p, orderBy string) ([]backend.Document, error) {
	if err := s.enter(ctx, "list", p); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for suffix, err := range s.listErrs {
		if strings.HasSuffix(p, suffix) {
			return nil, err
		}
	}
	if s.noOrder && orderBy != "" {
		return nil, &backend.Error{Op: "list", Kind: backend.KindOrderingUnsupported}
	}
	// Scramble the order so the repository's own sort is what's tested.
	docs, err := s.MemoryStore.List(ctx, p, "")
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	return docs, err
}

// fakeBlobs resolves paths from a fixed table.
type fakeBlobs struct {
	urls map[string]string
}

func (b fakeBlobs) URL(_ context.Context, p string) (string, error) {
	if u, ok := b.urls[p]; ok {
		return u, nil
	}
	return "", &backend.Error{Op: "blob", Kind: backend.KindNotFound, Err: storage.ErrNotFound}
}

func (b fakeBlobs) Close(context.Context) error { return nil }

type env struct {
	store *fakeStore
	mgr   *backend.Manager
	dials atomic.Int32
	repo  *menu.Repository
}

func fastPolicy() menu.Policy {
	p := menu.DefaultPolicy()
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 4 * time.Millisecond
	p.CallTimeout = time.Second
	return p
}

func newEnv(t *testing.T, p menu.Policy) *env {
	t.Helper()
	e := &env{store: newFakeStore()}
	blobs := fakeBlobs{urls: map[string]string{
		"menu/margherita.jpg": "https://cdn.test/margherita.jpg",
		"menu/cola.png":       "https://cdn.test/cola.png",
		"menu/bad.png":        "ftp://cdn.test/bad.png",
	}}
	e.mgr = backend.NewManager(backend.DialFunc(func(ctx context.Context, cfg backend.Config) (*backend.Handle, error) {
		e.dials.Add(1)
		return &backend.Handle{DB: e.store, Storage: blobs}, nil
	}))
	e.repo = menu.NewRepository(e.mgr, backend.Config{MongoURI: "mongodb://test", Database: "shop"}, p)
	return e
}

func (e *env) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	set := func(p string, f map[string]any) {
		require.NoError(t, e.store.MemoryStore.Set(ctx, p, f))
	}

	set("businesses/b1", map[string]any{
		"name": "Casa Nonna", "businessType": "restaurant",
		"contactInfo": map[string]any{"whatsapp": "+5491100000000", "instagram": "@nonna"},
	})

	set("businesses/b1/menu/drinks", map[string]any{"name": "Drinks", "sortOrder": 3})
	set("businesses/b1/menu/pizzas", map[string]any{"name": "Pizzas", "sortOrder": 1})
	set("businesses/b1/menu/empty", map[string]any{"name": "Coming soon", "sortOrder": 0})
	set("businesses/b1/menu/pastas", map[string]any{"name": "Pastas", "order": 2})

	set("businesses/b1/menu/pizzas/items/p2", map[string]any{"name": "Napoletana", "price": 12.5, "image": "menu/missing.jpg"})
	set("businesses/b1/menu/pizzas/items/p1", map[string]any{"name": "Margherita", "price": "10.50", "image": "menu/margherita.jpg", "isFeatured": true})
	set("businesses/b1/menu/pizzas/items/p3", map[string]any{"name": "Diavola", "price": 13, "imageRef": "https://img.test/diavola.jpg", "isFeatured": true, "isAvailable": false})

	set("businesses/b1/menu/pastas/items/x1", map[string]any{"name": "Lasagna", "price": 14})

	set("businesses/b1/menu/drinks/items/d2", map[string]any{"name": "Water", "price": 2})
	set("businesses/b1/menu/drinks/items/d1", map[string]any{"name": "Cola", "price": 3, "image": "menu/cola.png", "isFeatured": true})
	set("businesses/b1/menu/drinks/items/d3", map[string]any{"name": "Beer", "price": 5, "image": "menu/bad.png"})
}

func names(cats []menu.Category) []string {
	var out []string
	for _, c := range cats {
		out = append(out, c.Name)
	}
	return out
}

func itemNames(c menu.Category) []string {
	var out []string
	for _, it := range c.Items {
		out = append(out, it.Name)
	}
	return out
}
