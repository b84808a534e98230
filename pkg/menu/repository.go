// Package menu loads a business and its category→item tree from the
// backend, resolving item images and retrying transient failures.
package menu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/backend"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/retry"
	"github.com/shashiranjanraj/storefront/pkg/workerpool"
)

// ErrCancelled is returned when the caller's context ends a load. It is a
// settlement, not a failure.
var ErrCancelled = errors.New("menu: load cancelled")

// Connector is the part of backend.Manager the repository needs.
type Connector interface {
	Initialize(ctx context.Context, cfg backend.Config) (*backend.Handle, error)
	Reset(ctx context.Context) error
	Track(cancel context.CancelFunc) (untrack func())
}

// Repository reads menus through a Connector.
type Repository struct {
	conns  Connector
	cfg    backend.Config
	policy Policy
	pool   *workerpool.Pool
	log    *slog.Logger
}

type Option func(*Repository)

// WithPool resolves images on pool instead of the caller's goroutine.
func WithPool(p *workerpool.Pool) Option {
	return func(r *Repository) { r.pool = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.log = l }
}

func NewRepository(conns Connector, cfg backend.Config, policy Policy, opts ...Option) *Repository {
	r := &Repository{
		conns:  conns,
		cfg:    cfg,
		policy: policy.normalized(),
		log:    logger.L,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Repository) Policy() Policy { return r.policy }

// ── Caller-facing loads (retrying) ───────────────────────────────────────────

// LoadBusiness reads the business profile, retrying transient failures.
func (r *Repository) LoadBusiness(ctx context.Context, businessID string) (Business, error) {
	var b Business
	err := r.withRetry(ctx, "business", hooks{}, func(ctx context.Context) error {
		var err error
		b, err = r.FetchBusiness(ctx, businessID)
		return err
	})
	return b, err
}

// LoadMenu reads every non-empty category with its items, retrying transient
// failures.
func (r *Repository) LoadMenu(ctx context.Context, businessID string) ([]Category, error) {
	var cats []Category
	err := r.withRetry(ctx, "menu", hooks{}, func(ctx context.Context) error {
		var err error
		cats, err = r.FetchMenu(ctx, businessID)
		return err
	})
	return cats, err
}

// Load reads the business and its menu as one retried operation.
func (r *Repository) Load(ctx context.Context, businessID string) (Menu, error) {
	return r.load(ctx, businessID, hooks{})
}

func (r *Repository) load(ctx context.Context, businessID string, h hooks) (Menu, error) {
	var m Menu
	err := r.withRetry(ctx, "full", h, func(ctx context.Context) error {
		b, err := r.FetchBusiness(ctx, businessID)
		if err != nil {
			return err
		}
		cats, err := r.FetchMenu(ctx, businessID)
		if err != nil {
			return err
		}
		m = Menu{Business: b, Categories: cats}
		return nil
	})
	return m, err
}

type hooks struct {
	attempt func(n int)
	retry   func(n int, err error, delay time.Duration)
}

// withRetry runs fn up to MaxAttempts times. Only transient errors are
// retried; transient failures also reset the connection so the next attempt
// dials a fresh handle.
func (r *Repository) withRetry(ctx context.Context, what string, h hooks, fn func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return r.settle(what, cancelled(cerr))
		}
		if h.attempt != nil {
			h.attempt(attempt)
		}
		metrics.MenuLoadAttempts.Inc()

		err = fn(ctx)
		if err == nil {
			return r.settle(what, nil)
		}
		if cerr := ctx.Err(); cerr != nil || errors.Is(err, ErrCancelled) {
			return r.settle(what, cancelled(cerr))
		}
		if !backend.IsTransient(err) || attempt >= r.policy.MaxAttempts {
			return r.settle(what, err)
		}

		delay := retry.Backoff(r.policy.BaseDelay, r.policy.MaxDelay, attempt)
		r.log.Warn("menu: load failed, retrying",
			"load", what, "attempt", attempt, "max_attempts", r.policy.MaxAttempts,
			"backoff", delay, "error", err)
		if rerr := r.conns.Reset(ctx); rerr != nil {
			r.log.Warn("menu: reset connection", "error", rerr)
		}
		if h.retry != nil {
			h.retry(attempt, err, delay)
		}
		if serr := retry.Sleep(ctx, delay); serr != nil {
			return r.settle(what, cancelled(serr))
		}
	}
}

func (r *Repository) settle(what string, err error) error {
	state := StateSuccess
	switch {
	case errors.Is(err, ErrCancelled):
		state = StateCancelled
	case err != nil:
		state = StateFailed
		r.log.Error("menu: load failed", "load", what, "error", err)
	}
	metrics.MenuLoads.WithLabelValues(string(state)).Inc()
	return err
}

func cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// ── Single attempts ──────────────────────────────────────────────────────────

// FetchBusiness performs one read of businesses/{id}. Failures match
// backend.ErrNotFound, backend.ErrTransient or backend.ErrPermission.
func (r *Repository) FetchBusiness(ctx context.Context, businessID string) (Business, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return Business{}, classify("menu.connect", err)
	}

	var doc backend.Document
	err = r.call(ctx, func(ctx context.Context) error {
		var err error
		doc, err = h.DB.Get(ctx, backend.DocPath("businesses", businessID))
		return err
	})
	if err != nil {
		return Business{}, classify("menu.business "+businessID, err)
	}
	return decodeBusiness(doc), nil
}

// FetchMenu performs one load of the category tree. Categories are fetched
// one after another; a category whose items fail to load is skipped. When
// every category fails the last error is returned.
func (r *Repository) FetchMenu(ctx context.Context, businessID string) ([]Category, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return nil, classify("menu.connect", err)
	}

	catDocs, err := r.list(ctx, h, backend.DocPath("businesses", businessID, "menu"), sortOrderFields)
	if err != nil {
		return nil, classify("menu.categories "+businessID, err)
	}

	var (
		out     []Category
		lastErr error
		failed  int
	)
	for i, cd := range catDocs {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cancelled(cerr)
		}
		if i > 0 && r.policy.CategoryPause > 0 {
			if err := retry.Sleep(ctx, r.policy.CategoryPause); err != nil {
				return nil, cancelled(err)
			}
		}

		cat := decodeCategory(cd)
		items, err := r.fetchItems(ctx, h, cd.Path)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cancelled(cerr)
			}
			failed++
			lastErr = err
			metrics.CategoriesSkipped.Inc()
			r.log.Warn("menu: category skipped", "business_id", businessID,
				"category_id", cat.ID, "category", cat.Name, "error", err)
			continue
		}
		if len(items) == 0 {
			metrics.CategoriesSkipped.Inc()
			r.log.Debug("menu: empty category dropped", "category_id", cat.ID)
			continue
		}

		r.resolveImages(ctx, h, items)
		cat.Items = items
		out = append(out, cat)
	}

	if failed > 0 && failed == len(catDocs) {
		return nil, classify("menu.items "+businessID, lastErr)
	}
	return out, nil
}

func (r *Repository) fetchItems(ctx context.Context, h *backend.Handle, categoryPath string) ([]Item, error) {
	docs, err := r.list(ctx, h, categoryPath+"/items", []string{"name"})
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(docs))
	for _, d := range docs {
		items = append(items, decodeItem(d))
	}
	return items, nil
}

// list fetches a collection ordered by the first present of fields. When
// the backend cannot order it and the policy allows, it refetches unordered.
// The result is always sorted locally so the order holds for any backend;
// documents missing the field go last.
func (r *Repository) list(ctx context.Context, h *backend.Handle, collection string, fields []string) ([]backend.Document, error) {
	var docs []backend.Document
	fetch := func(orderBy string) error {
		return r.call(ctx, func(ctx context.Context) error {
			var err error
			docs, err = h.DB.List(ctx, collection, orderBy)
			return err
		})
	}

	err := fetch(fields[0])
	if err != nil && r.policy.OrderingFallback && errors.Is(err, backend.ErrOrderingUnsupported) {
		r.log.Warn("menu: ordered query unsupported, falling back", "collection", collection, "order_by", fields[0])
		err = fetch("")
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return backend.CompareField(first(docs[i].Fields, fields), first(docs[j].Fields, fields)) < 0
	})
	return docs, nil
}

// resolveImages fills ResolvedImageURL concurrently. A failed resolution
// leaves it nil and never fails the load.
func (r *Repository) resolveImages(ctx context.Context, h *backend.Handle, items []Item) {
	var b workerpool.Batch
	for i := range items {
		it := &items[i]
		ref := strings.TrimSpace(it.ImageRef)
		if ref == "" {
			continue
		}
		if isHTTPURL(ref) {
			it.ResolvedImageURL = &ref
			continue
		}
		if h.Storage == nil {
			continue
		}

		b.Go(ctx, r.pool, func() {
			var u string
			err := r.call(ctx, func(ctx context.Context) error {
				var err error
				u, err = h.Storage.URL(ctx, ref)
				return err
			})
			if err == nil && !isHTTPURL(u) {
				err = fmt.Errorf("resolved url %q is not http(s)", u)
			}
			if err != nil {
				metrics.ImageResolveFailures.Inc()
				r.log.Warn("menu: image not resolved", "item_id", it.ID, "image_ref", ref, "error", err)
				return
			}
			it.ResolvedImageURL = &u
		})
	}
	b.Wait()
}

func (r *Repository) handle(ctx context.Context) (*backend.Handle, error) {
	var h *backend.Handle
	err := r.call(ctx, func(ctx context.Context) error {
		var err error
		h, err = r.conns.Initialize(ctx, r.cfg)
		return err
	})
	return h, err
}

// call bounds fn with the per-call timeout.
func (r *Repository) call(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, r.policy.CallTimeout)
	defer cancel()

	err := fn(cctx)
	if err != nil && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && !backend.IsTransient(err) {
		return &backend.Error{Op: "menu.call", Kind: backend.KindTimeout, Err: err}
	}
	return err
}

// classify wraps err as a *backend.Error. Anything unclassified is reported
// as a permission failure; cancellation becomes ErrCancelled.
func classify(op string, err error) error {
	kind := backend.Classify(err)
	switch kind {
	case backend.KindUnknown:
		kind = backend.KindPermission
	case backend.KindCancelled:
		return cancelled(err)
	}
	var be *backend.Error
	if errors.As(err, &be) && be.Kind == kind {
		return err
	}
	return &backend.Error{Op: op, Kind: kind, Err: err}
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
