package backend

import (
	"context"
	"sync"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/storage"
)

// DiskBlobs resolves blob paths through a storage disk and caches the
// resulting URLs in Redis for less than their lifetime.
type DiskBlobs struct {
	disk   storage.Disk
	cache  *cache.Cache
	ttl    time.Duration
	prefix string

	mu   sync.Mutex
	keys map[string]struct{}
}

// NewDiskBlobs caches URLs for ttl under keys prefixed with prefix. A nil
// cache disables caching.
func NewDiskBlobs(disk storage.Disk, c *cache.Cache, ttl time.Duration, prefix string) *DiskBlobs {
	return &DiskBlobs{
		disk:   disk,
		cache:  c,
		ttl:    ttl,
		prefix: "storefront:blob:" + prefix + ":",
		keys:   map[string]struct{}{},
	}
}

func (b *DiskBlobs) URL(ctx context.Context, path string) (url string, err error) {
	defer func(t time.Time) { observe("blob.url", t, err) }(time.Now())

	key := b.prefix + path
	if b.cache.Get(ctx, key, &url) {
		metrics.CacheHits.WithLabelValues("blob_url").Inc()
		return url, nil
	}
	metrics.CacheMisses.WithLabelValues("blob_url").Inc()

	url, err = b.disk.URL(ctx, path)
	if err != nil {
		return "", E("blob.url "+path, err)
	}

	if b.cache != nil && b.ttl > 0 {
		if err := b.cache.Set(ctx, key, url, b.ttl); err == nil {
			b.mu.Lock()
			b.keys[key] = struct{}{}
			b.mu.Unlock()
		}
	}
	return url, nil
}

// Close deletes every URL this store cached.
func (b *DiskBlobs) Close(ctx context.Context) error {
	b.mu.Lock()
	keys := make([]string, 0, len(b.keys))
	for k := range b.keys {
		keys = append(keys, k)
	}
	b.keys = map[string]struct{}{}
	b.mu.Unlock()

	if err := b.cache.Del(ctx, keys...); err != nil {
		return err
	}
	return b.cache.Close()
}

var _ BlobStore = (*DiskBlobs)(nil)
