package backend

import (
	"context"
	"time"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/storage"
)

// DefaultDialer connects Mongo, boots the configured storage disk and, when
// Redis answers, a URL cache.
type DefaultDialer struct {
	// Disks overrides the disk registry. Nil boots one from config.
	Disks *storage.Manager
}

func (d DefaultDialer) Dial(ctx context.Context, cfg Config) (*Handle, error) {
	db, err := DialMongo(ctx, cfg.MongoURI, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureIndexes(ctx, "menu", "items"); err != nil {
		logger.Warn("backend: index creation failed", "error", err)
	}

	disks := d.Disks
	if disks == nil {
		disks = storage.FromConfig(ctx)
	}
	disk, err := disks.Use(cfg.StorageDisk)
	if err != nil {
		_ = db.Close(context.Background())
		return nil, &Error{Op: "backend.dial", Kind: KindInvalidConfig, Err: err}
	}

	var c *cache.Cache
	if cfg.RedisAddr != "" {
		c, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("backend: url cache disabled", "error", err)
		}
	}

	return &Handle{
		DB:      db,
		Storage: NewDiskBlobs(disk, c, urlCacheTTL(disk), cfg.Fingerprint()),
	}, nil
}

// urlCacheTTL keeps cached presigned URLs well inside their lifetime.
func urlCacheTTL(disk storage.Disk) time.Duration {
	if s3, ok := disk.(*storage.S3Disk); ok {
		return s3.TTL() * 4 / 5
	}
	return config.Duration("BLOB_URL_CACHE_TTL", time.Hour)
}
