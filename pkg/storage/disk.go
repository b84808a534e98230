// Package storage is the blob store behind item images.
//
// Two drivers are available:
//   - "local": local filesystem, URLs built from STORAGE_URL (dev)
//   - "s3":    S3-compatible object storage, URLs are presigned and expire
//
// Menu documents hold storage paths ("menu/pizza.jpg"); URL turns a path into
// something a browser can fetch.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no object exists at the requested path.
var ErrNotFound = errors.New("storage: object not found")

// Disk is the blob driver interface.
type Disk interface {
	// Put writes content to path, creating parents as needed.
	Put(ctx context.Context, path string, content []byte) error

	// Get returns the full content of the object at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether an object exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, path string) error

	// URL resolves path to a fetchable http(s) URL. It fails with
	// ErrNotFound when the object is absent.
	URL(ctx context.Context, path string) (string, error)
}
