package backend

import (
	"context"
	"fmt"
	"strings"
)

// Document is one stored document: its id, full path and fields.
type Document struct {
	ID     string
	Path   string
	Fields map[string]any
}

// DocumentStore reads and writes documents addressed by slash-separated
// paths with alternating collection and id segments: "businesses/b1" is a
// document, "businesses/b1/menu" is a collection.
type DocumentStore interface {
	Get(ctx context.Context, docPath string) (Document, error)

	// List returns every document in the collection, sorted ascending by
	// orderBy when it is not empty.
	List(ctx context.Context, collectionPath, orderBy string) ([]Document, error)

	Set(ctx context.Context, docPath string, fields map[string]any) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Watcher is implemented by stores that can report changes. fn receives the
// path of each changed document under collection whose parent path starts
// with parentPrefix. Watch blocks until ctx is done or the stream fails.
type Watcher interface {
	Watch(ctx context.Context, collection, parentPrefix string, fn func(docPath string)) error
}

// BlobStore turns storage paths into fetchable URLs.
type BlobStore interface {
	URL(ctx context.Context, path string) (string, error)

	// Close drops any URLs cached on behalf of this handle.
	Close(ctx context.Context) error
}

// DocPath joins segments into a path.
func DocPath(segments ...string) string {
	return strings.Join(segments, "/")
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

// parseDoc splits a document path into its collection name, id and parent
// path. "businesses/b1/menu/c1" → ("menu", "c1", "businesses/b1").
func parseDoc(docPath string) (collection, id, parent string, err error) {
	segs := splitPath(docPath)
	if len(segs) < 2 || len(segs)%2 != 0 || hasEmpty(segs) {
		return "", "", "", fmt.Errorf("invalid document path %q", docPath)
	}
	n := len(segs)
	return segs[n-2], segs[n-1], strings.Join(segs[:n-2], "/"), nil
}

// parseCollection splits a collection path into its name and parent path.
// "businesses/b1/menu" → ("menu", "businesses/b1").
func parseCollection(collectionPath string) (collection, parent string, err error) {
	segs := splitPath(collectionPath)
	if len(segs)%2 != 1 || hasEmpty(segs) {
		return "", "", fmt.Errorf("invalid collection path %q", collectionPath)
	}
	n := len(segs)
	return segs[n-1], strings.Join(segs[:n-1], "/"), nil
}

func hasEmpty(segs []string) bool {
	for _, s := range segs {
		if s == "" {
			return true
		}
	}
	return false
}
