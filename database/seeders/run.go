// Package seeders writes demo data into the storefront backend.
//
// Seeders register themselves from init():
//
//	func init() {
//	    seeders.Register("business", seedBusiness)
//	}
//
// Then run via CLI: storefront seed
package seeders

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/shashiranjanraj/storefront/pkg/backend"
	"github.com/shashiranjanraj/storefront/pkg/storage"
)

// Target is where seeders write. Disk may be nil, in which case image
// uploads are skipped.
type Target struct {
	DB         backend.DocumentStore
	Disk       storage.Disk
	BusinessID string
}

// SeederFunc is the signature for a seed function.
type SeederFunc func(ctx context.Context, t Target) error

type seederEntry struct {
	name string
	fn   SeederFunc
}

var (
	mu      sync.Mutex
	entries []seederEntry
)

// Register adds a seeder to the global registry.
func Register(name string, fn SeederFunc) {
	mu.Lock()
	defer mu.Unlock()
	entries = append(entries, seederEntry{name: name, fn: fn})
}

// Names lists the registered seeders in run order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

// RunAll executes every registered seeder in registration order, reporting
// progress to out. It stops on the first error.
func RunAll(ctx context.Context, t Target, out io.Writer) error {
	if t.DB == nil {
		return fmt.Errorf("seeders: no document store")
	}
	if t.BusinessID == "" {
		return fmt.Errorf("seeders: business id is empty")
	}

	mu.Lock()
	current := make([]seederEntry, len(entries))
	copy(current, entries)
	mu.Unlock()

	if len(current) == 0 {
		fmt.Fprintln(out, "  (no seeders registered)")
		return nil
	}

	for _, e := range current {
		fmt.Fprintf(out, "  • Running seeder: %s … ", e.name)
		if err := e.fn(ctx, t); err != nil {
			fmt.Fprintln(out, "FAILED")
			return fmt.Errorf("seeder %q: %w", e.name, err)
		}
		fmt.Fprintln(out, "done")
	}
	return nil
}
