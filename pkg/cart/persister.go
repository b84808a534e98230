package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// DefaultKey is the key the cart is stored under.
const DefaultKey = "restaurant-cart"

// Persister stores a cart. Load returns an empty slice when nothing is
// stored and an error only when stored data is unreadable.
type Persister interface {
	Load(ctx context.Context) ([]Line, error)
	Save(ctx context.Context, lines []Line) error
	Clear(ctx context.Context) error
}

// ── Memory ───────────────────────────────────────────────────────────────────

// MemoryPersister keeps the encoded cart in memory. Encoding on Save keeps
// its round-trip behaviour identical to the durable persisters.
type MemoryPersister struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryPersister() *MemoryPersister { return &MemoryPersister{} }

func (m *MemoryPersister) Load(context.Context) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decodeLines(m.data)
}

func (m *MemoryPersister) Save(_ context.Context, lines []Line) error {
	b, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = b
	m.mu.Unlock()
	return nil
}

func (m *MemoryPersister) Clear(context.Context) error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}

// ── File ─────────────────────────────────────────────────────────────────────

// FilePersister stores carts in a JSON object file, one entry per key, like
// browser local storage. Writes go through a temp file and rename.
type FilePersister struct {
	path string
	key  string
	mu   sync.Mutex
}

func NewFilePersister(path, key string) *FilePersister {
	if key == "" {
		key = DefaultKey
	}
	return &FilePersister{path: path, key: key}
}

func (f *FilePersister) readAll() (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	all := map[string]json.RawMessage{}
	if len(b) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, fmt.Errorf("cart: decode %s: %w", f.path, err)
	}
	return all, nil
}

func (f *FilePersister) writeAll(all map[string]json.RawMessage) error {
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FilePersister) Load(context.Context) ([]Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.readAll()
	if err != nil {
		return nil, err
	}
	return decodeLines(all[f.key])
}

func (f *FilePersister) Save(_ context.Context, lines []Line) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.readAll()
	if err != nil {
		// unreadable file: the cart being saved replaces it
		all = map[string]json.RawMessage{}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	all[f.key] = b
	return f.writeAll(all)
}

func (f *FilePersister) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.readAll()
	if err != nil {
		return f.writeAll(map[string]json.RawMessage{})
	}
	if _, ok := all[f.key]; !ok {
		return nil
	}
	delete(all, f.key)
	return f.writeAll(all)
}

func decodeLines(b []byte) ([]Line, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var lines []Line
	if err := json.Unmarshal(b, &lines); err != nil {
		return nil, fmt.Errorf("cart: decode lines: %w", err)
	}
	return lines, nil
}
