package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process DocumentStore. Tests and the offline demo use
// it in place of Mongo.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]any // doc path -> fields
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string]map[string]any{}}
}

func (s *MemoryStore) Get(_ context.Context, docPath string) (Document, error) {
	_, id, _, err := parseDoc(docPath)
	if err != nil {
		return Document{}, E("memory.get", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.docs[strings.Trim(docPath, "/")]
	if !ok {
		return Document{}, &Error{Op: "memory.get " + docPath, Kind: KindNotFound}
	}
	return Document{ID: id, Path: docPath, Fields: copyFields(fields)}, nil
}

func (s *MemoryStore) List(_ context.Context, collectionPath, orderBy string) ([]Document, error) {
	if _, _, err := parseCollection(collectionPath); err != nil {
		return nil, E("memory.list", err)
	}
	prefix := strings.Trim(collectionPath, "/") + "/"

	s.mu.RLock()
	var docs []Document
	for p, fields := range s.docs {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		docs = append(docs, Document{ID: rest, Path: p, Fields: copyFields(fields)})
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	if orderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			return CompareField(docs[i].Fields[orderBy], docs[j].Fields[orderBy]) < 0
		})
	}
	return docs, nil
}

func (s *MemoryStore) Set(_ context.Context, docPath string, fields map[string]any) error {
	if _, _, _, err := parseDoc(docPath); err != nil {
		return E("memory.set", err)
	}
	s.mu.Lock()
	s.docs[strings.Trim(docPath, "/")] = copyFields(fields)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error  { return nil }
func (s *MemoryStore) Close(context.Context) error { return nil }

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// CompareField orders two field values the way an ascending query would:
// numbers numerically, strings lexically, and missing values last.
func CompareField(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	if aNum != bNum {
		// numbers sort before strings
		if aNum {
			return -1
		}
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

var _ DocumentStore = (*MemoryStore)(nil)
