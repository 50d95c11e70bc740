package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps documents as JSON blobs in maps. Every read decodes a
// fresh copy, so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	doc, err := decodeDoc(collection, id, raw)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]Document, error) {
	return s.Query(ctx, Query{Collection: collection})
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if q.OrderBy != "" {
		if err := validField(q.OrderBy); err != nil {
			return nil, err
		}
	}
	for _, f := range q.Where {
		if err := validField(f.Field); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	docs := make([]Document, 0, len(s.collections[q.Collection]))
	for id, raw := range s.collections[q.Collection] {
		doc, err := decodeDoc(q.Collection, id, raw)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		docs = append(docs, doc)
	}
	s.mu.RUnlock()

	filtered := docs[:0]
	for _, doc := range docs {
		if matches(doc, q) {
			filtered = append(filtered, doc)
		}
	}
	docs = filtered

	sort.SliceStable(docs, func(i, j int) bool {
		return less(docs[i], docs[j], q.OrderBy, q.Desc)
	})

	if q.StartAfter != nil {
		cursor := *q.StartAfter
		start := len(docs)
		for i, doc := range docs {
			if less(cursor, doc, q.OrderBy, q.Desc) {
				start = i
				break
			}
		}
		docs = docs[start:]
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection]), nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	return s.Batch(ctx, []Write{{Op: OpSet, Collection: collection, ID: id, Data: data}})
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	return s.Batch(ctx, []Write{{Op: OpUpdate, Collection: collection, ID: id, Data: patch}})
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return s.Batch(ctx, []Write{{Op: OpDelete, Collection: collection, ID: id}})
}

func (s *MemoryStore) Batch(ctx context.Context, writes []Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage everything first so a failing write leaves the store untouched.
	staged := make(map[string]map[string][]byte)
	deleted := make(map[string]map[string]bool)
	current := func(collection, id string) ([]byte, bool) {
		if deleted[collection][id] {
			return nil, false
		}
		if raw, ok := staged[collection][id]; ok {
			return raw, true
		}
		raw, ok := s.collections[collection][id]
		return raw, ok
	}
	stage := func(collection, id string, raw []byte) {
		if staged[collection] == nil {
			staged[collection] = make(map[string][]byte)
		}
		staged[collection][id] = raw
		if deleted[collection] != nil {
			delete(deleted[collection], id)
		}
	}

	for _, w := range writes {
		if err := validID(w.ID); err != nil {
			return err
		}
		if w.Collection == "" {
			return ErrInvalidPath
		}
		switch w.Op {
		case OpSet:
			_, raw, err := normalize(w.Data)
			if err != nil {
				return err
			}
			stage(w.Collection, w.ID, raw)
		case OpUpdate:
			prev, ok := current(w.Collection, w.ID)
			if !ok {
				return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, ErrNotFound)
			}
			var data map[string]any
			if err := json.Unmarshal(prev, &data); err != nil {
				return fmt.Errorf("unmarshal document: %w", err)
			}
			_, raw, err := normalize(merge(data, w.Data))
			if err != nil {
				return err
			}
			stage(w.Collection, w.ID, raw)
		case OpDelete:
			if deleted[w.Collection] == nil {
				deleted[w.Collection] = make(map[string]bool)
			}
			deleted[w.Collection][w.ID] = true
			if staged[w.Collection] != nil {
				delete(staged[w.Collection], w.ID)
			}
		default:
			return fmt.Errorf("unknown write op %d", w.Op)
		}
	}

	for collection, ids := range deleted {
		for id := range ids {
			delete(s.collections[collection], id)
		}
	}
	for collection, docs := range staged {
		if s.collections[collection] == nil {
			s.collections[collection] = make(map[string][]byte)
		}
		for id, raw := range docs {
			s.collections[collection][id] = raw
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func decodeDoc(collection, id string, raw []byte) (Document, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return Document{}, fmt.Errorf("unmarshal document %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Collection: collection, Data: data}, nil
}

func matches(doc Document, q Query) bool {
	for _, f := range q.Where {
		v, ok := doc.Data[f.Field]
		if !ok || compareValues(v, normalizeValue(f.Value)) != 0 {
			return false
		}
	}
	if q.OrderBy != "" {
		if v, ok := doc.Data[q.OrderBy]; !ok || v == nil {
			return false
		}
	}
	return true
}

// less orders a before b by field (then id), honouring desc.
func less(a, b Document, field string, desc bool) bool {
	c := 0
	if field != "" {
		c = compareValues(a.Data[field], b.Data[field])
	}
	if c == 0 {
		c = compareStrings(a.ID, b.ID)
	}
	if desc {
		return c > 0
	}
	return c < 0
}

// compareValues follows SQLite's cross-type order: null < numbers < text.
// Booleans compare as numbers.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case float64:
		bv := toFloat(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case bool:
		return compareValues(toFloat(av), toFloat(b))
	case string:
		return compareStrings(av, b.(string))
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64, bool:
		return 1
	case string:
		return 2
	}
	return 3
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
