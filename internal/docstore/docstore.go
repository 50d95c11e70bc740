// Package docstore is a small hierarchical document store: collections
// addressed by slash-separated paths, documents holding JSON objects.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidPath  = errors.New("invalid document path")
	ErrInvalidField = errors.New("invalid field name")
)

// Document is one stored record. Data holds JSON-compatible values only:
// numbers always come back as float64.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Data       map[string]any `json:"data"`
}

// String returns a field rendered as text, "" when absent.
func (d Document) String(field string) string {
	v, ok := d.Data[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}

// Int64 returns a numeric field, 0 when absent or not a number.
func (d Document) Int64(field string) int64 {
	if f, ok := d.Data[field].(float64); ok {
		return int64(f)
	}
	return 0
}

type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection. With OrderBy set, documents
// lacking the field are excluded; ties are broken by document id in the
// same direction. StartAfter resumes after the given document.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Desc       bool
	StartAfter *Document
	Limit      int
}

type WriteOp int

const (
	OpSet WriteOp = iota
	OpUpdate
	OpDelete
)

type Write struct {
	Op         WriteOp
	Collection string
	ID         string
	Data       map[string]any
}

type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Count(ctx context.Context, collection string) (int, error)
	Set(ctx context.Context, collection, id string, data map[string]any) error
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	// Batch applies all writes or none.
	Batch(ctx context.Context, writes []Write) error
	Close() error
}

// Path joins segments into a collection path. Empty segments and segments
// containing a slash are rejected.
func Path(segments ...string) (string, error) {
	if len(segments) == 0 {
		return "", ErrInvalidPath
	}
	for _, s := range segments {
		if strings.TrimSpace(s) == "" || strings.Contains(s, "/") {
			return "", fmt.Errorf("%w: segment %q", ErrInvalidPath, s)
		}
	}
	return strings.Join(segments, "/"), nil
}

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validField(field string) error {
	if !fieldRe.MatchString(field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
		return fmt.Errorf("%w: id %q", ErrInvalidPath, id)
	}
	return nil
}

// Encode converts a record into document data.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Decode fills v from document data.
func Decode(doc Document, v any) error {
	return DecodeMap(doc.Data, v)
}

func DecodeMap(data map[string]any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// normalize round-trips data through JSON so every backend hands out the
// same value types.
func normalize(data map[string]any) (map[string]any, []byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return out, raw, nil
}

func normalizeValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func merge(dst, patch map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range patch {
		dst[k] = v
	}
	return dst
}
