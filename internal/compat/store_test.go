package compat

import (
	"context"
	"errors"
	"sync"

	"restocrm/internal/docstore"

	"github.com/stretchr/testify/mock"
)

var errInjected = errors.New("injected store failure")

// flakyStore fails operations on chosen collections. A budget of -1
// fails forever.
type flakyStore struct {
	*docstore.MemoryStore

	mu         sync.Mutex
	failWrites map[string]int
	failReads  map[string]int
	writes     map[string]int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		MemoryStore: docstore.NewMemoryStore(),
		failWrites:  map[string]int{},
		failReads:   map[string]int{},
		writes:      map[string]int{},
	}
}

func (s *flakyStore) take(budget map[string]int, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := budget[collection]
	if !ok || n == 0 {
		return nil
	}
	if n > 0 {
		budget[collection] = n - 1
	}
	return errInjected
}

func (s *flakyStore) countWrite(collection string) {
	s.mu.Lock()
	s.writes[collection]++
	s.mu.Unlock()
}

func (s *flakyStore) writeCount(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[collection]
}

func (s *flakyStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := s.take(s.failReads, collection); err != nil {
		return nil, err
	}
	return s.MemoryStore.Get(ctx, collection, id)
}

func (s *flakyStore) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	if err := s.take(s.failReads, collection); err != nil {
		return nil, err
	}
	return s.MemoryStore.List(ctx, collection)
}

func (s *flakyStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	s.countWrite(collection)
	if err := s.take(s.failWrites, collection); err != nil {
		return err
	}
	return s.MemoryStore.Set(ctx, collection, id, data)
}

func (s *flakyStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	s.countWrite(collection)
	if err := s.take(s.failWrites, collection); err != nil {
		return err
	}
	return s.MemoryStore.Update(ctx, collection, id, patch)
}

func (s *flakyStore) Delete(ctx context.Context, collection, id string) error {
	s.countWrite(collection)
	if err := s.take(s.failWrites, collection); err != nil {
		return err
	}
	return s.MemoryStore.Delete(ctx, collection, id)
}

func (s *flakyStore) Batch(ctx context.Context, writes []docstore.Write) error {
	if len(writes) > 0 {
		s.countWrite(writes[0].Collection)
		if err := s.take(s.failWrites, writes[0].Collection); err != nil {
			return err
		}
	}
	return s.MemoryStore.Batch(ctx, writes)
}

// mockStore fails the test on any call without an expectation.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	args := m.Called(ctx, collection, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*docstore.Document), args.Error(1)
}

func (m *mockStore) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	args := m.Called(ctx, collection)
	return args.Get(0).([]docstore.Document), args.Error(1)
}

func (m *mockStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]docstore.Document), args.Error(1)
}

func (m *mockStore) Count(ctx context.Context, collection string) (int, error) {
	args := m.Called(ctx, collection)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	return m.Called(ctx, collection, id, data).Error(0)
}

func (m *mockStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	return m.Called(ctx, collection, id, patch).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, collection, id string) error {
	return m.Called(ctx, collection, id).Error(0)
}

func (m *mockStore) Batch(ctx context.Context, writes []docstore.Write) error {
	return m.Called(ctx, writes).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
