package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps encoded records in process memory. Records are stored
// as JSON so callers never share mutable state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: map[string]map[string][]byte{},
	}
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, record any) error {
	if err := ValidateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("in internal/recordstore/memorystore.go/Create(): error while `json.Marshal()` calling: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.collections[collection]
	if !ok {
		records = map[string][]byte{}
		s.collections[collection] = records
	}
	if _, exists := records[id]; exists {
		return ErrAlreadyExists
	}
	records[id] = data

	return nil
}

func (s *MemoryStore) Read(ctx context.Context, collection, id string, dst any) error {
	if err := ValidateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	data, ok := s.collections[collection][id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	return decode(data, dst)
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, record any) error {
	if err := ValidateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("in internal/recordstore/memorystore.go/Update(): error while `json.Marshal()` calling: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return ErrNotFound
	}
	s.collections[collection][id] = data

	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ValidateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.collections[collection], id)

	return nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]string, error) {
	if err := ValidateKey(collection, "_"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.collections[collection]))
	for id := range s.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

func (s *MemoryStore) ListMatching(ctx context.Context, collection string, match Matcher) ([]string, error) {
	ids, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	return filterIDs(ids, match), nil
}

// Collections returns the names of collections that hold at least one record.
func (s *MemoryStore) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []string{}
	for name, records := range s.collections {
		if len(records) > 0 {
			result = append(result, name)
		}
	}
	sort.Strings(result)

	return result, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
