// Package mockstore provides a testify-based mock of recordstore.Store.
// It is used by service and router tests to simulate storage failures
// that are awkward to provoke on a real directory.
package mockstore

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

// StoreMock is a testify mock implementing recordstore.Store.
//
// Read fills dst from the *json.RawMessage or []byte returned as the first
// value of the matching expectation, so tests can script record contents:
//
//	m.On("Read", mock.Anything, "users", "5551234567", mock.Anything).
//		Return([]byte(`{"phone":"5551234567"}`), nil)
type StoreMock struct {
	mock.Mock
}

// Create mocks persisting a new record.
func (m *StoreMock) Create(ctx context.Context, collection, id string, record any) error {
	args := m.Called(ctx, collection, id, record)
	return args.Error(0)
}

// Read mocks loading a record into dst.
func (m *StoreMock) Read(ctx context.Context, collection, id string, dst any) error {
	args := m.Called(ctx, collection, id, dst)
	if err := args.Error(1); err != nil {
		return err
	}

	var data []byte
	switch raw := args.Get(0).(type) {
	case []byte:
		data = raw
	case json.RawMessage:
		data = raw
	case string:
		data = []byte(raw)
	default:
		return nil
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return recordstore.ErrNotFound
	}

	return nil
}

// Update mocks replacing a record.
func (m *StoreMock) Update(ctx context.Context, collection, id string, record any) error {
	args := m.Called(ctx, collection, id, record)
	return args.Error(0)
}

// Delete mocks removing a record.
func (m *StoreMock) Delete(ctx context.Context, collection, id string) error {
	args := m.Called(ctx, collection, id)
	return args.Error(0)
}

// List mocks listing a collection.
func (m *StoreMock) List(ctx context.Context, collection string) ([]string, error) {
	args := m.Called(ctx, collection)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

// ListMatching mocks a filtered listing. The filter is applied to the ids
// returned by the expectation so scripted results stay realistic.
func (m *StoreMock) ListMatching(ctx context.Context, collection string, match recordstore.Matcher) ([]string, error) {
	args := m.Called(ctx, collection)
	ids, _ := args.Get(0).([]string)
	if err := args.Error(1); err != nil {
		return nil, err
	}

	result := []string{}
	for _, id := range ids {
		if match(id) {
			result = append(result, id)
		}
	}

	return result, nil
}

// Close mocks releasing the store.
func (m *StoreMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
