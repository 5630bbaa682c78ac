// Package recordstore keeps JSON records addressed by (collection, id).
//
// Every backend honours the same contract: Create is exclusive and atomic,
// Update replaces the whole record, Delete is not idempotent, and a record
// that cannot be decoded reads as missing. There are no cross-record
// transactions.
package recordstore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrNotFound is returned for a missing or undecodable record.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidKey is returned for collection names or ids that cannot be
	// used as a storage key.
	ErrInvalidKey = errors.New("invalid collection or record id")
)

// Matcher selects record ids.
type Matcher func(id string) bool

// Containing matches ids that contain s.
func Containing(s string) Matcher {
	return func(id string) bool {
		return strings.Contains(id, s)
	}
}

// HasSuffix matches ids ending with s.
func HasSuffix(s string) Matcher {
	return func(id string) bool {
		return strings.HasSuffix(id, s)
	}
}

// Store is implemented by every record backend.
type Store interface {
	Create(ctx context.Context, collection, id string, record any) error
	Read(ctx context.Context, collection, id string, dst any) error
	Update(ctx context.Context, collection, id string, record any) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]string, error)
	ListMatching(ctx context.Context, collection string, match Matcher) ([]string, error)
	Close() error
}

// ValidateKey rejects keys that could escape the collection directory or
// are otherwise unusable as file names.
func ValidateKey(collection, id string) error {
	for _, part := range []string{collection, id} {
		if part == "" || part == "." || part == ".." ||
			strings.ContainsAny(part, `/\`+"\x00") ||
			strings.HasPrefix(part, ".") {
			return ErrInvalidKey
		}
	}

	return nil
}

func filterIDs(ids []string, match Matcher) []string {
	result := []string{}
	for _, id := range ids {
		if match(id) {
			result = append(result, id)
		}
	}

	return result
}
