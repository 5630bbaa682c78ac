package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/patric-chuzhbe/flatapi/internal/keylock"
)

const (
	recordExt      = ".json"
	tempFilePrefix = ".tmp-"
	dirPerm        = 0o755
)

// FileStore keeps one file per record under <baseDir>/<collection>/<id>.json.
//
// Writers of the same record are serialized in-process; readers never lock
// because every write becomes visible through a single rename or link.
type FileStore struct {
	baseDir string
	locks   *keylock.Locker
}

// NewFileStore creates baseDir if needed and returns a store rooted at it.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, dirPerm); err != nil {
		return nil, fmt.Errorf("in internal/recordstore/filestore.go/NewFileStore(): error while `os.MkdirAll()` calling: %w", err)
	}

	return &FileStore{
		baseDir: baseDir,
		locks:   keylock.New(),
	}, nil
}

func (s *FileStore) collectionDir(collection string) string {
	return filepath.Join(s.baseDir, collection)
}

func (s *FileStore) recordPath(collection, id string) string {
	return filepath.Join(s.collectionDir(collection), id+recordExt)
}

func (s *FileStore) lock(collection, id string) func() {
	return s.locks.Lock(collection + "/" + id)
}

func (s *FileStore) writeTemp(collection string, data []byte) (string, error) {
	dir := s.collectionDir(collection)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", err
	}

	file, err := os.CreateTemp(dir, tempFilePrefix+"*")
	if err != nil {
		return "", err
	}

	_, err = file.Write(data)
	if err == nil {
		err = file.Sync()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(file.Name())
		return "", err
	}

	return file.Name(), nil
}

// Create persists record under a fresh id.
func (s *FileStore) Create(ctx context.Context, collection, id string, record any) error {
	if err := ValidateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("in internal/recordstore/filestore.go/Create(): error while `json.Marshal()` calling: %w", err)
	}

	unlock := s.lock(collection, id)
	defer unlock()

	tmp, err := s.writeTemp(collection, data)
	if err != nil {
		return fmt.Errorf("in internal/recordstore/filestore.go/Create(): error while `s.writeTemp()` calling: %w", err)
	}
	defer os.Remove(tmp)

	final := s.recordPath(collection, id)
	err = os.Link(tmp, final)
	if errors.Is(err, fs.ErrExist) {
		return ErrAlreadyExists
	}
	if err == nil {
		return nil
	}

	// Hard links are not available everywhere. Writers of this id are held
	// off by the lock, so an existence check followed by rename is exclusive.
	if _, statErr := os.Lstat(final); statErr == nil {
		return ErrAlreadyExists
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("in internal/recordstore/filestore.go/Create(): error while `os.Rename()` calling: %w", err)
	}

	return nil
}

// Read decodes the record into dst.
func (s *FileStore) Read(ctx context.Context, collection, id string, dst any) error {
	if err := ValidateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(s.recordPath(collection, id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("in internal/recordstore/filestore.go/Read(): error while `os.ReadFile()` calling: %w", err)
	}

	return decode(data, dst)
}

// Update replaces an existing record.
func (s *FileStore) Update(ctx context.Context, collection, id string, record any) error {
	if err := ValidateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("in internal/recordstore/filestore.go/Update(): error while `json.Marshal()` calling: %w", err)
	}

	unlock := s.lock(collection, id)
	defer unlock()

	final := s.recordPath(collection, id)
	if _, err := os.Lstat(final); errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("in internal/recordstore/filestore.go/Update(): error while `os.Lstat()` calling: %w", err)
	}

	tmp, err := s.writeTemp(collection, data)
	if err != nil {
		return fmt.Errorf("in internal/recordstore/filestore.go/Update(): error while `s.writeTemp()` calling: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("in internal/recordstore/filestore.go/Update(): error while `os.Rename()` calling: %w", err)
	}

	return nil
}

// Delete removes a record. Deleting a missing record fails with ErrNotFound.
func (s *FileStore) Delete(ctx context.Context, collection, id string) error {
	if err := ValidateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lock(collection, id)
	defer unlock()

	err := os.Remove(s.recordPath(collection, id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("in internal/recordstore/filestore.go/Delete(): error while `os.Remove()` calling: %w", err)
	}

	return nil
}

// List returns the sorted ids of a collection.
func (s *FileStore) List(ctx context.Context, collection string) ([]string, error) {
	if err := ValidateKey(collection, "_"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.collectionDir(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("in internal/recordstore/filestore.go/List(): error while `os.ReadDir()` calling: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, recordExt))
	}

	return ids, nil
}

// ListMatching returns the ids of a collection accepted by match.
func (s *FileStore) ListMatching(ctx context.Context, collection string, match Matcher) ([]string, error) {
	ids, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}

	return filterIDs(ids, match), nil
}

// Collections returns the names of the collection directories.
func (s *FileStore) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("in internal/recordstore/filestore.go/Collections(): error while `os.ReadDir()` calling: %w", err)
	}

	result := []string{}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			result = append(result, entry.Name())
		}
	}

	return result, nil
}

// Close is a no-op: every operation leaves the directory consistent.
func (s *FileStore) Close() error {
	return nil
}

func decode(data []byte, dst any) error {
	err := json.Unmarshal(data, dst)
	if err == nil {
		return nil
	}

	var invalidTarget *json.InvalidUnmarshalError
	if errors.As(err, &invalidTarget) {
		return err
	}

	return ErrNotFound
}
