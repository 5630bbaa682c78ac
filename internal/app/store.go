package app

import (
	"context"

	"github.com/patric-chuzhbe/flatapi/internal/config"
	"github.com/patric-chuzhbe/flatapi/internal/postgresstore"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

// Storage types, picked from the configuration.
const (
	StorageTypeMemory = iota
	StorageTypeFile
	StorageTypePostgresql
)

// Store is what the services, the reaper and the admin endpoints need from a
// record backend.
type Store interface {
	recordstore.Store
	Collections(ctx context.Context) ([]string, error)
}

func storageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return StorageTypePostgresql
	}

	if cfg.DataDir != "" {
		return StorageTypeFile
	}

	return StorageTypeMemory
}

// OpenStore opens the backend selected by cfg: PostgreSQL when a DSN is set,
// otherwise the data directory, otherwise process memory.
func OpenStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch storageType(cfg) {
	case StorageTypePostgresql:
		db, err := postgresstore.New(ctx, cfg.DatabaseDSN, cfg.DBConnectionTimeout)
		if err != nil {
			return nil, err
		}
		return db, nil

	case StorageTypeFile:
		db, err := recordstore.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	return recordstore.NewMemoryStore(), nil
}
