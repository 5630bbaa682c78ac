// Package postgresstore is a PostgreSQL backend for the record store.
// Each record is one row of the records table keyed by (collection, id),
// with the JSON document kept in a jsonb column.
package postgresstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// Store implements recordstore.Store on top of database/sql.
type Store struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	skipMigrations bool
}

// InitOption tunes New.
type InitOption func(*initOptions)

// WithSkipMigrations leaves the schema untouched.
func WithSkipMigrations(skip bool) InitOption {
	return func(options *initOptions) {
		options.skipMigrations = skip
	}
}

// New connects to databaseDSN through the pgx driver and migrates the schema.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*Store, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("in internal/postgresstore/postgresstore.go/New(): error while `sql.Open()` calling: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("in internal/postgresstore/postgresstore.go/New(): error while `database.PingContext()` calling: %w", err)
	}

	if !options.skipMigrations {
		if err := migrate(database); err != nil {
			_ = database.Close()
			return nil, err
		}
	}

	return NewWithDB(database, connectionTimeout), nil
}

// NewWithDB wraps an already opened database.
func NewWithDB(database *sql.DB, connectionTimeout time.Duration) *Store {
	return &Store{
		database:          database,
		connectionTimeout: connectionTimeout,
	}
}

func migrate(database *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("in internal/postgresstore/postgresstore.go/migrate(): error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.Up(database, migrationsDir); err != nil {
		return fmt.Errorf("in internal/postgresstore/postgresstore.go/migrate(): error while `goose.Up()` calling: %w", err)
	}

	return nil
}

func (s *Store) Create(ctx context.Context, collection, id string, record any) error {
	if err := recordstore.ValidateKey(collection, id); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("in internal/postgresstore/postgresstore.go/Create(): error while `json.Marshal()` calling: %w", err)
	}

	result, err := s.database.ExecContext(
		ctx,
		`
			INSERT INTO records (collection, id, data)
				VALUES ($1, $2, $3)
				ON CONFLICT (collection, id) DO NOTHING
		`,
		collection,
		id,
		data,
	)
	if err != nil {
		return fmt.Errorf("in internal/postgresstore/postgresstore.go/Create(): error while `s.database.ExecContext()` calling: %w", err)
	}

	return expectOneRow(result, recordstore.ErrAlreadyExists)
}

func (s *Store) Read(ctx context.Context, collection, id string, dst any) error {
	if err := recordstore.ValidateKey(collection, id); err != nil {
		return err
	}

	var data []byte
	err := s.database.QueryRowContext(
		ctx,
		`SELECT data FROM records WHERE collection = $1 AND id = $2`,
		collection,
		id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return recordstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("in internal/postgresstore/postgresstore.go/Read(): error while `Scan()` calling: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		var invalidTarget *json.InvalidUnmarshalError
		if errors.As(err, &invalidTarget) {
			return err
		}
		return recordstore.ErrNotFound
	}

	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, record any) error {
	if err := recordstore.ValidateKey(collection, id); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("in internal/postgresstore/postgresstore.go/Update(): error while `json.Marshal()` calling: %w", err)
	}

	result, err := s.database.ExecContext(
		ctx,
		`
			UPDATE records
				SET data = $3, updated_at = NOW()
				WHERE collection = $1 AND id = $2
		`,
		collection,
		id,
		data,
	)
	if err != nil {
		return fmt.Errorf("in internal/postgresstore/postgresstore.go/Update(): error while `s.database.ExecContext()` calling: %w", err)
	}

	return expectOneRow(result, recordstore.ErrNotFound)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := recordstore.ValidateKey(collection, id); err != nil {
		return err
	}

	result, err := s.database.ExecContext(
		ctx,
		`DELETE FROM records WHERE collection = $1 AND id = $2`,
		collection,
		id,
	)
	if err != nil {
		return fmt.Errorf("in internal/postgresstore/postgresstore.go/Delete(): error while `s.database.ExecContext()` calling: %w", err)
	}

	return expectOneRow(result, recordstore.ErrNotFound)
}

func (s *Store) List(ctx context.Context, collection string) ([]string, error) {
	if err := recordstore.ValidateKey(collection, "_"); err != nil {
		return nil, err
	}

	return s.queryStrings(
		ctx,
		`SELECT id FROM records WHERE collection = $1 ORDER BY id`,
		collection,
	)
}

func (s *Store) ListMatching(ctx context.Context, collection string, match recordstore.Matcher) ([]string, error) {
	ids, err := s.List(ctx, collection)
	if err != nil {
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

// Collections returns the distinct collection names.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT collection FROM records ORDER BY collection`)
}

// Ping checks the connection within the configured timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	return s.database.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.database.Close()
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("in internal/postgresstore/postgresstore.go/queryStrings(): error while `s.database.QueryContext()` calling: %w", err)
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("in internal/postgresstore/postgresstore.go/queryStrings(): error while `rows.Scan()` calling: %w", err)
		}
		result = append(result, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("in internal/postgresstore/postgresstore.go/queryStrings(): error while `rows.Err()` calling: %w", err)
	}

	return result, nil
}

func expectOneRow(result sql.Result, errIfNone error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("in internal/postgresstore/postgresstore.go/expectOneRow(): error while `result.RowsAffected()` calling: %w", err)
	}
	if affected == 0 {
		return errIfNone
	}

	return nil
}
