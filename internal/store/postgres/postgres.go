// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
	"github.com/couchcryptid/quake-alert-service/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements store.Store backed by a PostgreSQL database.
type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

var _ store.Store = (*Store)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
// A database that cannot be reached is a *domain.StoreUnavailableError.
func New(ctx context.Context, databaseURL string, clock clockwork.Clock) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &domain.StoreUnavailableError{Op: "connect", Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewWithDB(db, clock), nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, clock: clock}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func (s *Store) Upsert(ctx context.Context, eq domain.Earthquake) error {
	if err := queryUpsertEarthquake(ctx, s.db, eq, s.clock.Now().UnixMilli()); err != nil {
		return &domain.StoreUnavailableError{Op: "upsert", Err: err}
	}
	return nil
}

func (s *Store) QueryAll(ctx context.Context, filter domain.QueryFilter) ([]domain.Earthquake, int, error) {
	rows, total, err := queryListEarthquakes(ctx, s.db, filter)
	if err != nil {
		return nil, 0, &domain.StoreUnavailableError{Op: "query", Err: err}
	}
	return rows, total, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Earthquake, error) {
	eq, err := queryGetEarthquake(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Earthquake{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Earthquake{}, &domain.StoreUnavailableError{Op: "get", Err: err}
	}
	return eq, nil
}

func (s *Store) AppendFetchLog(ctx context.Context, entry domain.FetchLog) error {
	if err := queryInsertFetchLog(ctx, s.db, entry); err != nil {
		return &domain.StoreUnavailableError{Op: "append fetch log", Err: err}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.StoreUnavailableError{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
