// Package postgres stores ledger entries in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

// Open connects to url, verifies the connection and migrates the schema.
func Open(ctx context.Context, url string) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := mpostgres.WithInstance(db, &mpostgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m.Close would close db, which is still in use.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Insert(ctx context.Context, scope string, e core.Entry) error {
	const query = `INSERT INTO entries (id, scope, number, operation, comment, date)
	VALUES ($1, $2, $3, $4, $5, $6)`

	op := sql.NullString{String: string(e.Operation), Valid: !e.Operation.IsLegacy()}
	if _, err := s.db.ExecContext(ctx, query, e.ID, scope, e.Number.String(), op, e.Comment, e.Date.UTC()); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *Store) FindAll(ctx context.Context, scope string) ([]core.Entry, error) {
	const query = `SELECT id, number, operation, comment, date FROM entries
	WHERE scope = $1 ORDER BY seq ASC`
	return s.list(ctx, query, scope)
}

func (s *Store) FindAllSortedByDateDesc(ctx context.Context, scope string) ([]core.Entry, error) {
	const query = `SELECT id, number, operation, comment, date FROM entries
	WHERE scope = $1 ORDER BY date DESC, seq DESC`
	return s.list(ctx, query, scope)
}

func (s *Store) list(ctx context.Context, query, scope string) ([]core.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []core.Entry{}
	for rows.Next() {
		var (
			e      core.Entry
			number string
			op     sql.NullString
		)
		if err := rows.Scan(&e.ID, &number, &op, &e.Comment, &e.Date); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.Number, err = decimal.NewFromString(number); err != nil {
			return nil, fmt.Errorf("entry %s: bad number %q: %w", e.ID, number, err)
		}
		e.Operation = core.Operation(op.String)
		e.Date = e.Date.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
