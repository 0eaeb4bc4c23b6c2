// Package sqlite stores ledger entries in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"saldo/internal/core"

	_ "modernc.org/sqlite"
)

type Store struct {
	db      *sql.DB
	queries *Queries
}

// Open creates the database file if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent submissions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, queries: New(db)}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Insert(ctx context.Context, scope string, e core.Entry) error {
	err := s.queries.InsertEntry(ctx, InsertEntryParams{
		ID:        e.ID,
		Scope:     scope,
		Number:    e.Number.String(),
		Operation: sql.NullString{String: string(e.Operation), Valid: !e.Operation.IsLegacy()},
		Comment:   e.Comment,
		Date:      core.FormatDate(e.Date),
	})
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *Store) FindAll(ctx context.Context, scope string) ([]core.Entry, error) {
	rows, err := s.queries.ListEntries(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return toEntries(rows)
}

func (s *Store) FindAllSortedByDateDesc(ctx context.Context, scope string) ([]core.Entry, error) {
	rows, err := s.queries.ListEntriesByDateDesc(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list entries by date: %w", err)
	}
	return toEntries(rows)
}

func toEntries(rows []EntryRow) ([]core.Entry, error) {
	out := make([]core.Entry, 0, len(rows))
	for _, r := range rows {
		number, err := decimal.NewFromString(r.Number)
		if err != nil {
			return nil, fmt.Errorf("entry %s: bad number %q: %w", r.ID, r.Number, err)
		}
		date, err := core.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", r.ID, err)
		}
		out = append(out, core.Entry{
			ID:        r.ID,
			Number:    number,
			Operation: core.Operation(r.Operation.String),
			Comment:   r.Comment,
			Date:      date,
		})
	}
	return out, nil
}
