// Package store defines the persistence port for ledger entries.
// Adapters live in the memory, sqlite, postgres and mongo subpackages.
package store

import (
	"context"
	"errors"
	"fmt"

	"saldo/internal/core"
)

// DefaultScope is used when authentication is disabled. Document stores
// also treat entries without a scope as belonging to it.
const DefaultScope = "default"

// ErrClosed is returned by adapters used after Close.
var ErrClosed = errors.New("store is closed")

// EntryStore persists ledger entries per scope. Entries are never updated
// or deleted once inserted.
type EntryStore interface {
	Insert(ctx context.Context, scope string, e core.Entry) error
	// FindAll returns the scope's entries in insertion order.
	FindAll(ctx context.Context, scope string) ([]core.Entry, error)
	// FindAllSortedByDateDesc returns the feed: most recent date first, and
	// for equal dates the later insertion first.
	FindAllSortedByDateDesc(ctx context.Context, scope string) ([]core.Entry, error)
	Ping(ctx context.Context) error
	Close() error
}

// PersistenceError wraps any failure reported by the backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *PersistenceError for op, or nil when err is nil.
// Errors that already are persistence errors are returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistence reports whether err carries a *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
