// Package memory is an in-process EntryWriter used in development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Row is one mirrored entry.
type Row struct {
	Scope string
	Entry core.Entry
	Total decimal.Decimal
}

type Store struct {
	mu   sync.Mutex
	rows []Row
}

func New() *Store {
	return &Store{}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, scope string, e core.Entry, total decimal.Decimal) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, Row{Scope: scope, Entry: e, Total: total})
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// MirroredIDs returns the IDs of every appended entry.
func (s *Store) MirroredIDs(_ context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{}, len(s.rows))
	for _, r := range s.rows {
		ids[r.Entry.ID] = struct{}{}
	}
	return ids, nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Row(nil), s.rows...)
}
