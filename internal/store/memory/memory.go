package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"saldo/internal/core"
	"saldo/internal/store"
)

// Store keeps entries in process memory, one slice per scope.
type Store struct {
	mu     sync.RWMutex
	scopes map[string][]core.Entry
	closed bool
}

func New() *Store {
	return &Store{scopes: make(map[string][]core.Entry)}
}

// NewFromFile seeds the store from a JSON file holding either an array of
// entries (loaded into the default scope) or an object mapping scope to
// entries. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var list []core.Entry
	if err := json.Unmarshal(data, &list); err == nil {
		s.scopes[store.DefaultScope] = list
		return s, nil
	}
	var byScope map[string][]core.Entry
	if err := json.Unmarshal(data, &byScope); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for scope, entries := range byScope {
		s.scopes[scope] = entries
	}
	return s, nil
}

func (s *Store) Insert(_ context.Context, scope string, e core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.scopes[scope] = append(s.scopes[scope], e)
	return nil
}

func (s *Store) FindAll(_ context.Context, scope string) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return append(make([]core.Entry, 0, len(s.scopes[scope])), s.scopes[scope]...), nil
}

func (s *Store) FindAllSortedByDateDesc(_ context.Context, scope string) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	src := s.scopes[scope]
	out := make([]core.Entry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	// Reversed first, so the stable sort leaves later insertions ahead on ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
