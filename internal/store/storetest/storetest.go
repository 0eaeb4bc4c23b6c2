// Package storetest holds the behaviour every store.EntryStore adapter must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/store"
)

// Factory returns an empty store. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) store.EntryStore

var base = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func mk(id, number string, op core.Operation, comment string, at time.Time) core.Entry {
	return core.Entry{
		ID:        id,
		Number:    decimal.RequireFromString(number),
		Operation: op,
		Comment:   comment,
		Date:      at,
	}
}

// Run exercises the adapter returned by newStore. Every subtest gets a fresh
// store and writes to its own scope so shared databases stay isolated.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty scope", func(t *testing.T) {
		s := newStore(t)
		scope := uniqueScope(t)

		all, err := s.FindAll(ctx, scope)
		if err != nil {
			t.Fatalf("FindAll() error = %v", err)
		}
		if all == nil || len(all) != 0 {
			t.Fatalf("FindAll() = %#v, want empty non-nil slice", all)
		}
		feed, err := s.FindAllSortedByDateDesc(ctx, scope)
		if err != nil {
			t.Fatalf("FindAllSortedByDateDesc() error = %v", err)
		}
		if feed == nil || len(feed) != 0 {
			t.Fatalf("FindAllSortedByDateDesc() = %#v, want empty non-nil slice", feed)
		}
	})

	t.Run("insertion order and feed order", func(t *testing.T) {
		s := newStore(t)
		scope := uniqueScope(t)

		entries := []core.Entry{
			mk("e1", "10", core.OperationAdd, "first", base.Add(2*time.Hour)),
			mk("e2", "3.25", core.OperationSubtract, "second", base),
			mk("e3", "7", core.OperationAdd, "third", base.Add(2*time.Hour)),
			mk("e4", "1", core.OperationSubtract, "fourth", base.Add(24*time.Hour)),
		}
		for _, e := range entries {
			if err := s.Insert(ctx, scope, e); err != nil {
				t.Fatalf("Insert(%s) error = %v", e.ID, err)
			}
		}

		all, err := s.FindAll(ctx, scope)
		if err != nil {
			t.Fatalf("FindAll() error = %v", err)
		}
		assertIDs(t, "FindAll", all, "e1", "e2", "e3", "e4")

		feed, err := s.FindAllSortedByDateDesc(ctx, scope)
		if err != nil {
			t.Fatalf("FindAllSortedByDateDesc() error = %v", err)
		}
		// e1 and e3 share a date; the later insertion comes first.
		assertIDs(t, "FindAllSortedByDateDesc", feed, "e4", "e3", "e1", "e2")
	})

	t.Run("round trips values exactly", func(t *testing.T) {
		s := newStore(t)
		scope := uniqueScope(t)

		want := []core.Entry{
			mk("exact", "123456789.123456789", core.OperationAdd, "précis ☕", base.Add(123*time.Millisecond)),
			mk("legacy", "0.1", core.OperationLegacy, "old entry", base.Add(time.Minute)),
		}
		for _, e := range want {
			if err := s.Insert(ctx, scope, e); err != nil {
				t.Fatalf("Insert(%s) error = %v", e.ID, err)
			}
		}

		got, err := s.FindAll(ctx, scope)
		if err != nil {
			t.Fatalf("FindAll() error = %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("FindAll() returned %d entries, want %d", len(got), len(want))
		}
		for i := range want {
			g, w := got[i], want[i]
			if g.ID != w.ID || g.Comment != w.Comment || g.Operation != w.Operation {
				t.Errorf("entry %d = %+v, want %+v", i, g, w)
			}
			if !g.Number.Equal(w.Number) {
				t.Errorf("entry %d number = %s, want %s", i, g.Number, w.Number)
			}
			if !g.Date.Equal(w.Date) {
				t.Errorf("entry %d date = %v, want %v", i, g.Date, w.Date)
			}
		}
		if total := core.ComputeTotal(got, decimal.Zero); !total.Equal(decimal.RequireFromString("123456789.023456789")) {
			t.Errorf("total over stored entries = %s", total)
		}
	})

	t.Run("scopes are isolated", func(t *testing.T) {
		s := newStore(t)
		a, b := uniqueScope(t)+"-a", uniqueScope(t)+"-b"

		if err := s.Insert(ctx, a, mk("only-a", "5", core.OperationAdd, "a", base)); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		got, err := s.FindAll(ctx, b)
		if err != nil {
			t.Fatalf("FindAll() error = %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("scope %s sees %d entries from scope %s", b, len(got), a)
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		if err := s.Ping(ctx); err != nil {
			t.Fatalf("Ping() error = %v", err)
		}
	})
}

func assertIDs(t *testing.T, name string, got []core.Entry, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s returned %d entries, want %d", name, len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			var ids []string
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			t.Fatalf("%s order = %v, want %v", name, ids, want)
		}
	}
}

func uniqueScope(t *testing.T) string {
	return "test-" + time.Now().UTC().Format("150405.000000000") + "-" + t.Name()
}
