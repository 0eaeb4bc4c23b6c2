package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func TestMemoryStoreAppendAndRows(t *testing.T) {
	s := New()
	e := core.Entry{
		ID:        "e1",
		Number:    decimal.RequireFromString("12.5"),
		Operation: core.OperationAdd,
		Comment:   "gift",
		Date:      time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
	}

	ref, err := s.Append(context.Background(), "alice", e, decimal.NewFromInt(112))
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	rows := s.Rows()
	if len(rows) != 1 || rows[0].Scope != "alice" || rows[0].Entry.ID != "e1" || !rows[0].Total.Equal(decimal.NewFromInt(112)) {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	rows[0].Scope = "changed"
	if s.Rows()[0].Scope != "alice" {
		t.Fatal("Rows shares memory with the store")
	}
}

func TestMemoryStoreRejectsInvalidEntry(t *testing.T) {
	s := New()
	_, err := s.Append(context.Background(), "alice", core.Entry{ID: "x", Date: time.Now()}, decimal.Zero)
	if !errors.Is(err, core.ErrEmptyComment) {
		t.Fatalf("Append() error = %v, want ErrEmptyComment", err)
	}
	if len(s.Rows()) != 0 {
		t.Fatal("invalid entry was stored")
	}
}

func TestMemoryStoreMirroredIDs(t *testing.T) {
	s := New()
	for _, id := range []string{"a", "b"} {
		e := core.Entry{ID: id, Number: decimal.NewFromInt(1), Operation: core.OperationAdd, Comment: "x", Date: time.Now()}
		if _, err := s.Append(context.Background(), "default", e, decimal.Zero); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	ids, err := s.MirroredIDs(context.Background())
	if err != nil {
		t.Fatalf("MirroredIDs: %v", err)
	}
	if _, ok := ids["a"]; !ok || len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}
}
