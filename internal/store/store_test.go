package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap("insert", nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}

	cause := errors.New("disk full")
	err := Wrap("insert", cause)
	if !IsPersistence(err) {
		t.Fatalf("Wrap() = %T, want *PersistenceError", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("Wrap() lost its cause")
	}
	if err.Error() != "store insert: disk full" {
		t.Fatalf("Error() = %q", err.Error())
	}

	again := Wrap("find", fmt.Errorf("context: %w", err))
	var pe *PersistenceError
	if !errors.As(again, &pe) || pe.Op != "insert" {
		t.Fatalf("Wrap() re-wrapped an existing persistence error: %v", again)
	}
}
