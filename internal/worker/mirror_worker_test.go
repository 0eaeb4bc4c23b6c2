package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/events"
	applog "saldo/internal/log"
	sheetsmem "saldo/internal/sheets/memory"
	storemem "saldo/internal/store/memory"
)

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func mk(id string, n int64, op core.Operation) core.Entry {
	return core.Entry{ID: id, Number: decimal.NewFromInt(n), Operation: op, Comment: "c" + id, Date: t0}
}

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Output: &bytes.Buffer{}, Format: "text"})
}

type failingWriter struct{ calls int }

func (f *failingWriter) Append(context.Context, string, core.Entry, decimal.Decimal) (string, error) {
	f.calls++
	return "", errors.New("quota exceeded")
}

func TestHandleEntryRecorded_AppendsOnce(t *testing.T) {
	mirror := sheetsmem.New()
	w := NewMirrorWorker(mirror, nil, decimal.Zero, testLogger())
	msg := events.NewEntryRecorded("alice", mk("e1", 30, core.OperationAdd), decimal.NewFromInt(30))

	for i := 0; i < 2; i++ {
		if err := w.HandleEntryRecorded(context.Background(), msg); err != nil {
			t.Fatalf("HandleEntryRecorded() error = %v", err)
		}
	}
	rows := mirror.Rows()
	if len(rows) != 1 {
		t.Fatalf("redelivery appended %d rows", len(rows))
	}
	if rows[0].Scope != "alice" || !rows[0].Total.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestHandleEntryRecorded_ErrorsAskForRedelivery(t *testing.T) {
	fw := &failingWriter{}
	w := NewMirrorWorker(fw, nil, decimal.Zero, testLogger())
	msg := events.NewEntryRecorded("alice", mk("e1", 1, core.OperationAdd), decimal.NewFromInt(1))

	if err := w.HandleEntryRecorded(context.Background(), msg); err == nil {
		t.Fatal("expected error")
	}
	if err := w.HandleEntryRecorded(context.Background(), msg); err == nil {
		t.Fatal("failed entry must not be remembered as mirrored")
	}
	if fw.calls != 2 {
		t.Fatalf("calls = %d", fw.calls)
	}
}

func TestHandleEntryRecorded_InvalidEntryDropped(t *testing.T) {
	mirror := sheetsmem.New()
	w := NewMirrorWorker(mirror, nil, decimal.Zero, testLogger())
	bad := mk("e1", 1, core.OperationAdd)
	bad.Comment = ""

	if err := w.HandleEntryRecorded(context.Background(), events.NewEntryRecorded("alice", bad, decimal.Zero)); err != nil {
		t.Fatalf("invalid entry should be acked, got %v", err)
	}
	if len(mirror.Rows()) != 0 {
		t.Fatal("invalid entry mirrored")
	}

	fixed := bad
	fixed.Comment = "now valid"
	if err := w.HandleEntryRecorded(context.Background(), events.NewEntryRecorded("alice", fixed, decimal.Zero)); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	if len(mirror.Rows()) != 0 {
		t.Fatal("dropped entry id was retried")
	}
}

func TestReconcile_AppendsMissingWithRunningTotals(t *testing.T) {
	ctx := context.Background()
	st := storemem.New()
	for _, e := range []core.Entry{
		mk("1", 30, core.OperationAdd),
		mk("2", 10, core.OperationSubtract),
		mk("3", 5, core.OperationLegacy),
	} {
		if err := st.Insert(ctx, "default", e); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	mirror := sheetsmem.New()
	if _, err := mirror.Append(ctx, "default", mk("1", 30, core.OperationAdd), decimal.NewFromInt(130)); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}

	w := NewMirrorWorker(mirror, st, decimal.NewFromInt(100), testLogger())
	res, err := w.Reconcile(ctx, "default")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if res.Checked != 3 || res.Appended != 2 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}

	rows := mirror.Rows()
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[1].Entry.ID != "2" || !rows[1].Total.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("row 2 = %+v", rows[1])
	}
	if rows[2].Entry.ID != "3" || !rows[2].Total.Equal(decimal.NewFromInt(115)) {
		t.Fatalf("row 3 = %+v", rows[2])
	}

	again, err := w.Reconcile(ctx, "default")
	if err != nil || again.Appended != 0 {
		t.Fatalf("second pass = %+v, %v", again, err)
	}
}

// countingMirror counts Append calls on top of the memory mirror.
type countingMirror struct {
	*sheetsmem.Store
	appends int
}

func (c *countingMirror) Append(ctx context.Context, scope string, e core.Entry, total decimal.Decimal) (string, error) {
	c.appends++
	return c.Store.Append(ctx, scope, e, total)
}

func TestReconcile_InvalidEntryDroppedOnce(t *testing.T) {
	ctx := context.Background()
	st := storemem.New()
	bad := mk("bad", 5, core.OperationAdd)
	bad.Comment = ""
	for _, e := range []core.Entry{mk("1", 30, core.OperationAdd), bad} {
		if err := st.Insert(ctx, "default", e); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	mirror := &countingMirror{Store: sheetsmem.New()}
	w := NewMirrorWorker(mirror, st, decimal.Zero, testLogger())

	res, err := w.Reconcile(ctx, "default")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if res.Checked != 2 || res.Appended != 1 || res.Dropped != 1 || res.Failed != 0 {
		t.Fatalf("first pass = %+v", res)
	}

	again, err := w.Reconcile(ctx, "default")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if again.Appended != 0 || again.Dropped != 0 {
		t.Fatalf("second pass = %+v, want nothing retried", again)
	}
	if mirror.appends != 2 {
		t.Fatalf("appends = %d, want 2", mirror.appends)
	}
	if len(mirror.Rows()) != 1 {
		t.Fatalf("rows = %d, want 1", len(mirror.Rows()))
	}
}

func TestReconcile_RequiresReaderAndStore(t *testing.T) {
	w := NewMirrorWorker(&failingWriter{}, storemem.New(), decimal.Zero, testLogger())
	if _, err := w.Reconcile(context.Background(), "default"); err == nil {
		t.Fatal("expected error without a readable mirror")
	}
}

func TestRunReconciler_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewMirrorWorker(sheetsmem.New(), storemem.New(), decimal.Zero, testLogger())

	done := make(chan error, 1)
	go func() { done <- w.RunReconciler(ctx, 10*time.Millisecond, []string{"default"}) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunReconciler() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunReconciler did not stop")
	}
}
