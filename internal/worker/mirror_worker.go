// Package worker mirrors recorded ledger entries into a spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/events"
	applog "saldo/internal/log"
	"saldo/internal/sheets"
	"saldo/internal/store"
)

// MirrorWorker appends one spreadsheet row per EntryRecorded event.
type MirrorWorker struct {
	mirror  sheets.EntryWriter
	reader  sheets.MirrorReader
	entries store.EntryStore
	initial decimal.Decimal
	// seen remembers entries already mirrored so redeliveries do not
	// duplicate rows.
	seen   *cache.LRUCache[struct{}]
	logger *applog.Logger
}

// NewMirrorWorker builds a worker. entries and the MirrorReader side of
// mirror are only needed by Reconcile and may be nil otherwise.
func NewMirrorWorker(mirror sheets.EntryWriter, entries store.EntryStore, initial decimal.Decimal, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	w := &MirrorWorker{
		mirror:  mirror,
		entries: entries,
		initial: initial,
		seen:    cache.NewLRUCache[struct{}](10000, 24*time.Hour),
		logger:  logger.WithComponent(applog.ComponentWorker),
	}
	if r, ok := mirror.(sheets.MirrorReader); ok {
		w.reader = r
	}
	return w
}

// HandleEntryRecorded processes a single message from the event bus. A
// returned error asks the consumer to redeliver it.
func (w *MirrorWorker) HandleEntryRecorded(ctx context.Context, msg *events.EntryRecorded) error {
	_, err := w.mirrorEntry(ctx, msg)
	return err
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeAppended
	outcomeDropped
)

func (w *MirrorWorker) mirrorEntry(ctx context.Context, msg *events.EntryRecorded) (outcome, error) {
	if _, ok := w.seen.Get(msg.Entry.ID); ok {
		w.logger.DebugContext(ctx, "Entry already handled",
			applog.FieldEntryID, msg.Entry.ID,
			applog.FieldScope, msg.Scope)
		return outcomeSkipped, nil
	}

	ref, err := w.mirror.Append(ctx, msg.Scope, msg.Entry, msg.Total)
	if err != nil {
		if core.IsValidation(err) {
			// Redelivering an invalid entry cannot succeed. Remember it so
			// reconcile passes do not retry it.
			w.seen.Set(msg.Entry.ID, struct{}{})
			w.logger.ErrorContext(ctx, "Dropping invalid entry",
				applog.FieldEntryID, msg.Entry.ID,
				applog.FieldScope, msg.Scope,
				applog.FieldError, err)
			return outcomeDropped, nil
		}
		return outcomeSkipped, fmt.Errorf("append to mirror: %w", err)
	}
	w.seen.Set(msg.Entry.ID, struct{}{})

	w.logger.InfoContext(ctx, "Entry mirrored",
		applog.FieldEntryID, msg.Entry.ID,
		applog.FieldScope, msg.Scope,
		applog.FieldSheetsRef, ref,
		applog.FieldTotal, msg.Total.String())
	return outcomeAppended, nil
}

// ReconcileResult summarizes one Reconcile pass.
type ReconcileResult struct {
	Checked  int
	Appended int
	// Dropped counts invalid entries that were skipped, not mirrored.
	Dropped int
	Failed  int
}

// Reconcile appends the entries of scope that are missing from the mirror.
// It is the backup path for events lost while no worker was consuming.
// Rows carry the running total as of each entry, in insertion order.
func (w *MirrorWorker) Reconcile(ctx context.Context, scope string) (ReconcileResult, error) {
	var res ReconcileResult
	if w.entries == nil || w.reader == nil {
		return res, errors.New("reconcile needs an entry store and a readable mirror")
	}

	mirrored, err := w.reader.MirroredIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("read mirrored ids: %w", err)
	}
	all, err := w.entries.FindAll(ctx, scope)
	if err != nil {
		return res, store.Wrap("find_all", err)
	}

	running := w.initial
	for _, e := range all {
		running = running.Add(e.Signed())
		res.Checked++
		if _, ok := mirrored[e.ID]; ok {
			w.seen.Set(e.ID, struct{}{})
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out, err := w.mirrorEntry(ctx, &events.EntryRecorded{Scope: scope, Entry: e, Total: running})
		if err != nil {
			res.Failed++
			w.logger.ErrorContext(ctx, "Failed to mirror entry during reconcile",
				applog.FieldEntryID, e.ID,
				applog.FieldScope, scope,
				applog.FieldError, err)
			continue
		}
		switch out {
		case outcomeAppended:
			res.Appended++
		case outcomeDropped:
			res.Dropped++
		}
	}

	if res.Appended > 0 || res.Dropped > 0 || res.Failed > 0 {
		w.logger.InfoContext(ctx, "Reconcile completed",
			applog.FieldScope, scope,
			"checked", res.Checked,
			"appended", res.Appended,
			"dropped", res.Dropped,
			"failed", res.Failed)
	}
	return res, nil
}

// RunReconciler calls Reconcile for every scope on each tick until ctx is done.
func (w *MirrorWorker) RunReconciler(ctx context.Context, interval time.Duration, scopes []string) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, scope := range scopes {
				if _, err := w.Reconcile(ctx, scope); err != nil && ctx.Err() == nil {
					w.logger.ErrorContext(ctx, "Periodic reconcile failed",
						applog.FieldScope, scope,
						applog.FieldError, err)
				}
			}
		}
	}
}
