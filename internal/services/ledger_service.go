package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/events"
	applog "saldo/internal/log"
	"saldo/internal/metrics"
	"saldo/internal/store"
)

const publishTimeout = 5 * time.Second

// Options tunes a LedgerService. Zero values fall back to sensible defaults.
type Options struct {
	InitialTotal          decimal.Decimal
	Location              *time.Location
	AllowMissingOperation bool
	HistoryPageDays       int

	Publisher     events.Publisher
	PublisherName string
	Keywords      *cache.LRUCache[[]string]
	Metrics       *metrics.Metrics

	Now   func() time.Time
	NewID func() (string, error)
}

// LedgerService runs submissions and queries against one entry store.
type LedgerService struct {
	store     store.EntryStore
	publisher events.Publisher
	pubName   string
	keywords  *cache.LRUCache[[]string]
	metrics   *metrics.Metrics

	initial      decimal.Decimal
	loc          *time.Location
	allowMissing bool
	pageDays     int

	now   func() time.Time
	newID func() (string, error)
}

// Ledger is the feed of a scope with its running total.
type Ledger struct {
	Entries []core.Entry
	Total   decimal.Decimal
}

// SubmitResult is the stored entry and the total read back after storing it.
type SubmitResult struct {
	Entry core.Entry
	Total decimal.Decimal
}

func NewLedgerService(st store.EntryStore, opts Options) *LedgerService {
	s := &LedgerService{
		store:        st,
		publisher:    opts.Publisher,
		pubName:      opts.PublisherName,
		keywords:     opts.Keywords,
		metrics:      opts.Metrics,
		initial:      opts.InitialTotal,
		loc:          opts.Location,
		allowMissing: opts.AllowMissingOperation,
		pageDays:     opts.HistoryPageDays,
		now:          opts.Now,
		newID:        opts.NewID,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.pubName == "" {
		s.pubName = "none"
	}
	if s.keywords == nil {
		s.keywords = cache.NewLRUCache[[]string](256, 10*time.Minute)
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.pageDays < 1 {
		s.pageDays = 7
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = newEntryID
	}
	return s
}

func newEntryID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// InitialTotal is the balance of a scope with no entries.
func (s *LedgerService) InitialTotal() decimal.Decimal {
	return s.initial
}

// Location is the zone used to group entries by calendar day.
func (s *LedgerService) Location() *time.Location {
	return s.loc
}

// Submit validates req, stores it in scope and returns the new total. The
// total is recomputed from the store, never from cached state.
func (s *LedgerService) Submit(ctx context.Context, scope string, req core.SubmitRequest) (SubmitResult, error) {
	sub, err := core.ParseSubmission(req, s.allowMissing)
	if err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			s.metrics.SubmissionRejection(ve.Field)
		}
		return SubmitResult{}, err
	}

	id, err := s.newID()
	if err != nil {
		return SubmitResult{}, fmt.Errorf("generate entry id: %w", err)
	}
	entry := core.Entry{
		ID:        id,
		Number:    sub.Number,
		Operation: sub.Operation,
		Comment:   sub.Comment,
		// Stores keep millisecond precision.
		Date: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := entry.Validate(); err != nil {
		return SubmitResult{}, err
	}

	if err := s.store.Insert(ctx, scope, entry); err != nil {
		s.metrics.StoreError("insert")
		applog.NewStructuredLogger(applog.FromContext(ctx)).
			LogError(ctx, "Failed to store entry", err, applog.ComponentStorage, applog.OpSubmit,
				applog.NewFields().WithEntry(scope, entry.ID, entry.Operation.String(), entry.Number.String()))
		return SubmitResult{}, store.Wrap("insert", err)
	}
	s.keywords.Delete(scope)
	s.metrics.EntrySubmitted(string(entry.Operation))

	all, err := s.store.FindAll(ctx, scope)
	if err != nil {
		s.metrics.StoreError("find_all")
		return SubmitResult{}, store.Wrap("find_all", err)
	}
	total := core.ComputeTotal(all, s.initial)

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogEntryRecorded(ctx, scope, entry.ID, entry.Operation.String(), entry.Number.String(), total.String())

	s.publish(ctx, events.NewEntryRecorded(scope, entry, total))

	return SubmitResult{Entry: entry, Total: total}, nil
}

// publish is best effort: the entry is already stored, so failures are only logged.
func (s *LedgerService) publish(ctx context.Context, msg *events.EntryRecorded) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.PublishEntryRecorded(ctx, msg)
	s.metrics.EventPublished(s.pubName, err)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish entry recorded event",
			applog.FieldComponent, applog.ComponentEvents,
			applog.FieldBackend, s.pubName,
			applog.FieldEntryID, msg.Entry.ID,
			applog.FieldError, err)
	}
}

// Query returns the feed (most recent first) and the total of scope.
func (s *LedgerService) Query(ctx context.Context, scope string) (Ledger, error) {
	entries, err := s.store.FindAllSortedByDateDesc(ctx, scope)
	if err != nil {
		s.metrics.StoreError("find_sorted")
		return Ledger{}, store.Wrap("find_sorted", err)
	}
	return Ledger{Entries: entries, Total: core.ComputeTotal(entries, s.initial)}, nil
}

func (s *LedgerService) Total(ctx context.Context, scope string) (decimal.Decimal, error) {
	entries, err := s.store.FindAll(ctx, scope)
	if err != nil {
		s.metrics.StoreError("find_all")
		return decimal.Zero, store.Wrap("find_all", err)
	}
	return core.ComputeTotal(entries, s.initial), nil
}

// History groups the feed into calendar days and reveals the first days of
// them. days below 1 uses the configured page size.
func (s *LedgerService) History(ctx context.Context, scope string, days int) (core.History, error) {
	if days < 1 {
		days = s.pageDays
	}
	ledger, err := s.Query(ctx, scope)
	if err != nil {
		return core.History{}, err
	}
	return core.BuildHistory(ledger.Entries, s.initial, s.loc, days), nil
}

// PageDays is the default number of days revealed per history page.
func (s *LedgerService) PageDays() int {
	return s.pageDays
}

// Suggest returns past comments of scope starting with prefix.
func (s *LedgerService) Suggest(ctx context.Context, scope, prefix string) ([]string, error) {
	if strings.TrimSpace(prefix) == "" {
		return []string{}, nil
	}
	keywords, err := s.keywords.GetOrLoad(scope, func() ([]string, error) {
		entries, err := s.store.FindAllSortedByDateDesc(ctx, scope)
		if err != nil {
			s.metrics.StoreError("find_sorted")
			return nil, store.Wrap("find_sorted", err)
		}
		return core.Keywords(entries), nil
	})
	if err != nil {
		return nil, err
	}
	return core.FilterAutocomplete(keywords, prefix), nil
}

func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close closes the store and the publisher.
func (s *LedgerService) Close() error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
