// Package events carries notifications about recorded entries between the
// server and background workers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// EntryRecorded is published after an entry is stored. Total is the running
// total of the scope right after the insert.
type EntryRecorded struct {
	Scope     string          `json:"scope"`
	Entry     core.Entry      `json:"entry"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewEntryRecorded(scope string, e core.Entry, total decimal.Decimal) *EntryRecorded {
	return &EntryRecorded{
		Scope:     scope,
		Entry:     e,
		Total:     total,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryRecorded) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryRecordedFromJSON decodes and sanity checks a message body.
func EntryRecordedFromJSON(data []byte) (*EntryRecorded, error) {
	var msg EntryRecorded
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Scope == "" {
		return nil, errors.New("entry recorded message without scope")
	}
	if msg.Entry.ID == "" {
		return nil, errors.New("entry recorded message without entry id")
	}
	return &msg, nil
}

// Publisher announces recorded entries.
type Publisher interface {
	PublishEntryRecorded(ctx context.Context, msg *EntryRecorded) error
	Close() error
}

// Handler processes one message. A non-nil error asks for redelivery.
type Handler func(ctx context.Context, msg *EntryRecorded) error

// Consumer delivers messages to a handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// NopPublisher drops every message. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishEntryRecorded(context.Context, *EntryRecorded) error { return nil }
func (NopPublisher) Close() error                                              { return nil }
