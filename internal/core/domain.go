package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OperationAdd      Operation = "add"
	OperationSubtract Operation = "subtract"
	// OperationLegacy marks entries stored before operations existed.
	// They always count as subtractions.
	OperationLegacy Operation = ""
)

// MaxCommentLength bounds the comment of a single entry, in runes.
const MaxCommentLength = 200

// DateLayout is the ISO-8601 form used on the wire and in stores:
// UTC with millisecond precision, e.g. 2024-01-02T09:30:00.000Z.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

type (
	// Operation tells whether an entry increases or decreases the total.
	Operation string

	// Entry is one immutable ledger fact. Number is always a magnitude,
	// the sign comes from Operation.
	Entry struct {
		ID        string
		Number    decimal.Decimal
		Operation Operation
		Comment   string
		Date      time.Time
	}
)

// ParseOperation accepts "add" or "subtract", case-insensitively.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(OperationAdd):
		return OperationAdd, nil
	case string(OperationSubtract):
		return OperationSubtract, nil
	default:
		return "", ErrInvalidOperation
	}
}

// IsLegacy reports whether the entry was stored without an operation.
func (o Operation) IsLegacy() bool {
	return o == OperationLegacy
}

// Effective resolves the legacy variant to the operation it behaves as.
func (o Operation) Effective() Operation {
	if o == OperationAdd {
		return OperationAdd
	}
	return OperationSubtract
}

func (o Operation) String() string {
	if o.IsLegacy() {
		return "legacy"
	}
	return string(o)
}

// Valid reports whether o is add, subtract or the legacy variant.
func (o Operation) Valid() bool {
	switch o {
	case OperationAdd, OperationSubtract, OperationLegacy:
		return true
	}
	return false
}

// Signed returns the contribution of the entry to a running total.
func (e Entry) Signed() decimal.Decimal {
	if e.Operation == OperationAdd {
		return e.Number
	}
	return e.Number.Neg()
}

// Validate checks the invariants an entry must satisfy before it is stored.
func (e Entry) Validate() error {
	if e.Number.IsNegative() {
		return &ValidationError{Field: "number", Err: ErrInvalidNumber}
	}
	if strings.TrimSpace(e.Comment) == "" {
		return &ValidationError{Field: "comment", Err: ErrEmptyComment}
	}
	if len([]rune(e.Comment)) > MaxCommentLength {
		return &ValidationError{Field: "comment", Err: ErrCommentTooLong}
	}
	if !e.Operation.Valid() {
		return &ValidationError{Field: "operation", Err: ErrInvalidOperation}
	}
	if e.Date.IsZero() {
		return &ValidationError{Field: "date", Err: ErrMissingDate}
	}
	return nil
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate reads an ISO-8601 timestamp with or without fractional seconds.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

type entryJSON struct {
	ID        string      `json:"id"`
	Number    json.Number `json:"number"`
	Operation Operation   `json:"operation,omitempty"`
	Comment   string      `json:"comment"`
	Date      string      `json:"date"`
}

// MarshalJSON emits number as a JSON number carrying the exact decimal text.
// Legacy entries omit the operation field, as they were stored.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		ID:        e.ID,
		Number:    json.Number(e.Number.String()),
		Operation: e.Operation,
		Comment:   e.Comment,
		Date:      FormatDate(e.Date),
	})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	number, err := decimal.NewFromString(raw.Number.String())
	if err != nil {
		return fmt.Errorf("entry number: %w", err)
	}
	date, err := ParseDate(raw.Date)
	if err != nil {
		return err
	}
	*e = Entry{
		ID:        raw.ID,
		Number:    number,
		Operation: raw.Operation,
		Comment:   raw.Comment,
		Date:      date,
	}
	return nil
}
