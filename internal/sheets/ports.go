package sheets

import (
	"context"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryWriter mirrors one recorded entry, together with the running
	// total of its scope, into a spreadsheet row.
	EntryWriter interface {
		Append(ctx context.Context, scope string, e core.Entry, total decimal.Decimal) (rowRef string, err error)
	}

	// MirrorReader lists the entry IDs already present in the mirror.
	MirrorReader interface {
		MirroredIDs(ctx context.Context) (map[string]struct{}, error)
	}

	// Mirror is a writable spreadsheet that can report what it holds.
	Mirror interface {
		EntryWriter
		MirrorReader
	}
)

// RowLayout is the column order of a mirrored row.
var RowLayout = []string{"Date", "Operation", "Number", "Comment", "Total", "Scope", "ID"}
