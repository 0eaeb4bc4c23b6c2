package sqlite

import (
	"context"
	"database/sql"
)

type EntryRow struct {
	Seq       int64
	ID        string
	Scope     string
	Number    string
	Operation sql.NullString
	Comment   string
	Date      string
}

const insertEntry = `
INSERT INTO entries (id, scope, number, operation, comment, date)
VALUES (?, ?, ?, ?, ?, ?)
`

type InsertEntryParams struct {
	ID        string
	Scope     string
	Number    string
	Operation sql.NullString
	Comment   string
	Date      string
}

func (q *Queries) InsertEntry(ctx context.Context, arg InsertEntryParams) error {
	_, err := q.db.ExecContext(ctx, insertEntry,
		arg.ID,
		arg.Scope,
		arg.Number,
		arg.Operation,
		arg.Comment,
		arg.Date,
	)
	return err
}

const listEntries = `
SELECT seq, id, scope, number, operation, comment, date
FROM entries
WHERE scope = ?
ORDER BY seq ASC
`

func (q *Queries) ListEntries(ctx context.Context, scope string) ([]EntryRow, error) {
	return q.list(ctx, listEntries, scope)
}

const listEntriesByDateDesc = `
SELECT seq, id, scope, number, operation, comment, date
FROM entries
WHERE scope = ?
ORDER BY date DESC, seq DESC
`

func (q *Queries) ListEntriesByDateDesc(ctx context.Context, scope string) ([]EntryRow, error) {
	return q.list(ctx, listEntriesByDateDesc, scope)
}

func (q *Queries) list(ctx context.Context, query, scope string) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, query, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []EntryRow{}
	for rows.Next() {
		var i EntryRow
		if err := rows.Scan(
			&i.Seq,
			&i.ID,
			&i.Scope,
			&i.Number,
			&i.Operation,
			&i.Comment,
			&i.Date,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
