package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
)

// Cursor is the high-water mark of one export source: the last file that
// the matching engine accepted.
type Cursor struct {
	Source    string
	FileName  string
	URI       string
	UpdatedAt time.Time
}

type SQLiteCursors struct {
	db dbx.DBTX
}

func NewSQLiteCursors(db dbx.DBTX) *SQLiteCursors {
	return &SQLiteCursors{db: db}
}

func (c *SQLiteCursors) Get(ctx context.Context, source string) (*Cursor, error) {
	var (
		cur     = Cursor{Source: source}
		updated int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT file_name, uri, updated_at FROM download_cursors WHERE source = ?`, source).
		Scan(&cur.FileName, &cur.URI, &updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get cursor %s: %w", source, err)
	}
	cur.UpdatedAt = time.Unix(updated, 0).UTC()
	return &cur, nil
}

// Save replaces the cursor of cur.Source.
func (c *SQLiteCursors) Save(ctx context.Context, cur Cursor) error {
	if cur.Source == "" {
		return errors.New("cursor without source")
	}
	if cur.UpdatedAt.IsZero() {
		cur.UpdatedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO download_cursors (source, file_name, uri, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET file_name = excluded.file_name, uri = excluded.uri, updated_at = excluded.updated_at`,
		cur.Source, cur.FileName, cur.URI, cur.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save cursor %s: %w", cur.Source, err)
	}
	return nil
}

// All returns every cursor ordered by source.
func (c *SQLiteCursors) All(ctx context.Context) ([]Cursor, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT source, file_name, uri, updated_at FROM download_cursors ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	var out []Cursor
	for rows.Next() {
		var (
			cur     Cursor
			updated int64
		)
		if err := rows.Scan(&cur.Source, &cur.FileName, &cur.URI, &updated); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		cur.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, cur)
	}
	return out, rows.Err()
}

// Reset forgets the cursor of source, so the next ingest starts from the
// oldest file in its index.
func (c *SQLiteCursors) Reset(ctx context.Context, source string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM download_cursors WHERE source = ?`, source); err != nil {
		return fmt.Errorf("reset cursor %s: %w", source, err)
	}
	return nil
}
