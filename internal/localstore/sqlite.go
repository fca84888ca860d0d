// Package localstore is a SQLite-backed stand-in for the hosted spreadsheet.
//
// Ranges are imported as whole blocks of rows keyed by their A1 range string,
// and cell notes are kept in their own table.
package localstore

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matsen/rollcall/internal/standing"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS cells (
			range_spec TEXT NOT NULL,
			row_idx INTEGER NOT NULL,
			col_idx INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (range_spec, row_idx, col_idx)
		);

		CREATE TABLE IF NOT EXISTS notes (
			sheet_id INTEGER NOT NULL,
			row_idx INTEGER NOT NULL,
			col_idx INTEGER NOT NULL,
			note TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (sheet_id, row_idx, col_idx)
		);
	`

	_, err := db.Exec(schema)
	return err
}

// ImportRange replaces the stored rows of rangeSpec.
func (d *DB) ImportRange(ctx context.Context, rangeSpec string, rows [][]string) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cells WHERE range_spec = ?", rangeSpec); err != nil {
		return 0, fmt.Errorf("clearing range %s: %w", rangeSpec, err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO cells (range_spec, row_idx, col_idx, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for r, row := range rows {
		for c, v := range row {
			if _, err := stmt.ExecContext(ctx, rangeSpec, r, c, v); err != nil {
				return 0, fmt.Errorf("inserting cell (%d,%d): %w", r, c, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return len(rows), nil
}

// ImportCSV reads CSV rows from r and stores them under rangeSpec.
// Blank lines between records are kept as empty rows so every later row keeps
// its position; trailing blank lines are dropped, as the hosted sheet does.
func (d *DB) ImportCSV(ctx context.Context, rangeSpec string, r io.Reader) (int, error) {
	rows, err := readCSV(r)
	if err != nil {
		return 0, fmt.Errorf("reading CSV: %w", err)
	}
	return d.ImportRange(ctx, rangeSpec, rows)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var rows [][]string
	next := 1 // line the next record starts on when no blank lines intervene
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		start, _ := cr.FieldPos(0)
		for ; next < start; next++ {
			rows = append(rows, []string{})
		}
		rows = append(rows, rec)

		last := len(rec) - 1
		end, _ := cr.FieldPos(last)
		next = end + strings.Count(rec[last], "\n") + 1
	}
}

// ReadRange returns the rows stored under rangeSpec. An unknown range yields
// no rows. Cells missing inside a row come back as empty strings.
func (d *DB) ReadRange(ctx context.Context, rangeSpec string) ([][]string, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT row_idx, col_idx, value FROM cells WHERE range_spec = ? ORDER BY row_idx, col_idx",
		rangeSpec)
	if err != nil {
		return nil, fmt.Errorf("querying range %s: %w", rangeSpec, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var (
			r, c  int
			value string
		)
		if err := rows.Scan(&r, &c, &value); err != nil {
			return nil, fmt.Errorf("scanning cell: %w", err)
		}
		for len(out) <= r {
			out = append(out, []string{})
		}
		for len(out[r]) < c {
			out[r] = append(out[r], "")
		}
		out[r] = append(out[r], value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading range %s: %w", rangeSpec, err)
	}

	return out, nil
}

// BatchWrite applies all note mutations in one transaction. An empty note
// clears the cell's note.
func (d *DB) BatchWrite(ctx context.Context, muts []standing.CellMutation) error {
	if len(muts) == 0 {
		return standing.ErrNoMutations
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, m := range muts {
		if m.Note == "" {
			_, err = tx.ExecContext(ctx,
				"DELETE FROM notes WHERE sheet_id = ? AND row_idx = ? AND col_idx = ?",
				m.SheetID, m.Row, m.Column)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO notes (sheet_id, row_idx, col_idx, note, updated_at) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (sheet_id, row_idx, col_idx) DO UPDATE SET note = excluded.note, updated_at = excluded.updated_at`,
				m.SheetID, m.Row, m.Column, m.Note, now)
		}
		if err != nil {
			return fmt.Errorf("writing note at (%d,%d): %w", m.Row, m.Column, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notes: %w", err)
	}
	return nil
}

// Notes returns every stored note of a sheet in row order.
func (d *DB) Notes(ctx context.Context, sheetID int64) ([]standing.CellMutation, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT row_idx, col_idx, note FROM notes WHERE sheet_id = ? ORDER BY row_idx, col_idx",
		sheetID)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var out []standing.CellMutation
	for rows.Next() {
		m := standing.CellMutation{SheetID: sheetID}
		if err := rows.Scan(&m.Row, &m.Column, &m.Note); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
