package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/matsen/papergraph/internal/note"
)

// RebuildNotesFromJSONL clears the notes table and rebuilds it from a JSONL file.
func (d *DB) RebuildNotesFromJSONL(jsonlPath string) (int, error) {
	notes, err := ReadAllNotes(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading notes JSONL: %w", err)
	}
	if err := d.ReplaceNotes(notes); err != nil {
		return 0, err
	}
	return len(notes), nil
}

// ReplaceNotes replaces the contents of the notes table.
func (d *DB) ReplaceNotes(notes []note.Note) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM notes"); err != nil {
		return fmt.Errorf("clearing notes table: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO notes (paper_id, position, ops_json) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing notes insert: %w", err)
	}
	defer stmt.Close()

	for i, n := range notes {
		opsJSON, err := encodeOps(n.Ops)
		if err != nil {
			return fmt.Errorf("marshaling ops for %s: %w", n.PaperID, err)
		}
		if _, err := stmt.Exec(n.PaperID, i, opsJSON); err != nil {
			return fmt.Errorf("inserting note %s: %w", n.PaperID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notes: %w", err)
	}
	return nil
}

// ListNotes returns every note in source order.
func (d *DB) ListNotes(ctx context.Context) ([]note.Note, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT paper_id, ops_json FROM notes ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []note.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// GetNote returns the note owned by paperID, or nil if there is none.
func (d *DB) GetNote(ctx context.Context, paperID string) (*note.Note, error) {
	row := d.db.QueryRowContext(ctx, `SELECT paper_id, ops_json FROM notes WHERE paper_id = ?`, paperID)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// CountNotes returns the total number of notes.
func (d *DB) CountNotes() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&count)
	return count, err
}

func scanNote(s scanner) (*note.Note, error) {
	var n note.Note
	var opsJSON string
	if err := s.Scan(&n.PaperID, &opsJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(opsJSON), &n.Ops); err != nil {
		return nil, fmt.Errorf("parsing ops JSON for %s: %w", n.PaperID, err)
	}
	return &n, nil
}

func encodeOps(ops []note.Op) (string, error) {
	if ops == nil {
		ops = []note.Op{}
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
