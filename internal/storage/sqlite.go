package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/matsen/papergraph/internal/reference"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// selectPaperFields contains the standard field list for SELECT queries.
const selectPaperFields = `id, s2_id, doi, title, link, citation_count,
	pub_year, pub_month, pub_day,
	authors_json, tags_json, references_json`

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

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

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		-- Papers, in source file order (position) so snapshots are stable
		CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			s2_id TEXT,
			doi TEXT,
			title TEXT NOT NULL,
			link TEXT,
			citation_count INTEGER NOT NULL DEFAULT 0,
			pub_year INTEGER NOT NULL,
			pub_month INTEGER,
			pub_day INTEGER,
			authors_json TEXT,
			tags_json TEXT,
			references_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_papers_s2 ON papers(s2_id) WHERE s2_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_papers_position ON papers(position);

		-- One notes document per paper
		CREATE TABLE IF NOT EXISTS notes (
			paper_id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			ops_json TEXT NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}

// RebuildFromJSONL clears the papers table and rebuilds it from a JSONL file.
// The swap happens in one transaction, so readers see either the old or the
// new snapshot.
func (d *DB) RebuildFromJSONL(jsonlPath string) (int, error) {
	papers, err := ReadAll(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("reading JSONL: %w", err)
	}
	if err := d.ReplacePapers(papers); err != nil {
		return 0, err
	}
	return len(papers), nil
}

// ReplacePapers replaces the contents of the papers table.
func (d *DB) ReplacePapers(papers []reference.Paper) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM papers"); err != nil {
		return fmt.Errorf("clearing papers table: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO papers (
			id, position, s2_id, doi, title, link, citation_count,
			pub_year, pub_month, pub_day,
			authors_json, tags_json, references_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing papers insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range papers {
		authorsJSON, err := marshalNullable(p.Authors, len(p.Authors))
		if err != nil {
			return fmt.Errorf("marshaling authors for %s: %w", p.ID, err)
		}
		tagsJSON, err := marshalNullable(p.Tags, len(p.Tags))
		if err != nil {
			return fmt.Errorf("marshaling tags for %s: %w", p.ID, err)
		}
		refsJSON, err := marshalNullable(p.References, len(p.References))
		if err != nil {
			return fmt.Errorf("marshaling references for %s: %w", p.ID, err)
		}

		_, err = stmt.Exec(
			p.ID, i, nullableStringValue(p.S2ID), nullableStringValue(p.DOI),
			p.Title, nullableStringValue(p.Link), p.CitationCount,
			p.Published.Year, p.Published.Month, p.Published.Day,
			authorsJSON, tagsJSON, refsJSON,
		)
		if err != nil {
			return fmt.Errorf("inserting paper %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing papers: %w", err)
	}
	return nil
}

// ListPapers returns every paper in source order.
func (d *DB) ListPapers(ctx context.Context) ([]reference.Paper, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectPaperFields+` FROM papers ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// GetByID retrieves a paper by its ID. Returns nil if not found.
func (d *DB) GetByID(ctx context.Context, id string) (*reference.Paper, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectPaperFields+` FROM papers WHERE id = ?`, id)
	return scanPaper(row)
}

// Count returns the total number of papers.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM papers").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPaper(s scanner) (*reference.Paper, error) {
	var p reference.Paper
	var s2id, doi, link sql.NullString
	var authorsJSON, tagsJSON, refsJSON sql.NullString
	var pubMonth, pubDay sql.NullInt64

	err := s.Scan(
		&p.ID, &s2id, &doi, &p.Title, &link, &p.CitationCount,
		&p.Published.Year, &pubMonth, &pubDay,
		&authorsJSON, &tagsJSON, &refsJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.S2ID = s2id.String
	p.DOI = doi.String
	p.Link = link.String
	p.Published.Month = int(pubMonth.Int64)
	p.Published.Day = int(pubDay.Int64)

	// Parse JSON fields
	if authorsJSON.Valid {
		if err := json.Unmarshal([]byte(authorsJSON.String), &p.Authors); err != nil {
			return nil, fmt.Errorf("parsing authors JSON for %s: %w", p.ID, err)
		}
	}
	if tagsJSON.Valid {
		if err := json.Unmarshal([]byte(tagsJSON.String), &p.Tags); err != nil {
			return nil, fmt.Errorf("parsing tags JSON for %s: %w", p.ID, err)
		}
	}
	if refsJSON.Valid {
		if err := json.Unmarshal([]byte(refsJSON.String), &p.References); err != nil {
			return nil, fmt.Errorf("parsing references JSON for %s: %w", p.ID, err)
		}
	}

	return &p, nil
}

func scanPapers(rows *sql.Rows) ([]reference.Paper, error) {
	var papers []reference.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		if p != nil {
			papers = append(papers, *p)
		}
	}
	return papers, rows.Err()
}

// marshalNullable encodes v as JSON, or NULL when it has no elements.
func marshalNullable(v interface{}, n int) (sql.NullString, error) {
	if n == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
