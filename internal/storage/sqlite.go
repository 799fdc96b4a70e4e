package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/matsen/paperdex/internal/paper"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite metadata database.
type DB struct {
	db *sql.DB
}

// selectPaperFields contains the standard field list for SELECT queries.
const selectPaperFields = `id, title, summary, authors, link,
	datasets, metrics, methods, applications, limitations, areasOfImprovement,
	indexed`

// OpenDB opens or creates a SQLite metadata database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", paper.ErrStorage, err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	d := &DB{db: db}
	if err := d.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// EnsureSchema creates the metadata table if it doesn't exist. Safe to call repeatedly.
func (d *DB) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			authors TEXT NOT NULL DEFAULT '[]',
			link TEXT NOT NULL DEFAULT '',
			datasets TEXT NOT NULL DEFAULT '[]',
			metrics TEXT NOT NULL DEFAULT '[]',
			methods TEXT NOT NULL DEFAULT '[]',
			applications TEXT NOT NULL DEFAULT '[]',
			limitations TEXT NOT NULL DEFAULT '[]',
			areasOfImprovement TEXT NOT NULL DEFAULT '[]',
			-- 0 until the paper's chunks are fully indexed
			indexed INTEGER NOT NULL DEFAULT 0
		);
	`
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: creating schema: %w", paper.ErrStorage, err)
	}
	return nil
}

// CreatePaper stores the metadata under a freshly generated identifier and returns it.
// The record starts out unindexed.
func (d *DB) CreatePaper(ctx context.Context, meta paper.Metadata) (string, error) {
	id := uuid.New().String()

	cols, err := encodeMetadata(meta)
	if err != nil {
		return "", fmt.Errorf("%w: %w", paper.ErrStorage, err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO metadata (
			id, title, summary, authors, link,
			datasets, metrics, methods, applications, limitations, areasOfImprovement,
			indexed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		append([]any{id}, cols...)...,
	)
	if err != nil {
		return "", fmt.Errorf("%w: inserting paper: %w", paper.ErrStorage, err)
	}

	return id, nil
}

// GetByID retrieves a paper by its ID. Returns nil, nil if the paper does not exist.
func (d *DB) GetByID(ctx context.Context, id string) (*paper.Paper, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectPaperFields+` FROM metadata WHERE id = ?`, id)
	p, err := scanPaper(row)
	if err != nil {
		return nil, fmt.Errorf("%w: getting paper %s: %w", paper.ErrStorage, id, err)
	}
	return p, nil
}

// GetByIDs returns the papers for the requested identifiers that exist.
// Unknown identifiers are silently omitted. The result order is unspecified.
func (d *DB) GetByIDs(ctx context.Context, ids []string) ([]paper.Paper, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return []paper.Paper{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(unique)), ",")
	args := make([]any, len(unique))
	for i, id := range unique {
		args[i] = id
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+selectPaperFields+` FROM metadata WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: getting papers: %w", paper.ErrStorage, err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// GetAll returns every stored paper in insertion order.
func (d *DB) GetAll(ctx context.Context) ([]paper.Paper, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectPaperFields+` FROM metadata ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing papers: %w", paper.ErrStorage, err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// Update replaces every field of an existing paper except its ID and index status.
// Returns paper.ErrNotFound if no paper has the given ID.
func (d *DB) Update(ctx context.Context, id string, meta paper.Metadata) error {
	cols, err := encodeMetadata(meta)
	if err != nil {
		return fmt.Errorf("%w: %w", paper.ErrStorage, err)
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE metadata SET
			title = ?, summary = ?, authors = ?, link = ?,
			datasets = ?, metrics = ?, methods = ?,
			applications = ?, limitations = ?, areasOfImprovement = ?
		WHERE id = ?`,
		append(cols, id)...,
	)
	if err != nil {
		return fmt.Errorf("%w: updating paper %s: %w", paper.ErrStorage, id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: updating paper %s: %w", paper.ErrStorage, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", paper.ErrNotFound, id)
	}
	return nil
}

// SetIndexed records whether the paper's chunks are fully indexed.
func (d *DB) SetIndexed(ctx context.Context, id string, indexed bool) error {
	res, err := d.db.ExecContext(ctx, `UPDATE metadata SET indexed = ? WHERE id = ?`, boolToInt(indexed), id)
	if err != nil {
		return fmt.Errorf("%w: marking paper %s: %w", paper.ErrStorage, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: marking paper %s: %w", paper.ErrStorage, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", paper.ErrNotFound, id)
	}
	return nil
}

// Delete removes a paper. Deleting an unknown ID is a no-op.
func (d *DB) Delete(ctx context.Context, id string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM metadata WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: deleting paper %s: %w", paper.ErrStorage, id, err)
	}
	return nil
}

// DeleteAll removes every paper.
func (d *DB) DeleteAll(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return fmt.Errorf("%w: clearing metadata: %w", paper.ErrStorage, err)
	}
	return nil
}

// ListIDs returns the IDs of all stored papers.
func (d *DB) ListIDs(ctx context.Context) ([]string, error) {
	return d.queryIDs(ctx, `SELECT id FROM metadata ORDER BY rowid`)
}

// ListUnindexed returns the IDs of papers whose indexing never completed.
func (d *DB) ListUnindexed(ctx context.Context) ([]string, error) {
	return d.queryIDs(ctx, `SELECT id FROM metadata WHERE indexed = 0 ORDER BY rowid`)
}

// Count returns the total number of papers.
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM metadata").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting papers: %w", paper.ErrStorage, err)
	}
	return count, nil
}

func (d *DB) queryIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: listing ids: %w", paper.ErrStorage, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: listing ids: %w", paper.ErrStorage, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing ids: %w", paper.ErrStorage, err)
	}
	return ids, nil
}

// encodeMetadata returns the column values of meta in selectPaperFields order,
// without id and indexed.
func encodeMetadata(meta paper.Metadata) ([]any, error) {
	meta = meta.Normalize()

	lists := []struct {
		name  string
		value []string
	}{
		{"authors", meta.Authors},
		{"datasets", meta.Datasets},
		{"metrics", meta.Metrics},
		{"methods", meta.Methods},
		{"applications", meta.Applications},
		{"limitations", meta.Limitations},
		{"areasOfImprovement", meta.AreasOfImprovement},
	}
	encoded := make(map[string]string, len(lists))
	for _, l := range lists {
		data, err := json.Marshal(l.value)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", l.name, err)
		}
		encoded[l.name] = string(data)
	}

	return []any{
		meta.Title, meta.Summary, encoded["authors"], meta.Link,
		encoded["datasets"], encoded["metrics"], encoded["methods"],
		encoded["applications"], encoded["limitations"], encoded["areasOfImprovement"],
	}, nil
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(s scanner) (*paper.Paper, error) {
	var p paper.Paper
	var title, summary, link sql.NullString
	var authors, datasets, metrics, methods, applications, limitations, improvements sql.NullString
	var indexed int

	err := s.Scan(
		&p.ID, &title, &summary, &authors, &link,
		&datasets, &metrics, &methods, &applications, &limitations, &improvements,
		&indexed,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.Title = title.String
	p.Summary = summary.String
	p.Link = link.String
	p.Indexed = indexed != 0

	fields := []struct {
		name string
		raw  sql.NullString
		dest *[]string
	}{
		{"authors", authors, &p.Authors},
		{"datasets", datasets, &p.Datasets},
		{"metrics", metrics, &p.Metrics},
		{"methods", methods, &p.Methods},
		{"applications", applications, &p.Applications},
		{"limitations", limitations, &p.Limitations},
		{"areasOfImprovement", improvements, &p.AreasOfImprovement},
	}
	for _, f := range fields {
		if !f.raw.Valid || f.raw.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.raw.String), f.dest); err != nil {
			return nil, fmt.Errorf("parsing %s JSON for %s: %w", f.name, p.ID, err)
		}
	}

	p.Metadata = p.Metadata.Normalize()
	return &p, nil
}

func scanPapers(rows *sql.Rows) ([]paper.Paper, error) {
	papers := []paper.Paper{}
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", paper.ErrStorage, err)
		}
		if p != nil {
			papers = append(papers, *p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", paper.ErrStorage, err)
	}
	return papers, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
