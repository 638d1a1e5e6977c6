// Package store persists annotated documents in SQLite
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/annofrag/internal/index"
	"github.com/ppiankov/annofrag/internal/model"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for unknown document ids
var ErrNotFound = errors.New("document not found")

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	container_id TEXT NOT NULL,
	text         TEXT NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS ranges (
	doc_id       TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	id           TEXT NOT NULL,
	tag          TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL,
	policy       TEXT NOT NULL,
	anchor       INTEGER NOT NULL,
	inline       INTEGER NOT NULL,
	attrs        TEXT,
	PRIMARY KEY (doc_id, seq)
);
`

// Store is a SQLite-backed document store
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// A single connection keeps SQLite writers from tripping over each other.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// PutDocument inserts or replaces a document with its ranges. Input order
// is stored so that tie-breaks survive a round trip. An empty containerID
// files the document under its own id.
func (s *Store) PutDocument(ctx context.Context, doc model.Document, containerID string) (err error) {
	if doc.ID == "" {
		return fmt.Errorf("put document: empty id")
	}
	if containerID == "" {
		containerID = doc.ID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM ranges WHERE doc_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("clear ranges: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, container_id, text, updated_at) VALUES (?, ?, ?, ?)`,
		doc.ID, containerID, doc.Text, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ranges
		(doc_id, seq, id, tag, start_offset, end_offset, policy, anchor, inline, attrs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ranges: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range doc.Ranges {
		var attrs sql.NullString
		if len(r.Attrs) > 0 {
			data, mErr := json.Marshal(r.Attrs)
			if mErr != nil {
				err = fmt.Errorf("marshal attrs of range %d: %w", i, mErr)
				return err
			}
			attrs = sql.NullString{String: string(data), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, doc.ID, i, r.ID, r.Tag, r.Start, r.End,
			string(r.Policy), r.Anchor, r.Inline, attrs); err != nil {
			return fmt.Errorf("insert range %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Document loads one document with its ranges in input order
func (s *Store) Document(ctx context.Context, id string) (model.Document, error) {
	doc := model.Document{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT text FROM documents WHERE id = ?`, id).Scan(&doc.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("query document: %w", err)
	}

	ranges, err := s.ranges(ctx, id)
	if err != nil {
		return model.Document{}, err
	}
	doc.Ranges = ranges
	return doc, nil
}

func (s *Store) ranges(ctx context.Context, docID string) ([]model.Range, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, tag, start_offset, end_offset, policy, anchor, inline, attrs
		FROM ranges WHERE doc_id = ? ORDER BY seq`, docID)
	if err != nil {
		return nil, fmt.Errorf("query ranges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Range
	for rows.Next() {
		var (
			r      model.Range
			policy string
			attrs  sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Tag, &r.Start, &r.End, &policy, &r.Anchor, &r.Inline, &attrs); err != nil {
			return nil, fmt.Errorf("scan range: %w", err)
		}
		r.Policy = model.Policy(policy)
		if attrs.Valid {
			if err := json.Unmarshal([]byte(attrs.String), &r.Attrs); err != nil {
				return nil, fmt.Errorf("decode attrs: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DocumentIDs lists stored document ids in sorted order
func (s *Store) DocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDocument removes a document and its ranges
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ranges WHERE doc_id = ?`, id); err != nil {
		return fmt.Errorf("delete ranges: %w", err)
	}
	return nil
}

// LoadIndex adds every identified range of every document to idx, filed
// under the document's container with the document as owning node.
// Anonymous ranges cannot be addressed in an index and are skipped.
// It returns the number of annotations added.
func (s *Store) LoadIndex(ctx context.Context, idx *index.Index) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, container_id FROM documents ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("query documents: %w", err)
	}
	type owner struct{ id, container string }
	var owners []owner
	for rows.Next() {
		var o owner
		if err := rows.Scan(&o.id, &o.container); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan document: %w", err)
		}
		owners = append(owners, o)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate documents: %w", err)
	}

	added := 0
	for _, o := range owners {
		ranges, err := s.ranges(ctx, o.id)
		if err != nil {
			return added, err
		}
		for _, r := range ranges {
			if r.ID == "" {
				continue
			}
			a := model.Annotation{Range: r, ContainerID: o.container, NodeID: o.id}
			if err := idx.Create(a); err != nil {
				return added, fmt.Errorf("index document %q: %w", o.id, err)
			}
			added++
		}
	}
	return added, nil
}
