// Package docstore persists documents and their chunks in SQLite. It is
// the system of record for chunk display text and document revisions; the
// vector and lexical indexes are derived from it.
package docstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/pinpoint-search/pinpoint/internal/chunk"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	revision   INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chunks (
	id        TEXT PRIMARY KEY,
	doc_id    TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	start_off INTEGER NOT NULL,
	end_off   INTEGER NOT NULL,
	text      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
`

// Store is a SQLite-backed document and chunk store.
type Store struct {
	db *sql.DB
}

// Document is a stored document's metadata.
type Document struct {
	ID        string
	Revision  int64
	CreatedAt string
	UpdatedAt string
}

// Open opens (and migrates) the store at path. ":memory:" opens an
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}
	// modernc.org/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY under concurrent ingestion.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate document store: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveDocument replaces the stored chunks for a document and bumps its
// revision. The whole replacement is one transaction.
func (s *Store) SaveDocument(ctx context.Context, docID string, chunks []chunk.Chunk) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save of %s: %w", docID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id) VALUES (?)
		ON CONFLICT(id) DO UPDATE SET
			revision = revision + 1,
			updated_at = CURRENT_TIMESTAMP`, docID)
	if err != nil {
		return 0, fmt.Errorf("upsert document %s: %w", docID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return 0, fmt.Errorf("clear chunks of %s: %w", docID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, doc_id, seq, start_off, end_off, text)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, chunk.ID(docID, c.Seq), docID, c.Seq, c.Start, c.End, c.Text); err != nil {
			return 0, fmt.Errorf("insert chunk %d of %s: %w", c.Seq, docID, err)
		}
	}

	var revision int64
	if err := tx.QueryRowContext(ctx, `SELECT revision FROM documents WHERE id = ?`, docID).Scan(&revision); err != nil {
		return 0, fmt.Errorf("read revision of %s: %w", docID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save of %s: %w", docID, err)
	}
	return revision, nil
}

// DeleteDocument removes a document and its chunks, returning the IDs of
// the removed chunks so callers can clear the indexes. Deleting an absent
// document returns an empty slice and no error.
func (s *Store) DeleteDocument(ctx context.Context, docID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete of %s: %w", docID, err)
	}
	defer tx.Rollback()

	ids, err := chunkIDsTx(ctx, tx, docID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return nil, fmt.Errorf("delete document %s: %w", docID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete of %s: %w", docID, err)
	}
	return ids, nil
}

// ChunkIDs returns the IDs of a document's current chunks in sequence
// order. Empty for an unknown document.
func (s *Store) ChunkIDs(ctx context.Context, docID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE doc_id = ? ORDER BY seq`, docID)
	if err != nil {
		return nil, fmt.Errorf("list chunks of %s: %w", docID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func chunkIDsTx(ctx context.Context, tx *sql.Tx, docID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM chunks WHERE doc_id = ? ORDER BY seq`, docID)
	if err != nil {
		return nil, fmt.Errorf("list chunks of %s: %w", docID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ChunkText returns the display text for a chunk ID.
func (s *Store) ChunkText(ctx context.Context, chunkID string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT text FROM chunks WHERE id = ?`, chunkID).Scan(&text)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("chunk %s not found", chunkID)
	}
	if err != nil {
		return "", fmt.Errorf("resolve chunk %s: %w", chunkID, err)
	}
	return text, nil
}

// GetDocument returns a document's metadata, or nil when absent.
func (s *Store) GetDocument(ctx context.Context, docID string) (*Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, revision, created_at, updated_at
		FROM documents WHERE id = ?`, docID).
		Scan(&doc.ID, &doc.Revision, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", docID, err)
	}
	return &doc, nil
}

// Stats returns the stored document and chunk counts.
func (s *Store) Stats(ctx context.Context) (docs, chunks int, err error) {
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&docs); err != nil {
		return 0, 0, fmt.Errorf("count documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("count chunks: %w", err)
	}
	return docs, chunks, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
