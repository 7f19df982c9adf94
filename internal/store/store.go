// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package store implements a small JSON document store on SQLite. Each
// collection is a lazily-created two-column table (key, doc); documents
// are stored as JSON text and keyed by the vulnerability identifier or,
// for scan findings, the deterministic finding id.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bonial-oss/vulnfacts/internal/document"
)

// Store is an explicitly constructed handle, opened at run start and
// closed at run end. It is never held in package-level state.
type Store struct {
	db *sql.DB
}

// KeyedDoc pairs a document with its join key for bulk writes.
type KeyedDoc struct {
	Key string
	Doc document.Document
}

// Open opens (creating if necessary) the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Ping verifies the store is reachable. Callers must ping before any
// destructive operation so a connectivity fault aborts early.
func (s *Store) Ping() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// quoteIdent quotes a collection name for use as a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ensureCollection creates the backing table if it does not exist.
func (s *Store) ensureCollection(collection string) error {
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s ("key" TEXT NOT NULL, doc TEXT NOT NULL)`,
		quoteIdent(collection))
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("creating collection %s: %w", collection, err)
	}
	return nil
}

// EnsureUniqueIndex creates a unique index on the collection's key
// column. The constraint is the safeguard against duplicate identifiers
// from concurrent batch writers.
func (s *Store) EnsureUniqueIndex(collection string) error {
	if err := s.ensureCollection(collection); err != nil {
		return err
	}
	stmt := fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ("key")`,
		quoteIdent("idx_"+collection+"_key"), quoteIdent(collection))
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("creating unique index on %s: %w", collection, err)
	}
	return nil
}

// Truncate removes all documents from the collection.
func (s *Store) Truncate(collection string) error {
	if err := s.ensureCollection(collection); err != nil {
		return err
	}
	if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s`, quoteIdent(collection))); err != nil {
		return fmt.Errorf("truncating %s: %w", collection, err)
	}
	return nil
}

// BulkInsert appends docs to the collection in a single transaction
// using a prepared statement.
func (s *Store) BulkInsert(collection string, docs []KeyedDoc) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.ensureCollection(collection); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	stmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO %s ("key", doc) VALUES (?, ?)`, quoteIdent(collection)))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert for %s: %w", collection, err)
	}
	defer stmt.Close()

	for _, kd := range docs {
		raw, err := json.Marshal(kd.Doc)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshaling document %q: %w", kd.Key, err)
		}
		if _, err := stmt.Exec(kd.Key, string(raw)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting %q into %s: %w", kd.Key, collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert into %s: %w", collection, err)
	}
	return nil
}

// UpsertByKey inserts or replaces the document stored under key, making
// re-ingestion of the same data idempotent.
func (s *Store) UpsertByKey(collection, key string, doc document.Document) error {
	if err := s.EnsureUniqueIndex(collection); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling document %q: %w", key, err)
	}
	stmt := fmt.Sprintf(
		`INSERT INTO %s ("key", doc) VALUES (?, ?)
		 ON CONFLICT("key") DO UPDATE SET doc = excluded.doc`,
		quoteIdent(collection))
	if _, err := s.db.Exec(stmt, key, string(raw)); err != nil {
		return fmt.Errorf("upserting %q into %s: %w", key, collection, err)
	}
	return nil
}

// FindByKey returns the document stored under key. The second return
// value reports whether a document was found.
func (s *Store) FindByKey(collection, key string) (document.Document, bool, error) {
	if err := s.ensureCollection(collection); err != nil {
		return nil, false, err
	}
	row := s.db.QueryRow(fmt.Sprintf(
		`SELECT doc FROM %s WHERE "key" = ? LIMIT 1`, quoteIdent(collection)), key)

	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return document.Document{}, false, nil
		}
		return nil, false, fmt.Errorf("querying %s: %w", collection, err)
	}
	doc, err := decodeDoc(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decoding document %q in %s: %w", key, collection, err)
	}
	return doc, true, nil
}

// FindByKeys returns the documents stored under the given keys, mapped
// by key. Missing keys are simply absent from the result.
func (s *Store) FindByKeys(collection string, keys []string) (map[string]document.Document, error) {
	out := make(map[string]document.Document, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	if err := s.ensureCollection(collection); err != nil {
		return nil, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT "key", doc FROM %s WHERE "key" IN (%s)`,
		quoteIdent(collection), placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", collection, err)
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding document %q in %s: %w", key, collection, err)
		}
		out[key] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", collection, err)
	}
	return out, nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count(collection string) (int, error) {
	if err := s.ensureCollection(collection); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRow(fmt.Sprintf(
		`SELECT COUNT(*) FROM %s`, quoteIdent(collection))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return n, nil
}

// Cursor streams documents from a collection without materializing it.
type Cursor struct {
	rows *sql.Rows
	doc  document.Document
	err  error
}

// FindAll opens a streaming cursor over every document in the
// collection. The caller must Close it; only one cursor should be held
// open per feed load.
func (s *Store) FindAll(collection string) (*Cursor, error) {
	if err := s.ensureCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT doc FROM %s`, quoteIdent(collection)))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	return &Cursor{rows: rows}, nil
}

// Next advances the cursor. It returns false at the end of the
// collection or on error; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	var raw string
	if err := c.rows.Scan(&raw); err != nil {
		c.err = err
		return false
	}
	doc, err := decodeDoc(raw)
	if err != nil {
		c.err = err
		return false
	}
	c.doc = doc
	return true
}

// Document returns the document at the cursor's current position.
func (c *Cursor) Document() document.Document {
	return c.doc
}

// Err returns the first error encountered while iterating.
func (c *Cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

// Close releases the cursor.
func (c *Cursor) Close() error {
	return c.rows.Close()
}

func decodeDoc(raw string) (document.Document, error) {
	var doc document.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
