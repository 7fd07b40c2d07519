// Package index maintains the derived SQLite index over the note vault:
// lexical (FTS5), tag, and embedding relations, plus links for the
// knowledge graph. The index is rebuildable at any time from the note
// store and is never a source of truth.
package index

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	note_type  TEXT NOT NULL DEFAULT 'note',
	checksum   TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '',
	provenance TEXT NOT NULL DEFAULT '',
	created_at DATETIME,
	updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS tags (
	note_id    TEXT NOT NULL,
	tag        TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT 'user',
	confidence REAL NOT NULL DEFAULT 1.0,
	UNIQUE(note_id, tag, source)
);

CREATE INDEX IF NOT EXISTS idx_tags_note ON tags(note_id);
CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);

CREATE TABLE IF NOT EXISTS links (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	type   TEXT NOT NULL DEFAULT 'explicit',
	UNIQUE(source, target, type)
);

CREATE INDEX IF NOT EXISTS idx_links_source ON links(source);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);

CREATE TABLE IF NOT EXISTS embeddings (
	note_id    TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	dimensions INTEGER NOT NULL,
	vector     BLOB NOT NULL
);
`

// DB wraps a sql.DB with index-specific operations. Full rebuilds are
// serialized through syncMu; they are not reentrant.
type DB struct {
	conn   *sql.DB
	syncMu sync.Mutex
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
