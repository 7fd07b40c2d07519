// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/starford/monoid/internal/index"
	"github.com/starford/monoid/internal/models"
	"github.com/starford/monoid/internal/parser"
	"github.com/starford/monoid/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "monoid-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteNote serialises a minimal valid note into the store.
func WriteNote(t *testing.T, store storage.Provider, id, title, content string, tags ...models.Tag) {
	t.Helper()
	data, err := parser.Serialize(&models.Note{
		ID:      id,
		Type:    models.TypeNote,
		Title:   title,
		Tags:    tags,
		Created: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Content: content,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(id, data); err != nil {
		t.Fatal(err)
	}
}
