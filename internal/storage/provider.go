// Package storage implements the authoritative note store: one Markdown
// file per note id in a flat vault directory.
package storage

import "github.com/starford/monoid/internal/models"

// Provider is the interface for note file operations. Note ids map to
// "<id>.md" files under the vault root; the store never interprets file
// contents (parsing is the parser package's job).
type Provider interface {
	// List returns metadata for every note file, ordered by id descending
	// (ids are timestamp-derived, so this is creation order, newest first).
	List() ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the note with the given id.
	Read(id string) ([]byte, error)
	// Write atomically writes content for the given id.
	Write(id string, content []byte) error
	// Delete removes the note file for the given id.
	Delete(id string) error
}
