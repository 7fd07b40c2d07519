package index

import "github.com/starford/monoid/internal/models"

// NoteIndex defines the interface for derived-index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string, links []string, emb *Embedding) error
	DeleteNote(id string) error
	GetNote(id string) (*NoteRow, error)
	GetChecksum(id string) (string, error)
	AllChecksums() (map[string]string, error)
	ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error)
	AllNotes() ([]NoteRow, error)
	SearchLexical(query string, limit int) ([]LexicalHit, error)
	SearchTags(names []string, matchAll bool) ([]TagHit, error)
	AllEmbeddings() ([]EmbeddingRow, error)
	AllLinks() ([]models.Link, error)
	Backlinks(target string) ([]string, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
