// Package noteservice coordinates the note store, the derived index, and
// the search engine behind one application-facing API. The store is
// authoritative; every mutation re-indexes the affected note so reads and
// searches stay consistent.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/monoid/internal/apperr"
	"github.com/starford/monoid/internal/checksum"
	"github.com/starford/monoid/internal/embeddings"
	"github.com/starford/monoid/internal/graph"
	"github.com/starford/monoid/internal/index"
	"github.com/starford/monoid/internal/models"
	"github.com/starford/monoid/internal/parser"
	"github.com/starford/monoid/internal/search"
	"github.com/starford/monoid/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID         string          `json:"id"`
	Type       models.NoteType `json:"type"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Checksum   string          `json:"checksum"`
	Tags       []string        `json:"tags"`
	Provenance string          `json:"provenance,omitempty"`
	Backlinks  []string        `json:"backlinks"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        string          `json:"id"`
	Type      models.NoteType `json:"type"`
	Title     string          `json:"title"`
	Checksum  string          `json:"checksum"`
	Tags      []string        `json:"tags"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreateInput is the payload for creating a note. Type defaults to plain
// note; Tags become user-sourced tags.
type CreateInput struct {
	Title      string
	Type       models.NoteType
	Tags       []string
	Content    string
	Provenance string
}

// Service coordinates storage, index, and search operations.
type Service struct {
	store    storage.Provider
	db       *index.DB
	embedder embeddings.Provider
	engine   *search.Engine
	logger   *slog.Logger

	// aiTagThreshold hides low-confidence AI tags from read payloads.
	aiTagThreshold float64

	// onReindex, when set, is told how many notes a completed rebuild
	// covered.
	onReindex func(notes int)

	now func() time.Time
}

// SetReindexHook registers a callback invoked after every successful
// Reindex. Must be called before the service handles requests.
func (s *Service) SetReindexHook(fn func(notes int)) {
	s.onReindex = fn
}

// NewService creates a new note service. embedder may be nil; semantic
// search then degrades to empty results.
func NewService(store storage.Provider, db *index.DB, embedder embeddings.Provider, logger *slog.Logger, aiTagThreshold float64) *Service {
	return &Service{
		store:          store,
		db:             db,
		embedder:       embedder,
		engine:         search.NewEngine(db, embedder, logger),
		logger:         logger,
		aiTagThreshold: aiTagThreshold,
		now:            time.Now,
	}
}

// CreateNote assigns a timestamp id, writes the note to the store, and
// indexes it.
func (s *Service) CreateNote(ctx context.Context, in CreateInput) (*NoteDetail, error) {
	typ := in.Type
	if typ == "" {
		typ = models.TypeNote
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("noteservice: invalid note type %q", typ)
	}

	id, err := s.generateID()
	if err != nil {
		return nil, err
	}

	note := &models.Note{
		ID:         id,
		Type:       typ,
		Title:      in.Title,
		Created:    s.now(),
		Provenance: in.Provenance,
		Content:    in.Content,
	}
	for _, name := range in.Tags {
		note.Tags = append(note.Tags, models.UserTag(name))
	}

	data, err := parser.Serialize(note)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(id, data); err != nil {
		return nil, err
	}
	if err := index.IndexNote(ctx, s.db, s.store, s.embedder, id, s.logger); err != nil {
		return nil, err
	}
	s.logger.Info("note created", slog.String("id", id))
	return s.buildDetail(id, data)
}

// GetNote reads a note from storage and enriches it with backlinks.
func (s *Service) GetNote(_ context.Context, id string) (*NoteDetail, error) {
	data, err := s.store.Read(id)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(id, data)
}

// UpdateNote replaces a note's content with optimistic concurrency: a
// non-empty ifMatch must equal the current checksum. The new content must
// parse and keep the same id.
func (s *Service) UpdateNote(ctx context.Context, id string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}

	n, err := parser.Parse(content)
	if err != nil {
		return nil, err
	}
	if n.ID != id {
		return nil, fmt.Errorf("noteservice: content declares id %q, expected %q", n.ID, id)
	}
	if n.Updated.IsZero() {
		n.Updated = s.now()
		if content, err = parser.Serialize(n); err != nil {
			return nil, err
		}
	}

	if err := s.store.Write(id, content); err != nil {
		return nil, err
	}
	if err := index.IndexNote(ctx, s.db, s.store, s.embedder, id, s.logger); err != nil {
		return nil, err
	}
	return s.buildDetail(id, content)
}

// DeleteNote removes a note from storage and index.
func (s *Service) DeleteNote(_ context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	return s.db.DeleteNote(id)
}

// ListNotes returns paginated notes with optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			ID:        r.ID,
			Type:      r.Type,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      s.visibleTagNames(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// SearchKeyword runs lexical search. topK is taken literally, zero
// included; defaulting an absent value is the transport's concern.
func (s *Service) SearchKeyword(_ context.Context, query string, topK int) ([]search.Result, error) {
	return s.engine.Lexical(query, topK)
}

// SearchSemantic runs embedding-similarity search. An unavailable
// provider yields an empty result, not an error.
func (s *Service) SearchSemantic(ctx context.Context, query string, topK int) ([]search.Result, error) {
	return s.engine.Semantic(ctx, query, topK)
}

// SearchTags runs tag-membership search.
func (s *Service) SearchTags(_ context.Context, names []string, mode search.TagMode) ([]search.Result, error) {
	return s.engine.ByTags(names, mode)
}

// SearchHybrid fuses all signals. Free text is required by contract;
// tag-only queries belong to SearchTags.
func (s *Service) SearchHybrid(ctx context.Context, query string, tags []string, topK int) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.ErrQueryRequired
	}
	return s.engine.Hybrid(ctx, query, tags, topK)
}

// Reindex performs an atomic full rebuild of the derived index.
func (s *Service) Reindex(ctx context.Context) error {
	if err := index.SyncAll(ctx, s.db, s.store, s.embedder, s.logger); err != nil {
		return err
	}
	if s.onReindex != nil {
		if sums, err := s.db.AllChecksums(); err == nil {
			s.onReindex(len(sums))
		}
	}
	return nil
}

// Graph builds the knowledge graph from the current index state.
func (s *Service) Graph(_ context.Context) (*graph.Graph, error) {
	return graph.Build(s.db)
}

// GraphStats summarizes the knowledge graph.
func (s *Service) GraphStats(_ context.Context) (*graph.Stats, error) {
	return graph.BuildStats(s.db)
}

// Related returns ids of a note's direct graph neighbors.
func (s *Service) Related(_ context.Context, id string) ([]string, error) {
	return graph.Related(s.db, id)
}

// Backlinks returns all note ids that link to the given target.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	return s.db.Backlinks(target)
}

// generateID derives an id from the current timestamp. On collision it
// probes forward one second at a time, keeping ids sortable by creation.
func (s *Service) generateID() (string, error) {
	ts := s.now()
	for i := 0; i < 100; i++ {
		id := ts.Add(time.Duration(i) * time.Second).Format("20060102150405")
		if _, err := s.store.Read(id); errors.Is(err, apperr.ErrNotFound) {
			return id, nil
		}
	}
	return "", fmt.Errorf("noteservice: could not allocate a free note id")
}

func (s *Service) buildDetail(id string, data []byte) (*NoteDetail, error) {
	n, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(id)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		ID:         n.ID,
		Type:       n.Type,
		Title:      n.Title,
		Content:    string(data),
		Checksum:   checksum.Sum(data),
		Tags:       s.visibleTagNames(n.Tags),
		Provenance: n.Provenance,
		Backlinks:  nonNilSlice(bl),
		CreatedAt:  n.Created,
		UpdatedAt:  n.Updated,
	}, nil
}

func (s *Service) visibleTagNames(tags []models.Tag) []string {
	out := []string{}
	for _, t := range tags {
		if t.Source == models.TagSourceAI && t.Confidence < s.aiTagThreshold {
			continue
		}
		out = append(out, t.Name)
	}
	return out
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
