package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/monoid/internal/checksum"
	"github.com/starford/monoid/internal/embeddings"
	"github.com/starford/monoid/internal/parser"
	"github.com/starford/monoid/internal/storage"
)

// preparedNote is a fully materialized note ready for insertion: parsed,
// checksummed, and (optionally) embedded.
type preparedNote struct {
	row   NoteRow
	body  string
	links []string
	emb   *Embedding
}

// SyncAll rebuilds the entire derived index from the note store.
//
// The rebuild is atomic from a reader's perspective: all notes are read,
// parsed, and embedded first, outside any transaction (embedding calls
// can take seconds per note and must not stall readers), then the
// clear-and-repopulate happens in a single transaction. No reader ever
// observes the index between the cleared and repopulated states.
//
// A note that fails to parse is skipped with a warning. A failed or
// absent embedding omits that note's vector row for this pass; neither
// aborts the rebuild. Context cancellation between notes aborts the whole
// rebuild before anything is written.
//
// SyncAll is not reentrant; overlapping calls are serialized internally.
func SyncAll(ctx context.Context, db *DB, store storage.Provider, embedder embeddings.Provider, logger *slog.Logger) error {
	db.syncMu.Lock()
	defer db.syncMu.Unlock()

	metas, err := store.List()
	if err != nil {
		return fmt.Errorf("index: sync list: %w", err)
	}

	prepared := make([]preparedNote, 0, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("index: sync cancelled: %w", err)
		}
		p, err := prepareNote(ctx, store, embedder, m.ID, logger)
		if err != nil {
			logger.Warn("sync: skipping note", slog.String("id", m.ID), slog.String("error", err.Error()))
			continue
		}
		prepared = append(prepared, *p)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin rebuild tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"notes", "tags", "links", "embeddings"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	if err := ftsClear(tx); err != nil {
		return err
	}

	for _, p := range prepared {
		if err := upsertNoteTx(tx, p.row, p.body, p.links, p.emb); err != nil {
			return fmt.Errorf("index: rebuild note %s: %w", p.row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit rebuild: %w", err)
	}
	logger.Info("sync: full rebuild complete", slog.Int("notes", len(prepared)))
	return nil
}

// Sync brings the index up to date incrementally: new or changed notes
// (by checksum) are re-indexed, notes gone from the store are removed.
// Cheaper than SyncAll but per-note rather than atomic; use SyncAll when
// a consistent rebuild is required.
func Sync(ctx context.Context, db *DB, store storage.Provider, embedder embeddings.Provider, logger *slog.Logger) error {
	metas, err := store.List()
	if err != nil {
		return fmt.Errorf("index: sync list: %w", err)
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		seen[m.ID] = struct{}{}

		if checksums[m.ID] == m.Checksum {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("index: sync cancelled: %w", err)
		}
		if err := IndexNote(ctx, db, store, embedder, m.ID, logger); err != nil {
			logger.Warn("sync: index failed", slog.String("id", m.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("id", m.ID))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := seen[id]; !ok {
			if err := db.DeleteNote(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("id", id))
			}
		}
	}

	return nil
}

// IndexNote reads, parses, embeds, and upserts a single note.
func IndexNote(ctx context.Context, db *DB, store storage.Provider, embedder embeddings.Provider, id string, logger *slog.Logger) error {
	p, err := prepareNote(ctx, store, embedder, id, logger)
	if err != nil {
		return err
	}
	return db.UpsertNote(p.row, p.body, p.links, p.emb)
}

// prepareNote materializes one note for indexing. An embedding failure is
// logged and degrades to a nil embedding; a parse failure is an error.
func prepareNote(ctx context.Context, store storage.Provider, embedder embeddings.Provider, id string, logger *slog.Logger) (*preparedNote, error) {
	data, err := store.Read(id)
	if err != nil {
		return nil, err
	}
	n, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	if n.ID != id {
		return nil, fmt.Errorf("index: note %s declares id %s", id, n.ID)
	}

	row := NoteRow{
		ID:         n.ID,
		Title:      n.Title,
		Type:       n.Type,
		Checksum:   checksum.Sum(data),
		Tags:       n.Tags,
		Provenance: n.Provenance,
		CreatedAt:  n.Created,
		UpdatedAt:  updatedOr(n.Updated, n.Created),
	}

	var emb *Embedding
	if embedder != nil {
		vec, err := embedder.Embed(ctx, n.Content)
		switch {
		case err != nil:
			logger.Warn("sync: embedding failed", slog.String("id", id), slog.String("error", err.Error()))
		case vec != nil:
			emb = &Embedding{Model: embedder.ModelName(), Vector: vec}
		}
	}

	return &preparedNote{row: row, body: n.Content, links: n.Links, emb: emb}, nil
}

func updatedOr(updated, created time.Time) time.Time {
	if updated.IsZero() {
		return created
	}
	return updated
}
