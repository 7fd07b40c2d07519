package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/monoid/internal/embeddings"
	"github.com/starford/monoid/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, id string)

// Watch starts an fsnotify watcher on the vault root and keeps the index
// in step with external edits until ctx is cancelled. The vault is a flat
// directory, so only the root is watched. It calls cb (if non-nil) after
// each successful index mutation.
//
// Rename events fire on the old path only; the new path arrives as a
// separate Create event. The old entry is removed immediately and a short
// debounced reconciliation pass catches any stragglers.
func Watch(ctx context.Context, db *DB, store storage.Provider, embedder embeddings.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, db, store, embedder, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			base := filepath.Base(ev.Name)
			if !strings.HasSuffix(base, ".md") || strings.HasPrefix(base, ".") {
				continue
			}
			id := strings.TrimSuffix(base, ".md")

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if idxErr := IndexNote(ctx, db, store, embedder, id, logger); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("id", id), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("id", id), slog.String("op", kind))
				if cb != nil {
					cb(kind, id)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteNote(id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("id", id), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("id", id))
				if cb != nil {
					cb("deleted", id)
				}

			case ev.Op&fsnotify.Rename != 0:
				if delErr := db.DeleteNote(id); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("id", id), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("id", id))
					if cb != nil {
						cb("deleted", id)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries whose files no longer exist and indexes
// on-disk notes that are missing or stale, using batch checksum lookups.
func reconcile(ctx context.Context, db *DB, store storage.Provider, embedder embeddings.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.ID] = m.Checksum
	}

	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if delErr := db.DeleteNote(id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("id", id))
				if cb != nil {
					cb("deleted", id)
				}
			}
		}
	}

	for id, cs := range disk {
		if checksums[id] == cs {
			continue
		}
		if idxErr := IndexNote(ctx, db, store, embedder, id, logger); idxErr == nil {
			logger.Debug("reconcile: indexed", slog.String("id", id))
			if cb != nil {
				cb("created", id)
			}
		}
	}
}
