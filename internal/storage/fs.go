package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/monoid/internal/apperr"
	"github.com/starford/monoid/internal/checksum"
	"github.com/starford/monoid/internal/models"
)

// FS implements Provider backed by a flat directory of <id>.md files.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// notePath maps an id to its file path, rejecting ids that would escape
// the vault root (separators, traversal, hidden prefixes).
func (f *FS) notePath(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("storage: empty note id")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("storage: invalid note id: %q", id)
	}
	return filepath.Join(f.root, id+".md"), nil
}

// List returns metadata for every note file in the vault, newest id first.
func (f *FS) List() ([]models.NoteMetadata, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []models.NoteMetadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: stat %s: %w", e.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("storage: read %s: %w", e.Name(), err)
		}
		out = append(out, models.NoteMetadata{
			ID:        strings.TrimSuffix(e.Name(), ".md"),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	// Timestamp-derived ids: lexicographic descending is creation order,
	// newest first.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Read returns the raw bytes of a note.
func (f *FS) Read(id string) ([]byte, error) {
	p, err := f.notePath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage: read %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", id, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file, fsync, rename.
func (f *FS) Write(id string, content []byte) error {
	p, err := f.notePath(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".monoid-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a note file from the vault.
func (f *FS) Delete(id string) error {
	p, err := f.notePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage: delete %s: %w", id, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	return nil
}

// Root returns the absolute vault directory, for the file watcher.
func (f *FS) Root() string {
	return f.root
}
