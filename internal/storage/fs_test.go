package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/monoid/internal/apperr"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("---\nid: \"20240101120000\"\n---\nWorld\n")
	if err := s.Write("20240101120000", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("20240101120000")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	s := tempVault(t)
	_, err := s.Read("19990101000000")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("20240101000001", []byte("bye"))
	if err := s.Delete("20240101000001"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("20240101000001"); err == nil {
		t.Error("expected error reading deleted note")
	}
	if err := s.Delete("20240101000001"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestList_NewestFirstAndMarkdownOnly(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("20240101000001", []byte("a"))
	_ = s.Write("20240301000001", []byte("c"))
	_ = s.Write("20240201000001", []byte("b"))
	_ = os.WriteFile(filepath.Join(s.root, "readme.txt"), []byte("not md"), 0o644)

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	want := []string{"20240301000001", "20240201000001", "20240101000001"}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("items[%d].ID = %q, want %q", i, items[i].ID, id)
		}
	}
	if items[0].Checksum == "" {
		t.Error("expected non-empty checksum")
	}
}

func TestList_EmptyVault(t *testing.T) {
	s := tempVault(t)
	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len = %d, want 0", len(items))
	}
}

func TestInvalidIDsBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"..",
		"a/b",
		`a\b`,
		".hidden",
		"",
	}
	for _, id := range cases {
		if _, err := s.Read(id); err == nil {
			t.Errorf("expected error for id %q", id)
		}
		if err := s.Write(id, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", id)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("20240101000002", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("20240101000002", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("20240101000002")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".monoid-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/monoid-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "monoid-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
