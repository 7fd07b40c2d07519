package noteservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/monoid/internal/apperr"
	"github.com/starford/monoid/internal/embeddings"
	"github.com/starford/monoid/internal/models"
	"github.com/starford/monoid/internal/parser"
	"github.com/starford/monoid/internal/search"
	"github.com/starford/monoid/internal/testutil"
)

func testService(t *testing.T) *Service {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(store, db, embeddings.NewMock(), logger, 0.5)
}

func TestCreateAndGetNote(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	created, err := svc.CreateNote(ctx, CreateInput{
		Title:   "First",
		Tags:    []string{"go"},
		Content: "hello world",
	})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if len(created.ID) != 14 {
		t.Errorf("id = %q, want 14-digit timestamp", created.ID)
	}
	if created.Type != models.TypeNote {
		t.Errorf("type = %q, want default note", created.Type)
	}

	got, err := svc.GetNote(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "First" || len(got.Tags) != 1 || got.Tags[0] != "go" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Checksum != created.Checksum {
		t.Errorf("checksum changed between create and get")
	}

	// The note is searchable immediately.
	hits, err := svc.SearchKeyword(ctx, "hello", search.DefaultTopK)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].NoteID != created.ID {
		t.Errorf("created note not searchable: %+v", hits)
	}
}

func TestCreateNote_InvalidType(t *testing.T) {
	svc := testService(t)
	if _, err := svc.CreateNote(context.Background(), CreateInput{Type: "poem", Content: "x"}); err == nil {
		t.Fatal("invalid type should be rejected")
	}
}

func TestCreateNote_CollisionProbesForward(t *testing.T) {
	svc := testService(t)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	first, err := svc.CreateNote(ctx, CreateInput{Content: "a"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.CreateNote(ctx, CreateInput{Content: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Fatalf("colliding ids: %s", first.ID)
	}
	if second.ID != "20240301100001" {
		t.Errorf("second id = %s, want next-second probe", second.ID)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	svc := testService(t)
	if _, err := svc.GetNote(context.Background(), "19990101000000"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateNote_ChecksumConflict(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	created, err := svc.CreateNote(ctx, CreateInput{Title: "T", Content: "v1"})
	if err != nil {
		t.Fatal(err)
	}

	next, err := parser.Parse([]byte(created.Content))
	if err != nil {
		t.Fatal(err)
	}
	next.Content = "v2"
	data, err := parser.Serialize(next)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.UpdateNote(ctx, created.ID, data, "stale-checksum"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale If-Match: err = %v, want ErrConflict", err)
	}

	updated, err := svc.UpdateNote(ctx, created.ID, data, created.Checksum)
	if err != nil {
		t.Fatalf("matching If-Match: %v", err)
	}
	if updated.UpdatedAt.IsZero() {
		t.Error("update should stamp updated_at")
	}
}

func TestUpdateNote_IDMismatchRejected(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	created, err := svc.CreateNote(ctx, CreateInput{Content: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	imposter, err := parser.Serialize(&models.Note{ID: "19990101000000", Type: models.TypeNote, Created: time.Now(), Content: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateNote(ctx, created.ID, imposter, ""); err == nil {
		t.Fatal("id mismatch should be rejected")
	}
}

func TestDeleteNote_RemovesEverywhere(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	created, err := svc.CreateNote(ctx, CreateInput{Content: "ephemeral content"})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteNote(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetNote(ctx, created.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted note still readable: %v", err)
	}
	hits, err := svc.SearchKeyword(ctx, "ephemeral", search.DefaultTopK)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted note still searchable: %+v", hits)
	}
}

func TestListNotes_HidesLowConfidenceAITags(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	created, err := svc.CreateNote(ctx, CreateInput{Content: "x", Tags: []string{"solid"}})
	if err != nil {
		t.Fatal(err)
	}

	// Rewrite the note with a low-confidence AI tag alongside the user tag.
	n, err := parser.Parse([]byte(created.Content))
	if err != nil {
		t.Fatal(err)
	}
	n.Tags = append(n.Tags, models.Tag{Name: "wild-guess", Source: models.TagSourceAI, Confidence: 0.2})
	data, err := parser.Serialize(n)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateNote(ctx, created.ID, data, ""); err != nil {
		t.Fatal(err)
	}

	items, total, err := svc.ListNotes(ctx, 10, 0, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("list = %d/%d items", len(items), total)
	}
	for _, tag := range items[0].Tags {
		if tag == "wild-guess" {
			t.Error("low-confidence AI tag visible in listing")
		}
	}

	// Hidden tags stay searchable.
	hits, err := svc.SearchTags(ctx, []string{"wild-guess"}, search.TagAny)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("hidden tag not searchable: %+v", hits)
	}
}

func TestSearch_ZeroTopKMeansEmpty(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	if _, err := svc.CreateNote(ctx, CreateInput{Content: "visible content"}); err != nil {
		t.Fatal(err)
	}

	if hits, err := svc.SearchKeyword(ctx, "visible", 0); err != nil || len(hits) != 0 {
		t.Errorf("keyword topK=0: hits=%v err=%v, want empty", hits, err)
	}
	if hits, err := svc.SearchSemantic(ctx, "visible", 0); err != nil || len(hits) != 0 {
		t.Errorf("semantic topK=0: hits=%v err=%v, want empty", hits, err)
	}
	if hits, err := svc.SearchHybrid(ctx, "visible", nil, 0); err != nil || len(hits) != 0 {
		t.Errorf("hybrid topK=0: hits=%v err=%v, want empty", hits, err)
	}
}

func TestSearchHybrid_RequiresQueryText(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	for _, q := range []string{"", "   "} {
		if _, err := svc.SearchHybrid(ctx, q, []string{"db"}, 0); !errors.Is(err, apperr.ErrQueryRequired) {
			t.Errorf("query %q: err = %v, want ErrQueryRequired", q, err)
		}
	}
}

func TestSearchHybrid_EndToEnd(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	a, err := svc.CreateNote(ctx, CreateInput{Content: "database design patterns", Tags: []string{"db"}})
	if err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return time.Now().Add(2 * time.Second) }
	if _, err := svc.CreateNote(ctx, CreateInput{Content: "cooking recipes"}); err != nil {
		t.Fatal(err)
	}

	results, err := svc.SearchHybrid(ctx, "database", []string{"db"}, search.DefaultTopK)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].NoteID != a.ID {
		t.Errorf("relevant note should rank first: %+v", results)
	}
}

func TestReindex_RestoresDroppedIndex(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	var reported int
	svc.SetReindexHook(func(notes int) { reported = notes })

	created, err := svc.CreateNote(ctx, CreateInput{Content: "resilient content"})
	if err != nil {
		t.Fatal(err)
	}

	// Simulate index drift: the row disappears but the file remains.
	if err := svc.db.DeleteNote(created.ID); err != nil {
		t.Fatal(err)
	}
	if hits, _ := svc.SearchKeyword(ctx, "resilient", search.DefaultTopK); len(hits) != 0 {
		t.Fatal("precondition failed: note still indexed")
	}

	if err := svc.Reindex(ctx); err != nil {
		t.Fatal(err)
	}
	hits, err := svc.SearchKeyword(ctx, "resilient", search.DefaultTopK)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("reindex did not restore note: %+v", hits)
	}
	if reported != 1 {
		t.Errorf("reindex hook reported %d notes, want 1", reported)
	}
}

func TestGraphAndBacklinks(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	target, err := svc.CreateNote(ctx, CreateInput{Content: "target note"})
	if err != nil {
		t.Fatal(err)
	}
	svc.now = func() time.Time { return time.Now().Add(2 * time.Second) }
	source, err := svc.CreateNote(ctx, CreateInput{Content: "see [[" + target.ID + "]]"})
	if err != nil {
		t.Fatal(err)
	}

	bl, err := svc.Backlinks(ctx, target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 1 || bl[0] != source.ID {
		t.Errorf("backlinks = %v", bl)
	}

	g, err := svc.Graph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 2 {
		t.Errorf("graph nodes = %d, want 2", len(g.Nodes))
	}

	related, err := svc.Related(ctx, target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(related) == 0 {
		t.Errorf("linked notes should be related")
	}
	detail, err := svc.GetNote(ctx, target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Backlinks) != 1 {
		t.Errorf("detail backlinks = %v", detail.Backlinks)
	}
}
