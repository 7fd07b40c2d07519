package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/monoid/internal/embeddings"
	"github.com/starford/monoid/internal/noteservice"
	"github.com/starford/monoid/internal/testutil"
)

var idRe = regexp.MustCompile(`^\d{14}$`)

func testServer(t *testing.T) *Server {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := noteservice.NewService(store, db, embeddings.NewMock(), logger, 0.5)
	return New(svc)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we
	// dispatch to the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "get_related":
		result, err = srv.getRelated(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// createdID extracts the note id from a create_note result.
func createdID(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	text := resultText(r)
	id := strings.TrimPrefix(text, "created: ")
	if !idRe.MatchString(id) {
		t.Fatalf("create result = %q, want created: <14-digit id>", text)
	}
	return id
}

func TestCreateAndReadNote(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "Test note",
		"content": "Hello body",
		"tags":    "alpha, beta",
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	id := createdID(t, r)

	r = callTool(t, srv, "read_note", map[string]interface{}{"id": id})
	text := resultText(r)
	if !strings.Contains(text, "Hello body") {
		t.Errorf("read result missing body: %q", text)
	}
	if !strings.Contains(text, "title: Test note") {
		t.Errorf("read result missing frontmatter title: %q", text)
	}
	if !strings.Contains(text, "alpha") {
		t.Errorf("read result missing tag: %q", text)
	}
}

func TestCreateNoteInvalidType(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "Bad",
		"content": "body",
		"type":    "poem",
	})
	if !r.IsError {
		t.Error("expected error for invalid note type")
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"id": "19990101000000"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestSearchNotes(t *testing.T) {
	srv := testServer(t)

	ra := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "Database design",
		"content": "Indexes and query planning for relational databases.",
		"tags":    "db",
	})
	dbID := createdID(t, ra)
	_ = callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "Sourdough",
		"content": "Flour, water, salt, patience.",
	})

	for _, mode := range []string{"hybrid", "keyword", "semantic"} {
		r := callTool(t, srv, "search_notes", map[string]interface{}{
			"query": "database indexes",
			"mode":  mode,
		})
		if r.IsError {
			t.Fatalf("mode %s: search failed: %s", mode, resultText(r))
		}
		text := resultText(r)
		if !strings.Contains(text, dbID) {
			t.Errorf("mode %s: results missing %s: %s", mode, dbID, text)
		}
	}
}

func TestSearchNotesUnknownMode(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "search_notes", map[string]interface{}{
		"query": "anything",
		"mode":  "psychic",
	})
	if !r.IsError {
		t.Error("expected error for unknown mode")
	}
}

func TestListNotes(t *testing.T) {
	srv := testServer(t)

	ra := callTool(t, srv, "create_note", map[string]interface{}{
		"title": "First", "content": "a", "tags": "keep",
	})
	first := createdID(t, ra)
	rb := callTool(t, srv, "create_note", map[string]interface{}{
		"title": "Second", "content": "b",
	})
	second := createdID(t, rb)

	r := callTool(t, srv, "list_notes", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, first) || !strings.Contains(text, second) {
		t.Errorf("list missing notes: %q", text)
	}

	r = callTool(t, srv, "list_notes", map[string]interface{}{"tag": "keep"})
	text = resultText(r)
	if !strings.Contains(text, first) {
		t.Errorf("tag filter dropped %s: %q", first, text)
	}
	if strings.Contains(text, second) {
		t.Errorf("tag filter kept %s: %q", second, text)
	}
}

func TestBacklinksAndRelated(t *testing.T) {
	srv := testServer(t)

	ra := callTool(t, srv, "create_note", map[string]interface{}{
		"title": "Target", "content": "the destination",
	})
	target := createdID(t, ra)

	rb := callTool(t, srv, "create_note", map[string]interface{}{
		"title": "Source", "content": "points at [[" + target + "]]",
	})
	source := createdID(t, rb)

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"id": target})
	if text := resultText(r); text != source {
		t.Errorf("backlinks = %q, want %q", text, source)
	}

	r = callTool(t, srv, "get_related", map[string]interface{}{"id": target})
	if text := resultText(r); !strings.Contains(text, source) {
		t.Errorf("related = %q, want to contain %q", text, source)
	}
}

func TestBacklinksEmpty(t *testing.T) {
	srv := testServer(t)

	ra := callTool(t, srv, "create_note", map[string]interface{}{
		"title": "Loner", "content": "no links here",
	})
	id := createdID(t, ra)

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"id": id})
	if text := resultText(r); text != "no backlinks found" {
		t.Errorf("backlinks = %q", text)
	}
}

func TestGetNoteContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_note_contract", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "Monoid Note Format Contract") {
		t.Error("contract missing heading")
	}
	if !strings.Contains(text, "id") || !strings.Contains(text, "wikilink") {
		t.Error("contract missing core rules")
	}
}
