// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Monoid tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/monoid/internal/models"
	"github.com/starford/monoid/internal/noteservice"
	"github.com/starford/monoid/internal/search"
)

// searchLimit caps the number of results a tool call returns.
const searchLimit = 20

// Server wraps the MCP server with Monoid tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all Monoid tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Monoid",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes. Modes: hybrid (default, fuses keyword, "+
			"semantic, and tag signals), keyword (full-text only), semantic "+
			"(embedding similarity only)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query text")),
		mcp.WithString("mode", mcp.Description("Search mode: hybrid, keyword, or semantic (default hybrid)")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated tag names to blend into hybrid ranking")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note by its id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id (14-digit timestamp, e.g. 20250115093000)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. The server assigns the id and writes the "+
			"frontmatter; supply title, Markdown body, and optional tags. Read the "+
			"format contract first via the get_note_contract tool or the "+
			"monoid://note-format resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human-readable note title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body; use [[id]] wikilinks to reference other notes")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated tag names")),
		mcp.WithString("type", mcp.Description("Note type: note (default), summary, synthesis, quiz, or template")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical Monoid note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, newest first, optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Optional tag name to filter by")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_related",
		mcp.WithDescription("Find notes connected to the specified note in the knowledge "+
			"graph (explicit links, shared tags, provenance, semantic similarity)."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the note to find neighbors for")),
	), s.getRelated)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("monoid://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical Markdown note format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	mode := "hybrid"
	if m, err := req.RequireString("mode"); err == nil && m != "" {
		mode = m
	}
	var tags []string
	if raw, err := req.RequireString("tags"); err == nil {
		tags = splitTags(raw)
	}

	var results []search.Result
	switch mode {
	case "hybrid":
		results, err = s.svc.SearchHybrid(ctx, query, tags, searchLimit)
	case "keyword":
		results, err = s.svc.SearchKeyword(ctx, query, searchLimit)
	case "semantic":
		results, err = s.svc.SearchSemantic(ctx, query, searchLimit)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode: %s", mode)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(detail.Content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	in := noteservice.CreateInput{Title: title, Content: content}
	if raw, tagErr := req.RequireString("tags"); tagErr == nil {
		in.Tags = splitTags(raw)
	}
	if typ, typeErr := req.RequireString("type"); typeErr == nil && typ != "" {
		in.Type = models.NoteType(typ)
	}

	detail, err := s.svc.CreateNote(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", detail.ID)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := ""
	if t, err := req.RequireString("tag"); err == nil {
		tag = t
	}

	items, _, err := s.svc.ListNotes(ctx, 0, 0, tag, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var lines []string
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%s\t%s", it.ID, it.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "monoid://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) getRelated(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	related, err := s.svc.Related(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(related) == 0 {
		return mcp.NewToolResultText("no related notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(related, "\n")), nil
}

func splitTags(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
