package api

import (
	"github.com/starford/monoid/internal/graph"
	"github.com/starford/monoid/internal/noteservice"
	"github.com/starford/monoid/internal/search"
)

// CreateNoteRequest is the request body for creating a note. The server
// assigns the id.
type CreateNoteRequest struct {
	Title      string   `json:"title" example:"Database patterns"`
	Type       string   `json:"type" example:"note"`
	Tags       []string `json:"tags" example:"db,design"`
	Content    string   `json:"content" example:"Body text with [[20240101120000]] links" validate:"required"`
	Provenance string   `json:"provenance,omitempty" example:"20240101120000"`
}

// UpdateNoteRequest is the request body for updating a note. Content is
// the full serialized note including front matter.
type UpdateNoteRequest struct {
	Content string `json:"content" validate:"required"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit with per-signal scores (aliased
// from the search engine).
type SearchResult = search.Result

// SearchResponse wraps search results.
type SearchResponse struct {
	Mode    string         `json:"mode" example:"hybrid" validate:"required"`
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the knowledge graph with its summary.
type GraphResponse struct {
	Nodes []graph.Node `json:"nodes" validate:"required"`
	Edges []graph.Edge `json:"edges" validate:"required"`
	Stats *graph.Stats `json:"stats" validate:"required"`
}

// RelatedResponse lists a note's direct graph neighbors.
type RelatedResponse struct {
	ID      string   `json:"id" example:"20240101120000" validate:"required"`
	Related []string `json:"related" validate:"required"`
}

// ReindexResponse acknowledges a completed full rebuild.
type ReindexResponse struct {
	Status string `json:"status" example:"ok" validate:"required"`
}
