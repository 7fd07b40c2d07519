package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/monoid/internal/apperr"
	"github.com/starford/monoid/internal/models"
	"github.com/starford/monoid/internal/noteservice"
	"github.com/starford/monoid/internal/search"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with optional pagination and filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, title)
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	tag := q.Get("tag")
	sort := q.Get("sort")

	items, total, err := h.svc.ListNotes(r.Context(), limit, offset, tag, sort)
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notes": items,
		"total": total,
	})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note; the server assigns the id
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), noteservice.CreateInput{
		Title:      req.Title,
		Type:       models.NoteType(req.Type),
		Tags:       req.Tags,
		Content:    req.Content,
		Provenance: req.Provenance,
	})
	if err != nil {
		slog.Error("create note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path	string				true	"Note id"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateNoteRequest	true	"Updated content"
//	@Success		200			{object}	NoteDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := chi.URLParam(r, "id")

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	note, err := h.svc.UpdateNote(r.Context(), id, []byte(req.Content), ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete note failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
// mode selects the retrieval strategy: keyword (default), semantic,
// tags, or hybrid. hybrid requires free text; tag-only queries use the
// tags mode.
//
//	@Summary		Search notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	false	"Query text"
//	@Param			mode	query		string	false	"Search mode"	Enums(keyword, semantic, tags, hybrid)
//	@Param			tags	query		string	false	"Comma-separated tag filter"
//	@Param			match	query		string	false	"Tag match mode"	Enums(any, all)
//	@Param			top		query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := params.Get("q")
	mode := params.Get("mode")
	if mode == "" {
		mode = "keyword"
	}
	// An absent "top" means the default page; an explicit 0 is honored
	// and yields an empty result.
	top := search.DefaultTopK
	if raw := params.Get("top"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			top = v
		}
	}
	tags := splitTags(params.Get("tags"))

	var (
		results []search.Result
		err     error
	)
	switch mode {
	case "keyword":
		if query == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
			return
		}
		results, err = h.svc.SearchKeyword(r.Context(), query, top)
	case "semantic":
		if query == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
			return
		}
		results, err = h.svc.SearchSemantic(r.Context(), query, top)
	case "tags":
		tagMode := search.TagAny
		if params.Get("match") == "all" {
			tagMode = search.TagAll
		}
		results, err = h.svc.SearchTags(r.Context(), tags, tagMode)
	case "hybrid":
		results, err = h.svc.SearchHybrid(r.Context(), query, tags, top)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown search mode"))
		return
	}

	if err != nil {
		if errors.Is(err, apperr.ErrQueryRequired) {
			writeJSON(w, http.StatusBadRequest, errorBody("hybrid search requires query text"))
			return
		}
		slog.Error("search failed", slog.String("mode", mode), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Mode: mode, Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the knowledge graph with summary stats
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Graph(r.Context())
	if err != nil {
		slog.Error("graph failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: g.Nodes, Edges: g.Edges, Stats: g.Stats()})
}

// Related handles GET /api/notes/{id}/related.
//
//	@Summary		List a note's direct graph neighbors
//	@Tags			graph
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	RelatedResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/related [get]
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	related, err := h.svc.Related(r.Context(), id)
	if err != nil {
		slog.Error("related failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if related == nil {
		related = []string{}
	}
	writeJSON(w, http.StatusOK, RelatedResponse{ID: id, Related: related})
}

// Reindex handles POST /api/reindex: an atomic full rebuild of the
// derived index from the vault.
//
//	@Summary		Rebuild the derived index
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	ReindexResponse
//	@Security		BearerAuth
//	@Router			/reindex [post]
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reindex(r.Context()); err != nil {
		slog.Error("reindex failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ReindexResponse{Status: "ok"})
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
