// Package search ranks notes by fusing three retrieval signals: lexical
// full-text match, embedding similarity, and tag membership. Each signal
// is normalised to [0,1] before a fixed-weight linear combination, so the
// weights stay meaningful across heterogeneous raw scores.
package search

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/starford/monoid/internal/apperr"
	"github.com/starford/monoid/internal/embeddings"
	"github.com/starford/monoid/internal/index"
)

// DefaultTopK is the result count used when a caller does not specify one.
const DefaultTopK = 10

// Fixed fusion weights. Lexical and semantic recall are equally weighted
// general-purpose signals; tag match is a lighter boost because tags are
// sparse and often AI-suggested with uncertain confidence.
const (
	weightLexical  = 0.4
	weightSemantic = 0.4
	weightTag      = 0.2
)

// TagMode selects how multiple query tags combine.
type TagMode int

const (
	// TagAny matches notes carrying at least one of the query tags.
	TagAny TagMode = iota
	// TagAll matches only notes carrying every query tag.
	TagAll
)

// Result is one ranked note with its per-signal and combined scores, all
// in [0,1]. A signal that did not surface the note is 0.
type Result struct {
	NoteID   string  `json:"note_id"`
	Title    string  `json:"title"`
	Snippet  string  `json:"snippet,omitempty"`
	Lexical  float64 `json:"lexical_score"`
	Semantic float64 `json:"semantic_score"`
	Tag      float64 `json:"tag_score"`
	Combined float64 `json:"combined_score"`
}

// Index is the slice of the derived index the engine reads.
type Index interface {
	SearchLexical(query string, limit int) ([]index.LexicalHit, error)
	SearchTags(names []string, matchAll bool) ([]index.TagHit, error)
	AllEmbeddings() ([]index.EmbeddingRow, error)
	GetNote(id string) (*index.NoteRow, error)
}

var _ Index = (*index.DB)(nil)

// Engine runs the three retrieval modes and their fusion. A nil embedder
// disables the semantic signal; searches still work on the other two.
type Engine struct {
	idx      Index
	embedder embeddings.Provider
	logger   *slog.Logger
}

func NewEngine(idx Index, embedder embeddings.Provider, logger *slog.Logger) *Engine {
	return &Engine{idx: idx, embedder: embedder, logger: logger}
}

// Lexical runs keyword search. Results keep the index's relevance order;
// scores are min-max normalised over the returned set.
func (e *Engine) Lexical(query string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}
	hits, err := e.idx.SearchLexical(query, topK)
	if err != nil {
		return nil, err
	}
	scores := normalizeRanks(hits)
	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			NoteID:   h.ID,
			Title:    h.Title,
			Snippet:  h.Snippet,
			Lexical:  scores[i],
			Combined: scores[i],
		}
	}
	return results, nil
}

// ByTags searches by tag membership. The score is the fraction of query
// tags present on the note, already in [0,1]. An empty tag list returns
// no results.
func (e *Engine) ByTags(names []string, mode TagMode) ([]Result, error) {
	if len(names) == 0 {
		return nil, nil
	}
	hits, err := e.idx.SearchTags(names, mode == TagAll)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(hits))
	for i, h := range hits {
		s := float64(h.MatchCount) / float64(len(names))
		results[i] = Result{NoteID: h.ID, Title: h.Title, Tag: s, Combined: s}
	}
	return results, nil
}

// Semantic ranks notes by cosine similarity between the query embedding
// and each stored note vector, remapped to [0,1]. An absent or failing
// embedding provider yields an empty result, never an error: semantic
// search being unavailable is a valid state, not a fault.
func (e *Engine) Semantic(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}
	scored, err := e.semanticScores(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}
	results := make([]Result, len(scored))
	for i, s := range scored {
		r := Result{NoteID: s.id, Semantic: s.score, Combined: s.score}
		if n, err := e.idx.GetNote(s.id); err == nil {
			r.Title = n.Title
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}

// Hybrid fuses all three signals into one ranked list.
//
// Lexical ranks are normalised over the candidate set, semantic scores
// are [0,1] by construction, and the tag score is the matched fraction.
// For the union of note ids touched by any signal:
//
//	combined = 0.4*lexical + 0.4*semantic + 0.2*tag
//
// with a missing signal contributing 0, never disqualifying the note.
// Both retrieval signals fetch 2*topK candidates so fusion has material
// to re-rank. Empty query text is accepted: lexical and semantic simply
// contribute nothing.
func (e *Engine) Hybrid(ctx context.Context, query string, tags []string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	byID := make(map[string]*Result)
	touch := func(id, title string) *Result {
		r, ok := byID[id]
		if !ok {
			r = &Result{NoteID: id}
			byID[id] = r
		}
		if r.Title == "" {
			r.Title = title
		}
		return r
	}

	lexHits, err := e.idx.SearchLexical(query, 2*topK)
	if err != nil {
		return nil, err
	}
	lexScores := normalizeRanks(lexHits)
	for i, h := range lexHits {
		r := touch(h.ID, h.Title)
		r.Lexical = lexScores[i]
		r.Snippet = h.Snippet
	}

	semScored, err := e.semanticScores(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(semScored) > 2*topK {
		semScored = semScored[:2*topK]
	}
	for _, s := range semScored {
		touch(s.id, "").Semantic = s.score
	}

	if len(tags) > 0 {
		tagHits, err := e.idx.SearchTags(tags, false)
		if err != nil {
			return nil, err
		}
		for _, h := range tagHits {
			touch(h.ID, h.Title).Tag = float64(h.MatchCount) / float64(len(tags))
		}
	}

	results := make([]Result, 0, len(byID))
	for _, r := range byID {
		r.Combined = weightLexical*r.Lexical + weightSemantic*r.Semantic + weightTag*r.Tag
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Combined != results[j].Combined {
			return results[i].Combined > results[j].Combined
		}
		return results[i].NoteID > results[j].NoteID
	})
	if len(results) > topK {
		results = results[:topK]
	}

	// Semantic-only hits have no title yet.
	for i := range results {
		if results[i].Title == "" {
			if n, err := e.idx.GetNote(results[i].NoteID); err == nil {
				results[i].Title = n.Title
			}
		}
	}
	return results, nil
}

type scoredID struct {
	id    string
	score float64
}

// semanticScores embeds the query and scores every stored vector,
// returning all candidates sorted by score descending, note id descending
// on ties. Degenerate vectors (zero norm, dimension mismatch) are skipped.
func (e *Engine) semanticScores(ctx context.Context, query string) ([]scoredID, error) {
	if e.embedder == nil || query == "" {
		return nil, nil
	}
	qvec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("search: query embedding failed", slog.String("error", err.Error()))
		return nil, nil
	}
	if len(qvec) == 0 {
		return nil, nil
	}
	qnorm := norm(qvec)
	if qnorm == 0 {
		return nil, nil
	}

	rows, err := e.idx.AllEmbeddings()
	if err != nil {
		return nil, err
	}
	scored := make([]scoredID, 0, len(rows))
	for _, row := range rows {
		if len(row.Vector) != len(qvec) {
			continue
		}
		vnorm := norm(row.Vector)
		if vnorm == 0 {
			continue
		}
		cos := dot(qvec, row.Vector) / (qnorm * vnorm)
		// float32 rounding can push identical vectors past ±1.
		cos = math.Max(-1, math.Min(1, cos))
		// Remap [-1,1] to [0,1] so the signal shares the fusion scale.
		scored = append(scored, scoredID{id: row.NoteID, score: (cos + 1) / 2})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].id > scored[j].id
	})
	return scored, nil
}

// normalizeRanks min-max normalises lexical ranks over the current result
// set. Rank magnitude grows with relevance (bm25 is negative, more
// negative is better), so the best hit in the set maps to 1. A zero
// maximum maps everything to 0.
func normalizeRanks(hits []index.LexicalHit) []float64 {
	scores := make([]float64, len(hits))
	var maxAbs float64
	for _, h := range hits {
		if a := math.Abs(h.Rank); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return scores
	}
	for i, h := range hits {
		scores[i] = math.Abs(h.Rank) / maxAbs
	}
	return scores
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
