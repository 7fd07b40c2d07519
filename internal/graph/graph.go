// Package graph derives a knowledge graph from the note index. Edges
// come from four sources: explicit wiki links, tag overlap, provenance
// chains, and embedding similarity. The graph is rebuilt on demand from
// the index; it is never authoritative.
package graph

import (
	"fmt"
	"math"

	"github.com/starford/monoid/internal/index"
	"github.com/starford/monoid/internal/models"
)

// Edge thresholds. Tag overlap below the Jaccard cutoff or cosine
// similarity below the semantic cutoff produces no edge.
const (
	tagOverlapThreshold = 0.3
	semanticThreshold   = 0.8
)

type EdgeType string

const (
	// EdgeExplicit is a wiki link written by the author.
	EdgeExplicit EdgeType = "explicit"
	// EdgeRelated connects notes whose tag sets overlap.
	EdgeRelated EdgeType = "related"
	// EdgeDerivative connects a note to the note it was derived from.
	EdgeDerivative EdgeType = "derivative"
	// EdgeSemantic connects notes with highly similar embeddings.
	EdgeSemantic EdgeType = "semantic"
)

type Node struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Type  models.NoteType `json:"type"`
	Tags  []string        `json:"tags,omitempty"`
}

type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
	Weight float64  `json:"weight,omitempty"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type Stats struct {
	Nodes      int     `json:"nodes"`
	Edges      int     `json:"edges"`
	Density    float64 `json:"density"`
	Components int     `json:"components"`
}

// Source is the slice of the index the builder reads.
type Source interface {
	AllNotes() ([]index.NoteRow, error)
	AllLinks() ([]models.Link, error)
	AllEmbeddings() ([]index.EmbeddingRow, error)
}

// Build assembles the full graph from the current index state. Edges
// pointing at unknown ids (dangling wiki links, missing provenance) are
// dropped rather than creating phantom nodes.
func Build(src Source) (*Graph, error) {
	notes, err := src.AllNotes()
	if err != nil {
		return nil, fmt.Errorf("graph: load notes: %w", err)
	}

	g := &Graph{Nodes: make([]Node, 0, len(notes))}
	known := make(map[string]bool, len(notes))
	for _, n := range notes {
		known[n.ID] = true
		g.Nodes = append(g.Nodes, Node{ID: n.ID, Title: n.Title, Type: n.Type, Tags: tagNames(n.Tags)})
	}

	seen := make(map[Edge]bool)
	add := func(e Edge) {
		if !known[e.Source] || !known[e.Target] || e.Source == e.Target {
			return
		}
		key := Edge{Source: e.Source, Target: e.Target, Type: e.Type}
		if seen[key] {
			return
		}
		seen[key] = true
		g.Edges = append(g.Edges, e)
	}

	links, err := src.AllLinks()
	if err != nil {
		return nil, fmt.Errorf("graph: load links: %w", err)
	}
	for _, l := range links {
		add(Edge{Source: l.Source, Target: l.Target, Type: EdgeExplicit})
	}

	// Tag overlap, both directions.
	for i, a := range notes {
		ta := tagSet(a.Tags)
		if len(ta) == 0 {
			continue
		}
		for _, b := range notes[i+1:] {
			tb := tagSet(b.Tags)
			if len(tb) == 0 {
				continue
			}
			if w := jaccard(ta, tb); w > tagOverlapThreshold {
				add(Edge{Source: a.ID, Target: b.ID, Type: EdgeRelated, Weight: w})
				add(Edge{Source: b.ID, Target: a.ID, Type: EdgeRelated, Weight: w})
			}
		}
	}

	// Provenance: parent points at the derived note.
	for _, n := range notes {
		if n.Provenance != "" {
			add(Edge{Source: n.Provenance, Target: n.ID, Type: EdgeDerivative})
		}
	}

	if err := addSemanticEdges(src, add); err != nil {
		return nil, err
	}

	return g, nil
}

// BuildStats builds the graph and summarizes it.
func BuildStats(src Source) (*Stats, error) {
	g, err := Build(src)
	if err != nil {
		return nil, err
	}
	return g.Stats(), nil
}

// Related returns the ids of all direct neighbors of id, in either
// direction, deduplicated.
func Related(src Source, id string) ([]string, error) {
	g, err := Build(src)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range g.Edges {
		var other string
		switch id {
		case e.Source:
			other = e.Target
		case e.Target:
			other = e.Source
		default:
			continue
		}
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	return out, nil
}

// Stats summarizes the graph: directed density and weakly connected
// component count.
func (g *Graph) Stats() *Stats {
	s := &Stats{Nodes: len(g.Nodes), Edges: len(g.Edges)}
	if s.Nodes > 1 {
		s.Density = float64(s.Edges) / float64(s.Nodes*(s.Nodes-1))
	}
	s.Components = g.componentCount()
	return s
}

func (g *Graph) componentCount() int {
	parent := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		parent[n.ID] = n.ID
	}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for _, e := range g.Edges {
		parent[find(e.Source)] = find(e.Target)
	}
	roots := make(map[string]bool)
	for _, n := range g.Nodes {
		roots[find(n.ID)] = true
	}
	return len(roots)
}

func addSemanticEdges(src Source, add func(Edge)) error {
	rows, err := src.AllEmbeddings()
	if err != nil {
		return fmt.Errorf("graph: load embeddings: %w", err)
	}
	type vec struct {
		id   string
		v    []float32
		norm float64
	}
	vecs := make([]vec, 0, len(rows))
	for _, r := range rows {
		n := norm(r.Vector)
		if n == 0 {
			continue
		}
		vecs = append(vecs, vec{id: r.NoteID, v: r.Vector, norm: n})
	}
	for i, a := range vecs {
		for _, b := range vecs[i+1:] {
			if len(a.v) != len(b.v) {
				continue
			}
			sim := dot(a.v, b.v) / (a.norm * b.norm)
			if sim > semanticThreshold {
				add(Edge{Source: a.id, Target: b.id, Type: EdgeSemantic, Weight: sim})
				add(Edge{Source: b.id, Target: a.id, Type: EdgeSemantic, Weight: sim})
			}
		}
	}
	return nil
}

func tagNames(tags []models.Tag) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Name)
	}
	return out
}

func tagSet(tags []models.Tag) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t.Name] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	var inter int
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
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
