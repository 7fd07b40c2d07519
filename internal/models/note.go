// Package models defines the domain types for Monoid.
package models

import "time"

// NoteType classifies a note by how it was produced.
type NoteType string

const (
	TypeNote      NoteType = "note"
	TypeSummary   NoteType = "summary"
	TypeSynthesis NoteType = "synthesis"
	TypeQuiz      NoteType = "quiz"
	TypeTemplate  NoteType = "template"
)

// Valid reports whether t is one of the known note types.
func (t NoteType) Valid() bool {
	switch t {
	case TypeNote, TypeSummary, TypeSynthesis, TypeQuiz, TypeTemplate:
		return true
	}
	return false
}

// Tag sources.
const (
	TagSourceUser = "user"
	TagSourceAI   = "ai"
)

// Tag is a named label on a note. Identity is (Name, Source).
// User tags always carry confidence 1.0; AI tags carry the model's
// confidence and may be hidden below a display threshold.
type Tag struct {
	Name       string  `json:"name" yaml:"name"`
	Source     string  `json:"source" yaml:"source"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// UserTag builds a user-sourced tag with full confidence.
func UserTag(name string) Tag {
	return Tag{Name: name, Source: TagSourceUser, Confidence: 1.0}
}

// Note represents a single Markdown note in the vault.
// ID is timestamp-derived and therefore sorts lexicographically by
// creation order; it never changes after construction.
type Note struct {
	ID         string    `json:"id"`
	Type       NoteType  `json:"type"`
	Title      string    `json:"title,omitempty"`
	Tags       []Tag     `json:"tags,omitempty"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated,omitempty"`
	Links      []string  `json:"links,omitempty"`
	Provenance string    `json:"provenance,omitempty"`
	Content    string    `json:"content"`
}

// TagNames returns the plain names of all tags in order.
func (n *Note) TagNames() []string {
	out := make([]string, len(n.Tags))
	for i, t := range n.Tags {
		out[i] = t.Name
	}
	return out
}

// VisibleTags filters AI tags below the confidence threshold.
// User tags are always visible.
func (n *Note) VisibleTags(threshold float64) []Tag {
	out := make([]Tag, 0, len(n.Tags))
	for _, t := range n.Tags {
		if t.Source == TagSourceAI && t.Confidence < threshold {
			continue
		}
		out = append(out, t)
	}
	return out
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	ID        string    `json:"id"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link represents a directed edge between two notes.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"` // "explicit", "related", "derivative", or "semantic"
}
