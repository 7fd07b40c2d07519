// Package parser converts between raw Markdown bytes and domain notes:
// YAML frontmatter to typed metadata, wikilink extraction, and
// serialization back to the canonical note format.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/monoid/internal/models"
)

var wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// frontmatter is the YAML shape of a note header. Tags are decoded
// leniently: plain strings (legacy user tags) and {name,source,confidence}
// maps are both accepted, and legacy ai_tags are merged into tags.
type frontmatter struct {
	ID         string    `yaml:"id"`
	Type       string    `yaml:"type,omitempty"`
	Title      string    `yaml:"title,omitempty"`
	Tags       []yamlTag `yaml:"tags,omitempty"`
	AITags     []yamlTag `yaml:"ai_tags,omitempty"`
	Created    string    `yaml:"created,omitempty"`
	Updated    string    `yaml:"updated,omitempty"`
	Links      []string  `yaml:"links,omitempty"`
	Provenance string    `yaml:"provenance,omitempty"`
}

// yamlTag accepts either a bare string or a mapping.
type yamlTag struct {
	tag models.Tag
}

func (t *yamlTag) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}
		t.tag = models.UserTag(name)
		return nil
	case yaml.MappingNode:
		var m struct {
			Name       string  `yaml:"name"`
			Source     string  `yaml:"source"`
			Confidence float64 `yaml:"confidence"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		if m.Source == "" {
			m.Source = models.TagSourceUser
		}
		if m.Confidence == 0 && m.Source == models.TagSourceUser {
			m.Confidence = 1.0
		}
		t.tag = models.Tag{Name: m.Name, Source: m.Source, Confidence: m.Confidence}
		return nil
	default:
		return fmt.Errorf("parser: unsupported tag node kind %d", node.Kind)
	}
}

// Parse decodes raw Markdown bytes into a Note. The frontmatter must at
// minimum carry an id; everything else has defaults. Wikilinks found in the
// body are merged with explicit frontmatter links.
func Parse(data []byte) (*models.Note, error) {
	fmBlock, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	if fmBlock == nil {
		return nil, fmt.Errorf("parser: missing frontmatter")
	}

	var fm frontmatter
	if err := yaml.Unmarshal(fmBlock, &fm); err != nil {
		return nil, fmt.Errorf("parser: decode frontmatter: %w", err)
	}
	if fm.ID == "" {
		return nil, fmt.Errorf("parser: frontmatter has no id")
	}

	nt := models.NoteType(fm.Type)
	if fm.Type == "" {
		nt = models.TypeNote
	}
	if !nt.Valid() {
		return nil, fmt.Errorf("parser: unknown note type %q", fm.Type)
	}

	tags := make([]models.Tag, 0, len(fm.Tags)+len(fm.AITags))
	seen := make(map[[2]string]struct{})
	for _, yt := range append(fm.Tags, fm.AITags...) {
		if yt.tag.Name == "" {
			continue
		}
		key := [2]string{yt.tag.Name, yt.tag.Source}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, yt.tag)
	}

	created, err := parseTime(fm.Created)
	if err != nil {
		return nil, fmt.Errorf("parser: created: %w", err)
	}
	updated, err := parseTime(fm.Updated)
	if err != nil {
		return nil, fmt.Errorf("parser: updated: %w", err)
	}

	links := mergeLinks(fm.Links, ExtractLinks(body))

	return &models.Note{
		ID:         fm.ID,
		Type:       nt,
		Title:      fm.Title,
		Tags:       tags,
		Created:    created,
		Updated:    updated,
		Links:      links,
		Provenance: fm.Provenance,
		Content:    body,
	}, nil
}

// Serialize renders a note back to frontmatter Markdown. The output
// round-trips through Parse: tags are always written in the full mapping
// form, times in RFC 3339.
func Serialize(n *models.Note) ([]byte, error) {
	fm := map[string]any{
		"id":   n.ID,
		"type": string(n.Type),
	}
	if n.Title != "" {
		fm["title"] = n.Title
	}
	if len(n.Tags) > 0 {
		tags := make([]map[string]any, len(n.Tags))
		for i, t := range n.Tags {
			tags[i] = map[string]any{
				"name":       t.Name,
				"source":     t.Source,
				"confidence": t.Confidence,
			}
		}
		fm["tags"] = tags
	}
	if !n.Created.IsZero() {
		fm["created"] = n.Created.Format(timeLayout)
	}
	if !n.Updated.IsZero() {
		fm["updated"] = n.Updated.Format(timeLayout)
	}
	if len(n.Links) > 0 {
		fm["links"] = n.Links
	}
	if n.Provenance != "" {
		fm["provenance"] = n.Provenance
	}

	head, err := marshalOrdered(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n")
	buf.WriteString(n.Content)
	if !strings.HasSuffix(n.Content, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// marshalOrdered emits the frontmatter as one YAML mapping with keys in a
// stable order so that serializing the same note twice yields identical
// bytes. The keys must form a single document; encoding them separately
// would interleave document separators into the header.
func marshalOrdered(fm map[string]any) ([]byte, error) {
	order := []string{"id", "type", "title", "tags", "created", "updated", "links", "provenance"}
	keys := make([]string, 0, len(fm))
	known := make(map[string]struct{}, len(order))
	for _, k := range order {
		known[k] = struct{}{}
		if _, ok := fm[k]; ok {
			keys = append(keys, k)
		}
	}
	var extra []string
	for k := range fm {
		if _, ok := known[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	keys = append(keys, extra...)

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		var val yaml.Node
		if err := val.Encode(fm[k]); err != nil {
			return nil, err
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&val,
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExtractLinks returns deduplicated wikilink targets from a Markdown body,
// normalising [[Target|Alias]] to Target.
func ExtractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

func mergeLinks(explicit, extracted []string) []string {
	seen := make(map[string]struct{}, len(explicit)+len(extracted))
	var out []string
	for _, l := range append(append([]string{}, explicit...), extracted...) {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// splitFrontmatter separates the YAML block between leading --- delimiters
// from the Markdown body. Returns a nil frontmatter block when the document
// has none.
func splitFrontmatter(data []byte) ([]byte, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")
	return yamlBlock, body, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{timeLayout, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
