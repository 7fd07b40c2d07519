//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; lexical search scans the notes table directly.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _, _ string) error {
	// Title, body, and tags already live in the notes table.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

func ftsClear(_ *sql.Tx) error { return nil }

// SearchLexical is the LIKE-based fallback used when FTS5 is not
// compiled in. The rank is the negated token occurrence count so the
// "lower raw score means better match" property still holds.
func (db *DB) SearchLexical(query string, limit int) ([]LexicalHit, error) {
	if limit <= 0 {
		limit = 20
	}
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	conds := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)*3)
	for _, tok := range tokens {
		like := "%" + tok + "%"
		conds = append(conds, `(title LIKE ? OR body LIKE ? OR tags LIKE ?)`)
		args = append(args, like, like, like)
	}

	rows, err := db.conn.Query(`
		SELECT id, title, body, tags
		FROM notes
		WHERE `+strings.Join(conds, " OR "), args...)
	if err != nil {
		return nil, fmt.Errorf("index: lexical search: %w", err)
	}
	defer rows.Close()

	var out []LexicalHit
	for rows.Next() {
		var id, title, body, tags string
		if err := rows.Scan(&id, &title, &body, &tags); err != nil {
			return nil, err
		}
		hits := 0
		lowerTitle := strings.ToLower(title)
		lowerBody := strings.ToLower(body)
		lowerTags := strings.ToLower(tags)
		first := -1
		for _, tok := range tokens {
			lt := strings.ToLower(tok)
			hits += strings.Count(lowerBody, lt) + strings.Count(lowerTitle, lt) + strings.Count(lowerTags, lt)
			if idx := strings.Index(lowerBody, lt); idx >= 0 && (first < 0 || idx < first) {
				first = idx
			}
		}
		out = append(out, LexicalHit{
			ID:      id,
			Title:   title,
			Snippet: excerpt(body, first),
			Rank:    -float64(hits),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Best match first: rank ascending (most negative first), ties by id
	// descending for determinism.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// excerpt returns a bounded window of body around offset. Approximate by
// design; display only.
func excerpt(body string, offset int) string {
	const window = 128
	if offset < 0 {
		offset = 0
	}
	start := offset - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(body) {
		end = len(body)
	}
	s := strings.ReplaceAll(body[start:end], "\n", " ")
	if start > 0 {
		s = "..." + s
	}
	if end < len(body) {
		s += "..."
	}
	return s
}
