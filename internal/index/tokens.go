package index

import (
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`[\pL\pN_]+`)

// Tokenize splits free text into word tokens, discarding punctuation.
// Used to build deliberately permissive OR match expressions: recall over
// precision, because lexical search doubles as context retrieval.
func Tokenize(query string) []string {
	return tokenRe.FindAllString(query, -1)
}

// matchExpr builds a disjunctive FTS5 match expression from tokens.
// Each token is quoted so that bare keywords (AND, OR, NEAR) and
// punctuation in user input cannot change the query structure.
func matchExpr(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, ``) + `"`
	}
	return strings.Join(quoted, " OR ")
}
