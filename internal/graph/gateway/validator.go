package gateway

import "regexp"

// The validator is a denylist plus two structural checks, not a Cypher
// parser. It guarantees the obvious write clauses never execute; it does not
// prove a query is semantically read-only, and it does not verify that the
// injected scoping parameters are actually used (a documented trust boundary
// handled at the prompting layer).
var (
	writeClausePattern = regexp.MustCompile(`(?i)\b(create|merge|set|delete|remove|drop|detach|foreach)\b`)
	matchPattern       = regexp.MustCompile(`(?i)\bmatch\b`)
	returnPattern      = regexp.MustCompile(`(?i)\breturn\b`)
	limitPattern       = regexp.MustCompile(`(?i)\blimit\b`)
)

// Validate checks an agent-authored query. It returns an empty string when
// the query may execute, otherwise the rejection reason. Checks run in
// order and the first failure wins; a rejected query is never partially
// executed.
func Validate(query string) string {
	if query == "" {
		return "query is empty"
	}
	if m := writeClausePattern.FindString(query); m != "" {
		return "query contains write clause: " + m
	}
	if !matchPattern.MatchString(query) {
		return "query must contain a MATCH clause"
	}
	if !returnPattern.MatchString(query) {
		return "query must contain a RETURN clause"
	}
	return ""
}

// hasLimit reports whether the author supplied an explicit limit clause.
func hasLimit(query string) bool {
	return limitPattern.MatchString(query)
}
