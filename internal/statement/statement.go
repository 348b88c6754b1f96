// Package statement holds the text-level helpers shared by the classifier,
// the engine and the plan translator: comment stripping, splitting a
// submission into statements and recognizing what kind of statement a text is.
package statement

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// EchoLimit is the length of the statement echo attached to batch outcomes.
const EchoLimit = 100

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`--[^\n]*`)

	// Splitting treats a line comment as ending at the first semicolon or
	// newline, so "SELECT 1; -- note; SELECT 2;" keeps its second statement.
	splitLineComment = regexp.MustCompile(`--[^;\n]*`)
)

// StripComments removes /* */ block comments and -- line comments.
func StripComments(sql string) string {
	sql = blockComment.ReplaceAllString(sql, " ")
	return lineComment.ReplaceAllString(sql, "")
}

// Split breaks a raw submission into ordered, trimmed, non-empty statements.
// Semicolons inside string literals are not recognized and will split.
func Split(raw string) []string {
	text := blockComment.ReplaceAllString(raw, " ")
	text = splitLineComment.ReplaceAllString(text, "")

	var out []string
	for _, part := range strings.Split(text, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LeadingKeyword returns the first word of the statement in upper case,
// ignoring comments and opening parentheses.
func LeadingKeyword(stmt string) string {
	s := strings.TrimLeft(strings.TrimSpace(StripComments(stmt)), "( \t\r\n")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end == -1 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

var returningClause = regexp.MustCompile(`(?i)\bRETURNING\b`)

// ReturnsRows reports whether the statement should be sent through a
// row-returning call. The final query/mutation decision is still made on the
// column metadata the driver reports.
func ReturnsRows(stmt string) bool {
	switch LeadingKeyword(stmt) {
	case "SELECT", "WITH", "SHOW", "DESC", "DESCRIBE", "VALUES", "TABLE", "PRAGMA":
		return true
	case "EXPLAIN":
		// EXPLAIN PLAN FOR writes into the plan table and returns nothing.
		fields := strings.Fields(strings.ToUpper(StripComments(stmt)))
		return !(len(fields) > 1 && fields[1] == "PLAN")
	}
	return returningClause.MatchString(StripComments(stmt))
}

// LooksLikeQuery is the batch continuation rule: a failed statement mentioning
// SELECT or EXPLAIN anywhere does not stop the batch.
func LooksLikeQuery(stmt string) bool {
	upper := strings.ToUpper(stmt)
	return strings.Contains(upper, "SELECT") || strings.Contains(upper, "EXPLAIN")
}

// IsPlannable reports whether a plan can be requested for the statement:
// it must start with SELECT or EXPLAIN, or be a WITH ... SELECT.
func IsPlannable(stmt string) bool {
	upper := strings.ToUpper(strings.TrimSpace(StripComments(stmt)))
	switch {
	case strings.HasPrefix(upper, "SELECT"), strings.HasPrefix(upper, "EXPLAIN"):
		return true
	case strings.HasPrefix(upper, "WITH"):
		return strings.Contains(upper, "SELECT")
	}
	return false
}

// TrimTerminator drops trailing semicolons and whitespace.
func TrimTerminator(stmt string) string {
	return strings.TrimRight(strings.TrimSpace(stmt), "; \t\r\n")
}

// Truncate shortens s to at most n characters, appending "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
