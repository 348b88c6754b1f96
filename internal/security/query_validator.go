package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"sql-console/internal/statement"
)

var (
	ErrUnsafeQuery = errors.New("unsafe query detected")
	ErrEmptyQuery  = errors.New("sql statement is empty")
	ErrQueryLength = errors.New("sql statement exceeds maximum length")
)

// Rejection names the rule a statement tripped. It unwraps to ErrUnsafeQuery.
type Rejection struct {
	// Rule is a short category: "keyword", "injection" or "screen".
	Rule string
	// Detail is the offending keyword or pattern description.
	Detail string
}

func (r *Rejection) Error() string {
	switch r.Rule {
	case "keyword":
		return fmt.Sprintf("statement contains a forbidden keyword: %s", r.Detail)
	case "injection":
		return fmt.Sprintf("statement matches an injection pattern: %s", r.Detail)
	default:
		return fmt.Sprintf("statement rejected: %s", r.Detail)
	}
}

func (r *Rejection) Unwrap() error { return ErrUnsafeQuery }

// forbiddenKeywords are rejected as standalone words once comments are gone.
var forbiddenKeywords = []string{
	"DROP", "TRUNCATE", "ALTER", "CREATE", "RENAME", "GRANT", "REVOKE", "LOCK", "SHUTDOWN",
}

type namedPattern struct {
	name string
	re   *regexp.Regexp
}

// injectionPatterns run on the statement as submitted, comments included.
var injectionPatterns = []namedPattern{
	{"UNION ... SELECT", regexp.MustCompile(`(?i)\bUNION\b.*\bSELECT\b`)},
	{"OR <n> = <n>", regexp.MustCompile(`(?i)\bOR\b\s+\d+\s*=\s*\d+`)},
	{"dynamic exec", regexp.MustCompile(`(?i)(exec\s*\(|execute\s+\(|sp_|xp_)\s*[^']*;`)},
}

// Classify is the last gate before a statement reaches a driver. A nil
// return means the statement is allowed.
func Classify(stmt string) error {
	stripped := strings.ToUpper(statement.StripComments(stmt))
	for _, kw := range forbiddenKeywords {
		if containsWord(stripped, kw) {
			return &Rejection{Rule: "keyword", Detail: kw}
		}
	}
	for _, p := range injectionPatterns {
		if p.re.MatchString(stmt) {
			return &Rejection{Rule: "injection", Detail: p.name}
		}
	}
	return nil
}

var (
	screenPatterns = []namedPattern{
		{"DROP/TRUNCATE TABLE", regexp.MustCompile(`(?i)\b(drop\s+table|truncate\s+table)\b`)},
		{"SHUTDOWN/BACKUP/RESTORE", regexp.MustCompile(`(?i)\b(shutdown|backup\s+database|restore\s+database)\b`)},
		{"dynamic exec", regexp.MustCompile(`(?i)(exec\s*\(|execute\s+\(|sp_|xp_)[^']*;`)},
		{"GRANT/REVOKE", regexp.MustCompile(`(?i)\b(grant\s+\w+\s+to|revoke\s+\w+\s+from)\b`)},
	}
	dropObject = regexp.MustCompile(`(?i)\bdrop\s+(\w+)\b`)

	// Dropping these object kinds is left to the classifier.
	droppableObjects = map[string]bool{
		"index": true, "procedure": true, "view": true, "trigger": true, "function": true,
	}
)

// Screen is the broad request-level filter applied to a whole submission
// before it is split. It also enforces the length bound.
func Screen(sql string, maxLength int) error {
	if strings.TrimSpace(sql) == "" {
		return ErrEmptyQuery
	}
	if maxLength > 0 && len([]rune(sql)) > maxLength {
		return fmt.Errorf("%w (%d characters)", ErrQueryLength, maxLength)
	}
	for _, p := range screenPatterns {
		if p.re.MatchString(sql) {
			return &Rejection{Rule: "screen", Detail: p.name}
		}
	}
	for _, m := range dropObject.FindAllStringSubmatch(sql, -1) {
		if !droppableObjects[strings.ToLower(m[1])] {
			return &Rejection{Rule: "screen", Detail: "DROP " + strings.ToUpper(m[1])}
		}
	}
	return nil
}

// containsWord checks if the word exists in s as a standalone word.
// It assumes s is already uppercase.
func containsWord(s, word string) bool {
	if !strings.Contains(s, word) {
		return false
	}
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i == -1 {
			return false
		}
		start := idx + i
		end := start + len(word)

		isStartValid := start == 0 || !isWordByte(s[start-1])
		isEndValid := end == len(s) || !isWordByte(s[end])
		if isStartValid && isEndValid {
			return true
		}
		idx = start + 1
	}
}

// isWordByte matches the regexp \w class, so "IS_DROPPED" and "DROP2" do
// not count as DROP.
func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z'
}
