package statement

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"comment between statements", "SELECT 1; -- comment; SELECT 2;", []string{"SELECT 1", "SELECT 2"}},
		{"single without terminator", "SELECT 1", []string{"SELECT 1"}},
		{"empty segments dropped", " ;; SELECT 1 ;\n;", []string{"SELECT 1"}},
		{"block comment with semicolon", "SELECT 1 /* a; b */; SELECT 2", []string{"SELECT 1", "SELECT 2"}},
		{"line comment to end of line", "SELECT 1 -- trailing\n; SELECT 2", []string{"SELECT 1", "SELECT 2"}},
		{"only comments", "-- nothing here\n/* still nothing */", nil},
		{"literal semicolon splits", "SELECT 'a;b'", []string{"SELECT 'a", "b'"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Split(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Split(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestStripComments(t *testing.T) {
	got := StripComments("SELECT /* DROP */ 1 -- TRUNCATE\nFROM t")
	if strings.Contains(got, "DROP") || strings.Contains(got, "TRUNCATE") {
		t.Errorf("comments survived: %q", got)
	}
	if !strings.Contains(got, "FROM t") {
		t.Errorf("code after line comment lost: %q", got)
	}
}

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		stmt string
		want bool
	}{
		{"SELECT 1", true},
		{"  select * from t", true},
		{"(SELECT 1) UNION ALL (SELECT 2)", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"/* hint */ SHOW TABLES", true},
		{"EXPLAIN SELECT 1", true},
		{"EXPLAIN PLAN SET STATEMENT_ID = 'a' FOR SELECT 1 FROM dual", false},
		{"INSERT INTO t VALUES (1)", false},
		{"INSERT INTO t VALUES (1) RETURNING id", true},
		{"UPDATE t SET a = 1", false},
		{"DELETE FROM t", false},
	}
	for _, tc := range tests {
		t.Run(tc.stmt, func(t *testing.T) {
			if got := ReturnsRows(tc.stmt); got != tc.want {
				t.Errorf("ReturnsRows(%q) = %v, want %v", tc.stmt, got, tc.want)
			}
		})
	}
}

func TestIsPlannable(t *testing.T) {
	tests := []struct {
		stmt string
		want bool
	}{
		{"SELECT 1", true},
		{"-- lead\nexplain select 1", true},
		{"WITH a AS (SELECT 1) SELECT * FROM a", true},
		{"WITH nothing", false},
		{"UPDATE t SET a = 1", false},
	}
	for _, tc := range tests {
		if got := IsPlannable(tc.stmt); got != tc.want {
			t.Errorf("IsPlannable(%q) = %v, want %v", tc.stmt, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 150)
	got := Truncate(long, EchoLimit)
	if len(got) != EchoLimit+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("unexpected truncation: %d chars", len(got))
	}
	if Truncate("short", EchoLimit) != "short" {
		t.Error("short text should be unchanged")
	}
	if Truncate("数据库查询", 2) != "数据..." {
		t.Error("truncation should count characters, not bytes")
	}
}

func TestLooksLikeQuery(t *testing.T) {
	if !LooksLikeQuery("select * from missing") {
		t.Error("select should count as query")
	}
	if LooksLikeQuery("UPDATE t SET a = 1") {
		t.Error("update should not count as query")
	}
}
