package security

import (
	"errors"
	"strings"
	"testing"
)

func TestClassify_BlockedKeywords(t *testing.T) {
	blockedQueries := []struct {
		query       string
		shouldBlock string
	}{
		{"DROP TABLE users", "DROP"},
		{"drop table users", "DROP"},
		{"TRUNCATE users", "TRUNCATE"},
		{"ALTER TABLE users ADD c int", "ALTER"},
		{"CREATE TABLE t (id int)", "CREATE"},
		{"RENAME TABLE a TO b", "RENAME"},
		{"GRANT SELECT ON t TO bob", "GRANT"},
		{"REVOKE SELECT ON t FROM bob", "REVOKE"},
		{"LOCK TABLES t WRITE", "LOCK"},
		{"SHUTDOWN", "SHUTDOWN"},
		{"SELECT 1;DROP TABLE x", "DROP"},
		{"SELECT (DROP)", "DROP"},
		{"/* c */ DROP /* c */ TABLE t", "DROP"},
	}
	for _, tc := range blockedQueries {
		t.Run(tc.query, func(t *testing.T) {
			err := Classify(tc.query)
			if err == nil {
				t.Fatalf("Expected query to be blocked for %s, but it was allowed", tc.shouldBlock)
			}
			var rej *Rejection
			if !errors.As(err, &rej) || rej.Detail != tc.shouldBlock {
				t.Errorf("Expected rejection detail %s, got %v", tc.shouldBlock, err)
			}
			if !errors.Is(err, ErrUnsafeQuery) {
				t.Errorf("Expected error to wrap ErrUnsafeQuery")
			}
		})
	}
}

func TestClassify_KeywordsInsideComments(t *testing.T) {
	allowedQueries := []string{
		"SELECT 1 /* DROP TABLE users */",
		"SELECT 1 -- TRUNCATE everything",
		"/* ALTER\nCREATE\nGRANT */ SELECT name FROM t",
		"SELECT a -- lock\nFROM t",
	}
	for _, q := range allowedQueries {
		t.Run(q, func(t *testing.T) {
			if err := Classify(q); err != nil {
				t.Errorf("Expected query to be allowed, got %v", err)
			}
		})
	}
}

func TestClassify_WordBoundaries(t *testing.T) {
	allowedQueries := []string{
		"SELECT is_dropped FROM t",
		"SELECT created_at, updated_at FROM t",
		"UPDATE accounts SET locked = 0 WHERE id = 1",
		"SELECT * FROM lockers",
		"INSERT INTO audit (action) VALUES ('x')",
	}
	for _, q := range allowedQueries {
		t.Run(q, func(t *testing.T) {
			if err := Classify(q); err != nil {
				t.Errorf("Expected query to be allowed, got %v", err)
			}
		})
	}
}

func TestClassify_InjectionPatterns(t *testing.T) {
	blocked := []string{
		"SELECT a FROM t UNION SELECT password FROM users",
		"SELECT * FROM t WHERE name = 'x' OR 1=1",
		"SELECT * FROM t WHERE id = 5 or 2 = 2",
		"exec(@sql);",
		"SELECT xp_cmdshell;",
	}
	for _, q := range blocked {
		t.Run(q, func(t *testing.T) {
			err := Classify(q)
			var rej *Rejection
			if !errors.As(err, &rej) || rej.Rule != "injection" {
				t.Errorf("Expected injection rejection, got %v", err)
			}
		})
	}
}

func TestScreen(t *testing.T) {
	tests := []struct {
		sql     string
		wantErr bool
	}{
		{"SELECT 1", false},
		{"DROP TABLE users", true},
		{"truncate   table users", true},
		{"DROP DATABASE prod", true},
		{"DROP INDEX idx_a", false},
		{"drop view v", false},
		{"BACKUP DATABASE prod TO disk", true},
		{"SELECT 1; shutdown", true},
		{"GRANT ALL TO bob", true},
		{"REVOKE ALL FROM bob", true},
		{"SELECT * FROM t WHERE a LIKE 'sp_%'; SELECT 2", false},
	}
	for _, tc := range tests {
		t.Run(tc.sql, func(t *testing.T) {
			err := Screen(tc.sql, 10000)
			if (err != nil) != tc.wantErr {
				t.Errorf("Screen(%q) error = %v, wantErr %v", tc.sql, err, tc.wantErr)
			}
		})
	}
}

func TestScreen_LengthAndEmpty(t *testing.T) {
	if err := Screen("   ", 100); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
	if err := Screen(strings.Repeat("a", 101), 100); !errors.Is(err, ErrQueryLength) {
		t.Errorf("expected ErrQueryLength, got %v", err)
	}
	if err := Screen(strings.Repeat("a", 100), 100); err != nil {
		t.Errorf("expected bound to be inclusive, got %v", err)
	}
}
