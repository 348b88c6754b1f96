package profile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sql-console/internal/secret"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	box, err := secret.NewBox(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "db_config.json")
	return NewStore(path, box), path
}

func sample(name string) Profile {
	return Profile{
		Name: name, Type: "postgresql", Host: "localhost", Port: "5432",
		User: "app", Password: "pw-" + name, Database: "app",
	}
}

func TestStore_MissingFile(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Default(); !errors.Is(err, ErrNoProfiles) {
		t.Errorf("expected ErrNoProfiles, got %v", err)
	}
	if _, err := s.Get("x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_CreateSealsSecret(t *testing.T) {
	s, path := newTestStore(t)
	created, err := s.Create(sample("a"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == "" || created.Password != "" {
		t.Errorf("expected id and redacted secret, got %+v", created)
	}

	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "pw-a") || !strings.Contains(string(raw), `"password": "v2:`) {
		t.Errorf("secret not sealed on disk: %s", raw)
	}

	got, err := s.Get(created.ID)
	if err != nil || got.Password != "pw-a" {
		t.Errorf("Get should open the secret, got %+v %v", got, err)
	}
}

func TestStore_SingleDefault(t *testing.T) {
	s, _ := newTestStore(t)
	a, _ := s.Create(sample("a"))
	bp := sample("b")
	bp.IsDefault = true
	b, _ := s.Create(bp)
	c, _ := s.Create(sample("c"))

	def, err := s.Default()
	if err != nil || def.ID != b.ID {
		t.Fatalf("expected b as default, got %+v %v", def, err)
	}

	if err := s.SetDefault(c.ID); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	list, _ := s.List()
	defaults := 0
	for _, p := range list {
		if p.IsDefault {
			defaults++
			if p.ID != c.ID {
				t.Errorf("unexpected default %s", p.Name)
			}
		}
		if p.Password != "" {
			t.Error("List must not return secrets")
		}
	}
	if defaults != 1 {
		t.Errorf("expected exactly one default, got %d", defaults)
	}

	if err := s.Delete(c.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	def, _ = s.Default()
	if def.ID != a.ID || !def.IsDefault {
		t.Errorf("deleting the default should promote the first profile, got %+v", def)
	}
}

func TestStore_DefaultFallsBackToFirst(t *testing.T) {
	s, _ := newTestStore(t)
	a, _ := s.Create(sample("a"))
	s.Create(sample("b"))
	def, err := s.Default()
	if err != nil || def.ID != a.ID {
		t.Errorf("expected first profile, got %+v %v", def, err)
	}
}

func TestStore_UpdateKeepsBlankSecret(t *testing.T) {
	s, _ := newTestStore(t)
	a, _ := s.Create(sample("a"))

	edit := sample("renamed")
	edit.Password = ""
	if _, err := s.Update(a.ID, edit); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ := s.Get(a.ID)
	if got.Name != "renamed" || got.Password != "pw-a" {
		t.Errorf("unexpected profile after update: %+v", got)
	}
	if _, err := s.Update("missing", edit); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
		want   string
	}{
		{"ok", func(*Profile) {}, ""},
		{"missing fields", func(p *Profile) { p.Host = ""; p.Name = " " }, "missing name, host"},
		{"bad type", func(p *Profile) { p.Type = "sqlserver" }, "unsupported database type"},
		{"bad port", func(p *Profile) { p.Port = "70000" }, "port must be"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := sample("a")
			tc.mutate(&p)
			err := Validate(p)
			if tc.want == "" {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidProfile) || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected %q, got %v", tc.want, err)
			}
		})
	}
}

func TestStore_LegacyMigration(t *testing.T) {
	s, path := newTestStore(t)
	legacy := `{"host":"10.0.0.5","port":5432,"user":"old","password":"plain","database":"legacy"}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	def, err := s.Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if def.ID != "legacy_db" || def.Type != "postgresql" || def.Port != "5432" || def.Password != "plain" {
		t.Errorf("unexpected migrated profile %+v", def)
	}

	if err := s.SetDefault("legacy_db"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), `"databases"`) || strings.Contains(string(raw), `"plain"`) {
		t.Errorf("write should store the new format with a sealed secret: %s", raw)
	}
	got, _ := s.Get("legacy_db")
	if got.Password != "plain" {
		t.Errorf("resealed secret should still open, got %q", got.Password)
	}
}

func TestProfileTarget(t *testing.T) {
	p := sample("a")
	target, err := p.Target()
	if err != nil {
		t.Fatal(err)
	}
	if target.Port != 5432 || target.Password != "pw-a" {
		t.Errorf("unexpected target %+v", target)
	}
}
