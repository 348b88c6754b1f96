package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"sql-console/internal/secret"
)

// Sealer protects secrets at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

type file struct {
	Databases []Profile `json:"databases"`
}

// legacyFile is the single-profile format written by older versions.
type legacyFile struct {
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     Port   `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// Store reads the profile file on every lookup and serializes
// read-modify-write cycles with a mutex.
type Store struct {
	mu   sync.Mutex
	path string
	box  Sealer
}

func NewStore(path string, box Sealer) *Store {
	return &Store{path: path, box: box}
}

func (s *Store) load() ([]Profile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if _, ok := probe["databases"]; ok {
		var f file
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse profiles: %w", err)
		}
		return f.Databases, nil
	}

	var legacy legacyFile
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("parse legacy profile: %w", err)
	}
	if legacy.Type == "" {
		legacy.Type = "postgresql"
	}
	slog.Info("Migrating single-profile config", "path", s.path)
	return []Profile{{
		ID:        "legacy_db",
		Name:      "Legacy database",
		Type:      legacy.Type,
		Host:      legacy.Host,
		Port:      legacy.Port,
		User:      legacy.User,
		Password:  legacy.Password,
		Database:  legacy.Database,
		IsDefault: true,
	}}, nil
}

func (s *Store) save(profiles []Profile) error {
	for i := range profiles {
		if !secret.NeedsReseal(profiles[i].Password) {
			continue
		}
		plain, err := s.box.Open(profiles[i].Password)
		if err != nil {
			return fmt.Errorf("open secret of %s: %w", profiles[i].ID, err)
		}
		if profiles[i].Password, err = s.box.Seal(plain); err != nil {
			return fmt.Errorf("seal secret of %s: %w", profiles[i].ID, err)
		}
	}
	if profiles == nil {
		profiles = []Profile{}
	}

	data, err := json.MarshalIndent(file{Databases: profiles}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".db_config-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write profiles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace profiles: %w", err)
	}
	return nil
}

// List returns every profile with secrets removed.
func (s *Store) List() ([]Profile, error) {
	profiles, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Profile, len(profiles))
	for i, p := range profiles {
		out[i] = p.Redacted()
	}
	return out, nil
}

// Get returns the profile with its secret opened.
func (s *Store) Get(id string) (*Profile, error) {
	profiles, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p.ID == id {
			return s.open(p)
		}
	}
	return nil, ErrNotFound
}

// Default returns the profile flagged as default, or the first profile when
// none is flagged.
func (s *Store) Default() (*Profile, error) {
	profiles, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}
	for _, p := range profiles {
		if p.IsDefault {
			return s.open(p)
		}
	}
	return s.open(profiles[0])
}

func (s *Store) open(p Profile) (*Profile, error) {
	plain, err := s.box.Open(p.Password)
	if err != nil {
		return nil, fmt.Errorf("open secret of %s: %w", p.ID, err)
	}
	p.Password = plain
	return &p, nil
}

// Create validates and appends a profile with a fresh id. The clear secret
// in p is sealed before it is written.
func (s *Store) Create(p Profile) (*Profile, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return nil, err
	}
	p.ID = uuid.NewString()
	if p.Password, err = s.box.Seal(p.Password); err != nil {
		return nil, err
	}
	profiles = append(profiles, p)
	normalizeDefault(profiles, p.ID, p.IsDefault)
	if err := s.save(profiles); err != nil {
		return nil, err
	}
	created := p.Redacted()
	return &created, nil
}

// Update replaces the profile with id. A blank secret keeps the stored one.
func (s *Store) Update(id string, p Profile) (*Profile, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return nil, err
	}
	idx := indexOf(profiles, id)
	if idx == -1 {
		return nil, ErrNotFound
	}
	p.ID = id
	if p.Password == "" {
		p.Password = profiles[idx].Password
	} else if p.Password, err = s.box.Seal(p.Password); err != nil {
		return nil, err
	}
	profiles[idx] = p
	normalizeDefault(profiles, id, p.IsDefault)
	if err := s.save(profiles); err != nil {
		return nil, err
	}
	updated := p.Redacted()
	return &updated, nil
}

// Delete removes a profile. Deleting the default promotes the first remaining one.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return err
	}
	idx := indexOf(profiles, id)
	if idx == -1 {
		return ErrNotFound
	}
	wasDefault := profiles[idx].IsDefault
	profiles = append(profiles[:idx], profiles[idx+1:]...)
	if wasDefault && len(profiles) > 0 {
		profiles[0].IsDefault = true
	}
	return s.save(profiles)
}

// SetDefault flags id as the only default.
func (s *Store) SetDefault(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return err
	}
	if indexOf(profiles, id) == -1 {
		return ErrNotFound
	}
	normalizeDefault(profiles, id, true)
	return s.save(profiles)
}

// normalizeDefault leaves at most one default. When id is claimed as default
// every other flag is cleared; otherwise only the first flag survives.
func normalizeDefault(profiles []Profile, id string, claim bool) {
	seen := false
	for i := range profiles {
		switch {
		case claim:
			profiles[i].IsDefault = profiles[i].ID == id
		case profiles[i].IsDefault && seen:
			profiles[i].IsDefault = false
		case profiles[i].IsDefault:
			seen = true
		}
	}
}

func indexOf(profiles []Profile, id string) int {
	for i, p := range profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}
