// Package snippet keeps the saved ("common") SQL statements offered in the
// console sidebar.
package snippet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("saved sql not found")
	ErrInvalid  = errors.New("title and sql must not be empty")
)

type Snippet struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	SQL   string `json:"sql"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func defaults() []Snippet {
	return []Snippet{{ID: uuid.NewString(), Title: "Server version", SQL: "select version();"}}
}

type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// List returns the saved statements. A missing file is seeded with defaults.
func (s *Store) List() ([]Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]Snippet, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		seeded := defaults()
		if err := s.write(seeded); err != nil {
			return nil, err
		}
		return seeded, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read saved sql: %w", err)
	}
	var list []Snippet
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse saved sql: %w", err)
	}
	return list, nil
}

func (s *Store) write(list []Snippet) error {
	if list == nil {
		list = []Snippet{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode saved sql: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create saved sql directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write saved sql: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Save creates a snippet when sn.ID is empty and updates it otherwise.
func (s *Store) Save(sn Snippet) (Snippet, error) {
	sn.Title = strings.TrimSpace(sn.Title)
	sn.SQL = strings.TrimSpace(sn.SQL)
	if sn.Title == "" || sn.SQL == "" {
		return Snippet{}, ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return Snippet{}, err
	}

	sn.UpdatedAt = s.now().UTC()
	if sn.ID == "" {
		sn.ID = uuid.NewString()
		sn.CreatedAt = sn.UpdatedAt
		list = append(list, sn)
	} else {
		found := false
		for i := range list {
			if list[i].ID == sn.ID {
				sn.CreatedAt = list[i].CreatedAt
				list[i] = sn
				found = true
				break
			}
		}
		if !found {
			return Snippet{}, ErrNotFound
		}
	}
	return sn, s.write(list)
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, sn := range list {
		if sn.ID != id {
			kept = append(kept, sn)
		}
	}
	if len(kept) == len(list) {
		return ErrNotFound
	}
	return s.write(kept)
}

// Import replaces the whole list. Entries without an id get one.
func (s *Store) Import(list []Snippet) (int, error) {
	for i := range list {
		if list[i].ID == "" {
			list[i].ID = uuid.NewString()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(list), s.write(list)
}

// Export returns the stored file as written. It fails with fs.ErrNotExist
// when nothing has been saved yet.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("export saved sql: %w", err)
	}
	return data, nil
}
