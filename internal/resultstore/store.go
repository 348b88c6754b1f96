// Package resultstore buffers full result sets under opaque handles so that
// later page requests and exports can read them without re-running the query.
package resultstore

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown and expired handles.
var ErrNotFound = errors.New("query result not found or expired; re-run the query")

// Handle is a stored result. Its columns and rows are never modified after
// Put; readers must not modify them either.
type Handle struct {
	ID        string
	Columns   []string
	Rows      [][]any
	Truncated bool
	CreatedAt time.Time
}

// Age is how long the handle has existed at now.
func (h *Handle) Age(now time.Time) time.Duration {
	return now.Sub(h.CreatedAt)
}

// Store is the contract shared by the engine (writer) and exporters (readers).
type Store interface {
	Put(columns []string, rows [][]any, truncated bool) string
	Get(id string) (*Handle, error)
	Delete(id string)
	SweepExpired(now time.Time, ttl time.Duration) int
}

// Memory is a process-lifetime Store. Expired entries are removed lazily on
// Get and in bulk by SweepExpired.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Handle
	ttl     func() time.Duration
	now     func() time.Time
}

// NewMemory creates a store whose lazy expiry reads the current TTL from ttl,
// so settings changes take effect without a restart.
func NewMemory(ttl func() time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]*Handle),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Put(columns []string, rows [][]any, truncated bool) string {
	h := &Handle{
		ID:        uuid.NewString(),
		Columns:   columns,
		Rows:      rows,
		Truncated: truncated,
		CreatedAt: m.now(),
	}
	m.mu.Lock()
	m.entries[h.ID] = h
	m.mu.Unlock()
	return h.ID
}

func (m *Memory) Get(id string) (*Handle, error) {
	m.mu.RLock()
	h, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if ttl := m.ttl(); ttl > 0 && h.Age(m.now()) > ttl {
		m.Delete(id)
		return nil, ErrNotFound
	}
	return h, nil
}

func (m *Memory) Delete(id string) {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}

// SweepExpired removes every entry older than ttl and returns how many went.
// Readers holding a *Handle keep a valid value; only the map entry goes.
func (m *Memory) SweepExpired(now time.Time, ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, h := range m.entries {
		if h.Age(now) > ttl {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored handles.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
