package resultstore

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func newTestStore(now *time.Time, ttl time.Duration) *Memory {
	m := NewMemory(func() time.Duration { return ttl })
	m.now = func() time.Time { return *now }
	return m
}

func TestPutGetRoundTrip(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newTestStore(&now, time.Hour)

	columns := []string{"id", "name"}
	rows := [][]any{{int64(1), "a"}, {int64(2), nil}}
	id := m.Put(columns, rows, false)

	h, err := m.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !reflect.DeepEqual(h.Columns, columns) || !reflect.DeepEqual(h.Rows, rows) {
		t.Errorf("round trip mismatch: %+v", h)
	}
	if h.Age(now) != 0 {
		t.Errorf("expected zero age, got %v", h.Age(now))
	}
}

func TestGetUnknown(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newTestStore(&now, time.Hour)
	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newTestStore(&now, 0)

	old := m.Put([]string{"a"}, [][]any{{1}}, false)
	now = now.Add(30 * time.Minute)
	fresh := m.Put([]string{"a"}, [][]any{{2}}, false)
	now = now.Add(31 * time.Minute)

	if removed := m.SweepExpired(now, time.Hour); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, err := m.Get(old); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected swept handle to be gone, got %v", err)
	}
	if _, err := m.Get(fresh); err != nil {
		t.Errorf("fresh handle should survive, got %v", err)
	}
}

func TestLazyExpiryOnGet(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newTestStore(&now, time.Hour)

	id := m.Put([]string{"a"}, nil, false)
	now = now.Add(time.Hour + time.Second)
	if _, err := m.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after ttl, got %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("expired entry should be removed on Get, %d left", m.Len())
	}
}

func TestConcurrentPut(t *testing.T) {
	m := NewMemory(func() time.Duration { return time.Hour })

	const perWorker = 200
	ids := make([][]string, 2)
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids[w] = append(ids[w], m.Put([]string{"w"}, [][]any{{w, i}}, false))
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for w := range ids {
		for i, id := range ids[w] {
			if seen[id] {
				t.Fatalf("duplicate handle id %s", id)
			}
			seen[id] = true
			h, err := m.Get(id)
			if err != nil {
				t.Fatalf("Get(%s) failed: %v", id, err)
			}
			if h.Rows[0][0] != w || h.Rows[0][1] != i {
				t.Errorf("handle %s holds %v, want [%d %d]", id, h.Rows[0], w, i)
			}
		}
	}
	if m.Len() != 2*perWorker {
		t.Errorf("expected %d entries, got %d", 2*perWorker, m.Len())
	}
}

func TestSweepDuringReads(t *testing.T) {
	m := NewMemory(func() time.Duration { return 0 })
	id := m.Put([]string{"a"}, [][]any{{1}}, false)
	h, _ := m.Get(id)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = len(h.Rows)
		}
	}()
	go func() {
		defer wg.Done()
		m.SweepExpired(time.Now().Add(time.Hour), time.Minute)
	}()
	wg.Wait()

	if len(h.Rows) != 1 {
		t.Error("held handle should stay intact after sweep")
	}
}
