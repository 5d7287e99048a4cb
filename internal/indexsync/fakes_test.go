package indexsync

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/capstone/vsl/internal/apperr"
	"github.com/capstone/vsl/internal/dictionary"
	"github.com/capstone/vsl/internal/search"
)

// memoryStore is an in-memory dictionary.Repository with the same
// versioning rules as the MySQL repository.
type memoryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]dictionary.Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[int64]dictionary.Entry)}
}

func (m *memoryStore) Save(ctx context.Context, entry *dictionary.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == 0 {
		m.nextID++
		entry.ID = m.nextID
		entry.Version = 1
	} else {
		current, ok := m.entries[entry.ID]
		if !ok {
			return dictionary.ErrNotFound
		}
		entry.Version = current.Version + 1
	}
	entry.IndexSynced = false
	m.entries[entry.ID] = *entry
	return nil
}

func (m *memoryStore) FindByID(ctx context.Context, id int64) (*dictionary.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memoryStore) FindByIDs(ctx context.Context, ids []int64) ([]dictionary.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []dictionary.Entry
	for _, id := range ids {
		if e, ok := m.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryStore) FindUnsynced(ctx context.Context, limit int) ([]dictionary.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []dictionary.Entry
	for _, id := range m.sortedIDs() {
		if e := m.entries[id]; !e.IndexSynced {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) MarkSynced(ctx context.Context, id, version int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.Version != version {
		return false, nil
	}
	e.IndexSynced = true
	m.entries[id] = e
	return true, nil
}

func (m *memoryStore) SearchContains(ctx context.Context, query string, limit int) ([]dictionary.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var out []dictionary.Entry
	for _, id := range m.sortedIDs() {
		e := m.entries[id]
		if strings.Contains(strings.ToLower(e.Word), q) || strings.Contains(strings.ToLower(e.Definition), q) {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryStore) sortedIDs() []int64 {
	ids := make([]int64, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *memoryStore) unsyncedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if !e.IndexSynced {
			n++
		}
	}
	return n
}

// memoryIndex keeps one document per id with external versioning. failures
// makes the next n upserts fail; down makes every call fail.
type memoryIndex struct {
	mu       sync.Mutex
	docs     map[int64]search.Document
	upserts  int
	failures int
	down     bool
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{docs: make(map[int64]search.Document)}
}

var errIndexDown = apperr.New(apperr.IndexUnavailable, "connection refused", nil)

func (m *memoryIndex) Upsert(ctx context.Context, doc search.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.down {
		return errIndexDown
	}
	if m.failures > 0 {
		m.failures--
		return errIndexDown
	}
	if current, ok := m.docs[doc.ID]; ok && current.Version > doc.Version {
		return search.ErrSuperseded
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memoryIndex) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errIndexDown
	}
	var hits []search.Hit
	for id, doc := range m.docs {
		if strings.Contains(strings.ToLower(doc.Word), strings.ToLower(query)) {
			hits = append(hits, search.Hit{ID: id, Score: 1})
		}
	}
	slices.SortFunc(hits, func(a, b search.Hit) int { return int(a.ID - b.ID) })
	return hits, nil
}

func (m *memoryIndex) Close() error {
	return nil
}

func (m *memoryIndex) setDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

func (m *memoryIndex) snapshot() (map[int64]search.Document, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make(map[int64]search.Document, len(m.docs))
	for k, v := range m.docs {
		docs[k] = v
	}
	return docs, m.upserts
}

var errStoreDown = errors.New("store unavailable")
