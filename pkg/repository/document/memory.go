package document

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryAdapter keeps one collection in process. Documents are returned in insertion
// order unless a sort is requested.
type MemoryAdapter struct {
	mu        sync.RWMutex
	order     []string
	docs      map[string]Document
	textIndex []string
	closed    bool
	newID     func() string
}

// NewMemoryAdapter creates an empty in-process collection.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		docs:  make(map[string]Document),
		newID: func() string { return uuid.NewString() },
	}
}

func (m *MemoryAdapter) checkOpen() error {
	if m.closed {
		return fmt.Errorf("memory adapter is closed")
	}
	return nil
}

func (m *MemoryAdapter) snapshot() []Document {
	out := make([]Document, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.docs[id])
	}
	return out
}

func (m *MemoryAdapter) Count(ctx context.Context, params Params) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	params.Limit, params.Offset = 0, 0
	docs, err := Apply(m.snapshot(), params, m.textIndex)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (m *MemoryAdapter) Find(ctx context.Context, params Params) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return Apply(m.snapshot(), params, m.textIndex)
}

func (m *MemoryAdapter) FindByID(ctx context.Context, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("find %s: %w", id, ErrNotFound)
	}
	return doc.Clone(), nil
}

// FindByIDs returns the documents that exist, in the order of ids.
func (m *MemoryAdapter) FindByIDs(ctx context.Context, ids []string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := m.docs[id]; ok {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func (m *MemoryAdapter) Insert(ctx context.Context, doc Document) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.insertLocked(doc)
}

func (m *MemoryAdapter) insertLocked(doc Document) (Document, error) {
	stored := doc.Clone()
	if stored == nil {
		stored = Document{}
	}
	id := stored.ID()
	if id == "" {
		id = m.newID()
	}
	if _, exists := m.docs[id]; exists {
		return nil, fmt.Errorf("duplicate document id %s", id)
	}
	stored[IDField] = id
	m.docs[id] = stored
	m.order = append(m.order, id)
	return stored.Clone(), nil
}

// InsertMany stores docs atomically: on error nothing is inserted.
func (m *MemoryAdapter) InsertMany(ctx context.Context, docs []Document) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	orderLen := len(m.order)
	out := make([]Document, 0, len(docs))
	for i, doc := range docs {
		saved, err := m.insertLocked(doc)
		if err != nil {
			for _, id := range m.order[orderLen:] {
				delete(m.docs, id)
			}
			m.order = m.order[:orderLen]
			return nil, fmt.Errorf("insert document %d: %w", i, err)
		}
		out = append(out, saved)
	}
	return out, nil
}

func (m *MemoryAdapter) UpdateByID(ctx context.Context, id string, update Update) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	next := ApplyUpdate(doc, update)
	m.docs[id] = next
	return next.Clone(), nil
}

// UpdateMany returns the number of documents matching filter.
func (m *MemoryAdapter) UpdateMany(ctx context.Context, filter Filter, update Update) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range m.order {
		ok, err := Match(m.docs[id], filter)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		m.docs[id] = ApplyUpdate(m.docs[id], update)
		n++
	}
	return n, nil
}

func (m *MemoryAdapter) RemoveByID(ctx context.Context, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	delete(m.docs, id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	return doc, nil
}

func (m *MemoryAdapter) RemoveMany(ctx context.Context, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	kept := m.order[:0]
	var removed int64
	for _, id := range m.order {
		ok, err := Match(m.docs[id], filter)
		if err != nil {
			return removed, err
		}
		if ok {
			delete(m.docs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed, nil
}

func (m *MemoryAdapter) Clear(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	n := int64(len(m.order))
	m.order = nil
	m.docs = make(map[string]Document)
	return n, nil
}

// CreateTextIndex sets the fields searched when Params.SearchFields is empty.
// Like MongoDB, a collection holds a single text index; a new call replaces it.
func (m *MemoryAdapter) CreateTextIndex(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return fmt.Errorf("text index requires at least one field")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.textIndex = slices.Clone(fields)
	return nil
}

func (m *MemoryAdapter) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkOpen()
}

func (m *MemoryAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
