package store

import (
	"context"

	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	cache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries for the lifetime of the process.
// Entries are stored by value, so callers always receive copies.
type MemoryStore struct {
	items *cache.Cache
}

// NewMemoryStore creates an empty in-memory store. Entries never expire.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: cache.New(cache.NoExpiration, 0)}
}

// Get returns the entry for b, if any.
func (m *MemoryStore) Get(_ context.Context, b horizon.Bucket) (Entry, bool, error) {
	v, ok := m.items.Get(string(b))
	if !ok {
		return Entry{}, false, nil
	}
	return v.(Entry), true, nil
}

// Put replaces the entry for b.
func (m *MemoryStore) Put(_ context.Context, b horizon.Bucket, e Entry) error {
	m.items.Set(string(b), e, cache.NoExpiration)
	return nil
}

// List returns a snapshot of all entries.
func (m *MemoryStore) List(_ context.Context) (map[horizon.Bucket]Entry, error) {
	out := make(map[horizon.Bucket]Entry)
	for k, item := range m.items.Items() {
		out[horizon.Bucket(k)] = item.Object.(Entry)
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
