package storage

import (
	"context"
	"sort"
	"sync"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
)

// MemoryStore keeps slots in process memory; suitable for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]domain.ThreatRecord
}

var _ ports.SlotStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: map[string]domain.ThreatRecord{}}
}

// ApplySlots builds the next state from the batch alone and swaps it in; slots outside the
// batch do not survive.
func (m *MemoryStore) ApplySlots(ctx context.Context, writes []domain.SlotWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := make(map[string]domain.ThreatRecord, len(writes))
	for _, w := range writes {
		if w.Record != nil {
			next[w.Key] = *w.Record
		}
	}

	m.mu.Lock()
	m.slots = next
	m.mu.Unlock()
	return nil
}

// LoadSlots returns the occupied slots ordered by key.
func (m *MemoryStore) LoadSlots(ctx context.Context) ([]domain.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.slots))
	for k := range m.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slots := make([]domain.Slot, 0, len(keys))
	for _, k := range keys {
		rec := m.slots[k]
		slots = append(slots, domain.Slot{Key: k, Record: &rec})
	}
	return slots, nil
}
