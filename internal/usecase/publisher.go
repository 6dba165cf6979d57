package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
)

// DefaultCapacity is the number of slots published when none is configured.
const DefaultCapacity = 30

// SlotPublisher rotates selected records into the fixed numbered slots.
type SlotPublisher struct {
	store    ports.SlotStore
	capacity int
	now      func() time.Time
}

// NewSlotPublisher wires a store with the slot capacity; now defaults to time.Now.
func NewSlotPublisher(store ports.SlotStore, capacity int, now func() time.Time) *SlotPublisher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &SlotPublisher{store: store, capacity: capacity, now: now}
}

// Capacity returns the number of slots managed by the publisher.
func (p *SlotPublisher) Capacity() int {
	return p.capacity
}

// Batch builds exactly capacity writes: slot i+1 receives selected[i], the rest are cleared.
func (p *SlotPublisher) Batch(selected []domain.ThreatRecord) []domain.SlotWrite {
	updatedAt := p.now().UTC()
	writes := make([]domain.SlotWrite, p.capacity)
	for i := range writes {
		writes[i].Key = domain.SlotKey(i + 1)
		if i >= len(selected) {
			continue
		}
		rec := selected[i]
		rec.Status = domain.StatusActive
		rec.Votes = domain.Votes{}
		rec.UpdatedAt = updatedAt
		writes[i].Record = &rec
	}
	return writes
}

// Publish applies the batch atomically. On error the previous slot contents are kept.
func (p *SlotPublisher) Publish(ctx context.Context, selected []domain.ThreatRecord) ([]domain.ThreatRecord, error) {
	if p.store == nil {
		return nil, errors.New("slot store is not configured")
	}
	writes := p.Batch(selected)
	if err := p.store.ApplySlots(ctx, writes); err != nil {
		return nil, fmt.Errorf("apply slots: %w", err)
	}

	published := make([]domain.ThreatRecord, 0, len(selected))
	for _, w := range writes {
		if w.Record != nil {
			published = append(published, *w.Record)
		}
	}
	return published, nil
}
