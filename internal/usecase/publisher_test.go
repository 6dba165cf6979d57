package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/infrastructure/storage"
)

// flakyStore rejects batches while fail is set, leaving the wrapped store untouched.
type flakyStore struct {
	*storage.MemoryStore
	fail    bool
	batches int
}

func (f *flakyStore) ApplySlots(ctx context.Context, writes []domain.SlotWrite) error {
	f.batches++
	if f.fail {
		return errors.New("connection reset")
	}
	return f.MemoryStore.ApplySlots(ctx, writes)
}

func clock() func() time.Time { return func() time.Time { return base } }

func TestBatchCoversEverySlot(t *testing.T) {
	t.Parallel()

	p := NewSlotPublisher(storage.NewMemoryStore(), 5, clock())
	voted := threat("a", 80, 0)
	voted.Votes = domain.Votes{Credible: 3, NotCredible: 1}
	voted.Status = domain.StatusArchived

	writes := p.Batch([]domain.ThreatRecord{voted, threat("b", 70, 0)})
	require.Len(t, writes, 5)
	for i, w := range writes {
		assert.Equal(t, domain.SlotKey(i+1), w.Key)
	}
	require.NotNil(t, writes[0].Record)
	assert.Equal(t, "a", writes[0].Record.ID)
	assert.Equal(t, domain.StatusActive, writes[0].Record.Status)
	assert.Equal(t, domain.Votes{}, writes[0].Record.Votes)
	assert.Equal(t, base, writes[0].Record.UpdatedAt)
	assert.Equal(t, "b", writes[1].Record.ID)
	for _, w := range writes[2:] {
		assert.Nil(t, w.Record)
	}
}

func TestPublishIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := NewSlotPublisher(store, 4, clock())
	selected := []domain.ThreatRecord{threat("a", 80, 0), threat("b", 70, 0)}

	_, err := p.Publish(ctx, selected)
	require.NoError(t, err)
	first, err := store.LoadSlots(ctx)
	require.NoError(t, err)

	_, err = p.Publish(ctx, selected)
	require.NoError(t, err)
	second, err := store.LoadSlots(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPublishFailureKeepsPreviousSlots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	p := NewSlotPublisher(store, 3, clock())

	_, err := p.Publish(ctx, []domain.ThreatRecord{threat("old", 50, 0)})
	require.NoError(t, err)

	store.fail = true
	_, err = p.Publish(ctx, []domain.ThreatRecord{threat("new-1", 90, 0), threat("new-2", 80, 0)})
	require.Error(t, err)

	slots, err := store.LoadSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "old", slots[0].Record.ID)
}

func TestPublishShrinksToFewerRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := NewSlotPublisher(store, 3, clock())

	_, err := p.Publish(ctx, []domain.ThreatRecord{threat("a", 80, 0), threat("b", 70, 0), threat("c", 60, 0)})
	require.NoError(t, err)
	published, err := p.Publish(ctx, []domain.ThreatRecord{threat("d", 90, 0)})
	require.NoError(t, err)
	assert.Len(t, published, 1)

	slots, err := store.LoadSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "threat_001", slots[0].Key)
	assert.Equal(t, "d", slots[0].Record.ID)
}

func TestPublishAfterCapacityShrinkLeavesNoStaleSlots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()

	wide := NewSlotPublisher(store, 5, clock())
	_, err := wide.Publish(ctx, []domain.ThreatRecord{
		threat("a", 90, 0), threat("b", 80, 0), threat("c", 70, 0), threat("d", 60, 0), threat("e", 50, 0),
	})
	require.NoError(t, err)

	narrow := NewSlotPublisher(store, 2, clock())
	_, err = narrow.Publish(ctx, []domain.ThreatRecord{threat("new", 95, 0)})
	require.NoError(t, err)

	slots, err := store.LoadSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "new", slots[0].Record.ID)
}

func TestNewSlotPublisherDefaultsCapacity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultCapacity, NewSlotPublisher(nil, 0, nil).Capacity())
	_, err := NewSlotPublisher(nil, 0, nil).Publish(context.Background(), nil)
	assert.Error(t, err)
}
