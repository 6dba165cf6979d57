package ports

import (
	"context"
	"time"

	"ThreatScanner/internal/domain"
)

// ItemSource pulls raw items from every configured upstream source.
type ItemSource interface {
	CollectAll(ctx context.Context) []domain.RawItem
}

// SlotStore persists the numbered threat slots.
type SlotStore interface {
	// ApplySlots writes the whole batch atomically: either every write lands or none does.
	// The batch is the complete slot set; stored slots it does not name are removed.
	ApplySlots(ctx context.Context, writes []domain.SlotWrite) error
	// LoadSlots returns the occupied slots ordered by key.
	LoadSlots(ctx context.Context) ([]domain.Slot, error)
}

// Forwarder relays published records to a downstream service.
type Forwarder interface {
	ForwardAll(ctx context.Context, records []domain.ThreatRecord) []domain.ForwardOutcome
}

// Notifier streams selected digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
