package service

import (
	"context"

	"github.com/AccelByte/extend-playthrough-rules/pkg/playthrough"
)

// Persistence contracts used by the scheduler.
//
// Implementations return playthrough.ErrNotFound (wrapped) for missing
// records. Every call works on copies: mutating a returned value has no
// effect until it is saved.

// PlaythroughRepository loads and saves playthrough aggregates.
type PlaythroughRepository interface {
	Load(ctx context.Context, id string) (*playthrough.Playthrough, error)
	Save(ctx context.Context, p *playthrough.Playthrough) error

	// FindCurrentByUser returns the user's non-completed playthrough, or nil.
	FindCurrentByUser(ctx context.Context, userID string) (*playthrough.Playthrough, error)

	// ListActive returns the IDs of all non-completed playthroughs.
	ListActive(ctx context.Context) ([]string, error)
}

// RuleInstanceRepository stores the rule instances of a playthrough.
type RuleInstanceRepository interface {
	FindActive(ctx context.Context, playthroughID string) ([]*playthrough.RuleInstance, error)
	FindAll(ctx context.Context, playthroughID string) ([]*playthrough.RuleInstance, error)
	Get(ctx context.Context, playthroughID, id string) (*playthrough.RuleInstance, error)
	Save(ctx context.Context, instances ...*playthrough.RuleInstance) error
}

// QueueRepository stores activation requests.
type QueueRepository interface {
	// NextPosition returns 1 + the highest position among pending/processing entries.
	NextPosition(ctx context.Context, playthroughID string) (int, error)

	// Pending returns pending entries ordered by position.
	Pending(ctx context.Context, playthroughID string) ([]*playthrough.QueueEntry, error)

	Get(ctx context.Context, playthroughID, id string) (*playthrough.QueueEntry, error)
	Save(ctx context.Context, entry *playthrough.QueueEntry) error
}

// Locker serializes read-modify-write operations per key.
type Locker interface {
	// Lock blocks until key is held or ctx ends. The returned func releases it.
	Lock(ctx context.Context, key string) (func(), error)
}
