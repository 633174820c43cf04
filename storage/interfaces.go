package storage

import (
	"context"

	"github.com/poiesic/ragstore/core"
)

// PartitionStore provides durable load/persist primitives for one tenant's
// partition. Implementations must be thread-safe; Persist calls for the same
// tenant are serialized by the caller.
type PartitionStore interface {
	// Load reads both partition artifacts for the tenant and reassembles the
	// in-memory partition.
	// Returns ErrNotPresent if neither artifact exists.
	// Returns ErrCorrupted if exactly one artifact exists or their lengths disagree.
	Load(ctx context.Context, tenantID string) (*core.Partition, error)

	// Persist writes both artifacts such that a crash mid-write cannot leave
	// the pair mismatched: artifacts are staged and promoted together, or the
	// write happens inside one transaction.
	Persist(ctx context.Context, tenantID string, partition *core.Partition) error

	// Close closes the storage backend and releases resources.
	Close() error
}
