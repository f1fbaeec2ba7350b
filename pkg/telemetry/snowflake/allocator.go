package snowflake

import (
	"context"
	"fmt"
)

// Allocator claims a node id unique across a fleet of processes so that
// snowflake-generated span ids stay globally monotone in time even when
// many aggregators run concurrently.
type Allocator interface {
	// Allocate claims and returns a node id in [0, 1023]. Implementations
	// must ensure two concurrent callers against the same coordination
	// backend never return the same id.
	Allocate(ctx context.Context) (uint64, error)

	// Release gives back a previously allocated node id so it can be
	// reused once this process exits.
	Release(ctx context.Context, node uint64) error
}

// StaticAllocator returns a fixed, pre-configured node id. It performs no
// coordination and is the zero-dependency fallback for single-node
// deployments where uniqueness is guaranteed by operator convention rather
// than a coordination service.
type StaticAllocator struct {
	Node uint64
}

// Allocate returns the configured node id.
func (a StaticAllocator) Allocate(_ context.Context) (uint64, error) {
	if a.Node > maxNode {
		return 0, fmt.Errorf("snowflake: static node id %d exceeds max %d", a.Node, maxNode)
	}
	return a.Node, nil
}

// Release is a no-op for a static allocation.
func (StaticAllocator) Release(_ context.Context, _ uint64) error { return nil }
