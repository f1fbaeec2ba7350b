package main

import (
	"context"
	"fmt"

	"github.com/kadirpekel/spanstore/pkg/obs"
	"github.com/kadirpekel/spanstore/pkg/storeconfig"
	"github.com/kadirpekel/spanstore/pkg/telemetry"
	"github.com/kadirpekel/spanstore/pkg/telemetry/aggregator"
	"github.com/kadirpekel/spanstore/pkg/telemetry/snowflake"
	"github.com/kadirpekel/spanstore/pkg/telemetry/store/badgerstore"
	"github.com/kadirpekel/spanstore/pkg/telemetry/undelete"
)

// openedStore bundles the facade with the resources main needs to release
// on shutdown: the badger backend (via the facade's Close) and, when a
// coordinated allocator claimed a node id, the allocator itself so the
// claim can be released.
type openedStore struct {
	store     *telemetry.Store
	metrics   *obs.Metrics
	allocator snowflake.Allocator
	node      uint64
}

// openStore wires a badger backend, metrics, tracer and the aggregator
// into a telemetry.Store per cfg, and allocates this process's snowflake
// node id through cfg's configured allocator backend.
func openStore(ctx context.Context, cfg *storeconfig.Config) (*openedStore, error) {
	backend, err := badgerstore.Open(cfg.BadgerDir)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.BadgerDir, err)
	}

	metrics, err := obs.NewMetrics(&cfg.Metrics)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("build metrics: %w", err)
	}

	if _, err := obs.InitGlobalTracer(ctx, cfg.Tracer); err != nil {
		backend.Close()
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	allocator, err := storeconfig.BuildAllocator(cfg.Snowflake)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("build node-id allocator: %w", err)
	}
	node, err := allocator.Allocate(ctx)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("allocate node id: %w", err)
	}

	s := telemetry.New(backend, telemetry.Config{
		Aggregator: aggregator.Config{Metrics: metrics, FlushEveryBatch: true},
		Undelete:   undelete.Policy{Enabled: cfg.Undelete.Enabled, Retention: cfg.Undelete.Retention},
		Metrics:    metrics,
	})

	return &openedStore{store: s, metrics: metrics, allocator: allocator, node: node}, nil
}

// Close releases the node-id claim (best effort) and the store's backend.
func (o *openedStore) Close(ctx context.Context) error {
	if o.allocator != nil {
		_ = o.allocator.Release(ctx, o.node)
	}
	return o.store.Close()
}
