package snowflake

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/consul/api"
)

// ConsulAllocator claims a node id by creating a key under Prefix for each
// candidate id and relying on Consul's compare-and-swap semantics
// (ModifyIndex 0 means "create only if absent") to ensure exactly one
// process wins a given id.
type ConsulAllocator struct {
	Client *api.Client
	Prefix string // e.g. "spanstore/nodeids/"
}

// NewConsulAllocator dials a Consul agent at address and returns an
// Allocator backed by it.
func NewConsulAllocator(address, prefix string) (*ConsulAllocator, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("snowflake: consul client: %w", err)
	}
	return &ConsulAllocator{Client: client, Prefix: prefix}, nil
}

// Allocate scans node ids 0..1023 and CAS-creates the first free key.
func (a *ConsulAllocator) Allocate(_ context.Context) (uint64, error) {
	kv := a.Client.KV()
	for node := uint64(0); node <= maxNode; node++ {
		key := a.Prefix + strconv.FormatUint(node, 10)
		pair := &api.KVPair{Key: key, Value: []byte("claimed"), ModifyIndex: 0}
		ok, _, err := kv.CAS(pair, nil)
		if err != nil {
			return 0, fmt.Errorf("snowflake: consul CAS for node %d: %w", node, err)
		}
		if ok {
			return node, nil
		}
	}
	return 0, fmt.Errorf("snowflake: no free node id under prefix %q", a.Prefix)
}

// Release deletes the claim key, freeing node for reuse.
func (a *ConsulAllocator) Release(_ context.Context, node uint64) error {
	key := a.Prefix + strconv.FormatUint(node, 10)
	_, err := a.Client.KV().Delete(key, nil)
	if err != nil {
		return fmt.Errorf("snowflake: consul release node %d: %w", node, err)
	}
	return nil
}
