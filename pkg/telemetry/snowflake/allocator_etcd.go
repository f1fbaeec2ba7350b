package snowflake

import (
	"context"
	"fmt"
	"strconv"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdAllocator claims a node id via an etcd transaction that only commits
// when the candidate key's create-revision is zero (the key does not yet
// exist), guaranteeing a single winner per id across the fleet.
type EtcdAllocator struct {
	Client *clientv3.Client
	Prefix string // e.g. "/spanstore/nodeids/"
}

// NewEtcdAllocator dials the given endpoints and returns an Allocator backed
// by etcd.
func NewEtcdAllocator(endpoints []string, prefix string) (*EtcdAllocator, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("snowflake: etcd client: %w", err)
	}
	return &EtcdAllocator{Client: client, Prefix: prefix}, nil
}

// Allocate scans node ids 0..1023 and transactionally creates the first
// free key.
func (a *EtcdAllocator) Allocate(ctx context.Context) (uint64, error) {
	for node := uint64(0); node <= maxNode; node++ {
		key := a.Prefix + strconv.FormatUint(node, 10)

		txnCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		resp, err := a.Client.Txn(txnCtx).
			If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
			Then(clientv3.OpPut(key, "claimed")).
			Commit()
		cancel()
		if err != nil {
			return 0, fmt.Errorf("snowflake: etcd txn for node %d: %w", node, err)
		}
		if resp.Succeeded {
			return node, nil
		}
	}
	return 0, fmt.Errorf("snowflake: no free node id under prefix %q", a.Prefix)
}

// Release deletes the claim key, freeing node for reuse.
func (a *EtcdAllocator) Release(ctx context.Context, node uint64) error {
	key := a.Prefix + strconv.FormatUint(node, 10)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := a.Client.Delete(ctx, key); err != nil {
		return fmt.Errorf("snowflake: etcd release node %d: %w", node, err)
	}
	return nil
}
