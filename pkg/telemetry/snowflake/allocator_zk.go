package snowflake

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-zookeeper/zk"
)

// ZookeeperAllocator claims a node id by creating an ephemeral znode for
// each candidate id under Prefix. Ephemeral znodes are removed by ZooKeeper
// automatically if the owning process dies, so a crashed process's node id
// becomes available again without an explicit Release.
type ZookeeperAllocator struct {
	conn   *zk.Conn
	prefix string
}

// NewZookeeperAllocator connects to endpoints and returns an Allocator
// backed by ZooKeeper. prefix must already exist as a persistent znode.
func NewZookeeperAllocator(endpoints []string, prefix string) (*ZookeeperAllocator, error) {
	conn, _, err := zk.Connect(endpoints, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("snowflake: zookeeper connect: %w", err)
	}
	return &ZookeeperAllocator{conn: conn, prefix: prefix}, nil
}

// Allocate scans node ids 0..1023 and creates the first free ephemeral
// znode.
func (a *ZookeeperAllocator) Allocate(_ context.Context) (uint64, error) {
	for node := uint64(0); node <= maxNode; node++ {
		path := a.prefix + strconv.FormatUint(node, 10)
		_, err := a.conn.Create(path, []byte("claimed"), zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
		if err == nil {
			return node, nil
		}
		if !errors.Is(err, zk.ErrNodeExists) {
			return 0, fmt.Errorf("snowflake: zookeeper create %s: %w", path, err)
		}
	}
	return 0, fmt.Errorf("snowflake: no free node id under prefix %q", a.prefix)
}

// Release deletes the claim znode, freeing node for reuse.
func (a *ZookeeperAllocator) Release(_ context.Context, node uint64) error {
	path := a.prefix + strconv.FormatUint(node, 10)
	if err := a.conn.Delete(path, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("snowflake: zookeeper release node %d: %w", node, err)
	}
	return nil
}

// Close releases the underlying ZooKeeper connection.
func (a *ZookeeperAllocator) Close() {
	a.conn.Close()
}
