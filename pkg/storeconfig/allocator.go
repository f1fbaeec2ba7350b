package storeconfig

import (
	"fmt"

	"github.com/kadirpekel/spanstore/pkg/telemetry/snowflake"
)

// BuildAllocator constructs the snowflake.Allocator named by cfg.Allocator,
// dialing whatever coordination backend it selects. Callers own the
// returned allocator's lifecycle (Release on shutdown where applicable).
func BuildAllocator(cfg SnowflakeConfig) (snowflake.Allocator, error) {
	switch cfg.Allocator {
	case "", "static":
		return snowflake.StaticAllocator{Node: cfg.NodeID}, nil

	case "consul":
		if len(cfg.Endpoints) == 0 {
			return nil, fmt.Errorf("storeconfig: consul allocator requires at least one endpoint")
		}
		return snowflake.NewConsulAllocator(cfg.Endpoints[0], cfg.Prefix)

	case "etcd":
		if len(cfg.Endpoints) == 0 {
			return nil, fmt.Errorf("storeconfig: etcd allocator requires at least one endpoint")
		}
		return snowflake.NewEtcdAllocator(cfg.Endpoints, cfg.Prefix)

	case "zookeeper", "zk":
		if len(cfg.Endpoints) == 0 {
			return nil, fmt.Errorf("storeconfig: zookeeper allocator requires at least one endpoint")
		}
		return snowflake.NewZookeeperAllocator(cfg.Endpoints, cfg.Prefix)

	default:
		return nil, fmt.Errorf("storeconfig: unknown allocator %q (want static, consul, etcd, or zookeeper)", cfg.Allocator)
	}
}
