package bootstrap

import (
	"context"
	"fmt"
	"time"

	"atomic_server/adapter/out/lease"
	"atomic_server/config"
	"atomic_server/internal/stream"
	"atomic_server/pkg/atomicid"
	"atomic_server/pkg/cache"
	"atomic_server/pkg/logger"
	"atomic_server/pkg/metrics"

	"github.com/google/uuid"
)

// Dependencies holds everything the API needs.
type Dependencies struct {
	Topology  *atomicid.Topology
	Generator *atomicid.Generator
	Store     *cache.RedisStore
	Keeper    *LeaseKeeper
	Gate      *NodeGate
	Metrics   *metrics.Registry
	Instance  string
}

// NewDependencies applies the configured topology, leasing the node id when
// NODE_ID is -1, and builds the generator over it.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{
		Topology: atomicid.Default,
		Gate:     &NodeGate{},
		Metrics:  metrics.NewRegistry(1000),
		Instance: cfg.InstanceID + "/" + uuid.NewString(),
	}

	if cfg.EpochMS != 0 {
		deps.Topology.SetEpoch(cfg.EpochMS)
	}
	if err := deps.Topology.SetShardID(cfg.ShardID); err != nil {
		return nil, nil, err
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := cache.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		deps.Store = store
		cleanups = append(cleanups, func() { store.Close() })
	}

	if cfg.LeaseNode() {
		nl := lease.New(deps.Store, lease.Config{
			Prefix: cfg.NodeLeasePrefix,
			Owner:  deps.Instance,
			TTL:    cfg.NodeLeaseTTL,
		})
		keeper := NewLeaseKeeper(nl, deps.Topology, deps.Gate, cfg.NodeLeaseTTL/3)
		if cfg.LeaseEventStream != "" {
			rs := stream.NewRedisStream(deps.Store.Client(), cfg.LeaseEventMaxLen)
			keeper.events = stream.NewProducer(rs, cfg.LeaseEventStream, deps.Instance)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := keeper.Acquire(ctx)
		cancel()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("lease node id: %w", err)
		}
		keeper.Start()
		deps.Keeper = keeper
		cleanups = append(cleanups, keeper.Stop)
	} else {
		if err := deps.Topology.SetNodeID(cfg.NodeID); err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.Gate.set(true)
	}

	deps.Generator = atomicid.NewGenerator(atomicid.Config{
		Topology:  deps.Topology,
		SpinLimit: cfg.SpinLimit,
		PoolSize:  cfg.SessionPoolSize,
	})
	cleanups = append(cleanups, deps.Generator.Drain)

	logger.WithFields(map[string]any{
		"node_id":  deps.Topology.NodeID(),
		"shard_id": deps.Topology.ShardID(),
		"epoch_ms": deps.Topology.Epoch(),
		"leased":   cfg.LeaseNode(),
		"instance": deps.Instance,
	}).Info("generator ready")

	return deps, cleanup, nil
}
