package bootstrap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"atomic_server/adapter/out/lease"
	"atomic_server/internal/stream"
	"atomic_server/pkg/atomicid"
	"atomic_server/pkg/logger"
)

// NodeGate tells the ID handlers whether the node id is currently owned.
type NodeGate struct {
	open atomic.Bool
}

func (g *NodeGate) Available() bool { return g.open.Load() }

func (g *NodeGate) set(v bool) { g.open.Store(v) }

// LeaseEvents records lease transitions.
type LeaseEvents interface {
	PublishLease(ctx context.Context, typ string, node int, reason string) (string, error)
}

// LeaseKeeper renews the node lease in the background and re-leases a node id
// after a loss. While no lease is held the gate stays closed.
type LeaseKeeper struct {
	lease  *lease.NodeLease
	topo   *atomicid.Topology
	gate   *NodeGate
	retry  time.Duration
	events LeaseEvents

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logger.Logger
}

func NewLeaseKeeper(l *lease.NodeLease, topo *atomicid.Topology, gate *NodeGate, retry time.Duration) *LeaseKeeper {
	ctx, cancel := context.WithCancel(context.Background())
	if retry <= 0 {
		retry = time.Second
	}
	return &LeaseKeeper{
		lease:  l,
		topo:   topo,
		gate:   gate,
		retry:  retry,
		ctx:    ctx,
		cancel: cancel,
		log:    logger.WithField("component", "lease-keeper"),
	}
}

// Acquire leases a node id and applies it to the topology.
func (k *LeaseKeeper) Acquire(ctx context.Context) error {
	n, err := k.lease.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := k.topo.SetNodeID(n); err != nil {
		return err
	}
	k.gate.set(true)
	k.publish(ctx, stream.EventNodeAcquired, n, nil)
	return nil
}

// publish is best effort; a failed audit write never blocks issuance.
func (k *LeaseKeeper) publish(ctx context.Context, typ string, node int, cause error) {
	if k.events == nil {
		return
	}
	var reason string
	if cause != nil {
		reason = cause.Error()
	}
	if _, err := k.events.PublishLease(ctx, typ, node, reason); err != nil {
		k.log.WithError(err).WithField("event", typ).Warn("publish lease event")
	}
}

func (k *LeaseKeeper) Start() {
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		k.loop()
	}()
}

func (k *LeaseKeeper) loop() {
	for {
		err := k.lease.Run(k.ctx)
		if k.ctx.Err() != nil {
			return
		}
		k.gate.set(false)
		k.log.WithError(err).Error("node lease lost, id issuance paused")
		k.publish(k.ctx, stream.EventNodeLost, int(k.topo.NodeID()), err)

		for {
			select {
			case <-k.ctx.Done():
				return
			case <-time.After(k.retry):
			}
			if err := k.Acquire(k.ctx); err != nil {
				k.log.WithError(err).Warn("re-lease failed")
				continue
			}
			k.log.WithField("node", k.lease.Node()).Info("node lease restored")
			break
		}
	}
}

// Stop ends renewal and releases the lease.
func (k *LeaseKeeper) Stop() {
	k.cancel()
	k.wg.Wait()
	k.gate.set(false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	node := k.lease.Node()
	if err := k.lease.Release(ctx); err != nil && !errors.Is(err, context.Canceled) {
		k.log.WithError(err).Error("release node lease")
		return
	}
	if node >= 0 {
		k.publish(ctx, stream.EventNodeReleased, node, nil)
	}
}
