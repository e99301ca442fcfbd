package atomicid

import (
	"errors"
	"fmt"
	"sync/atomic"
)

const (
	// DefaultEpoch is 2022-05-01 00:00:00 UTC in milliseconds.
	DefaultEpoch int64 = 1651363200000

	DefaultNodeID  = 1
	DefaultShardID = 0
)

var (
	ErrInvalidNodeID  = errors.New("node ID must be between 0 and 4095")
	ErrInvalidShardID = errors.New("shard ID must be between 0 and 255")
)

// Topology holds the node id, shard id and epoch read by generators. Each
// field is an independent atomic cell; readers always see a whole value.
type Topology struct {
	node  atomic.Uint32
	shard atomic.Uint32
	epoch atomic.Int64
}

// NewTopology returns a topology with the default epoch, node and shard.
func NewTopology() *Topology {
	t := &Topology{}
	t.node.Store(DefaultNodeID)
	t.shard.Store(DefaultShardID)
	t.epoch.Store(DefaultEpoch)
	return t
}

// Default is the process-wide topology used by the package-level helpers.
var Default = NewTopology()

// SetEpoch replaces the epoch. Any value is accepted, including future or
// otherwise implausible ones; a future epoch yields a zero timestamp field.
func (t *Topology) SetEpoch(ms int64) { t.epoch.Store(ms) }

func (t *Topology) Epoch() int64 { return t.epoch.Load() }

// ResetEpoch restores DefaultEpoch.
func (t *Topology) ResetEpoch() { t.epoch.Store(DefaultEpoch) }

// SetNodeID sets the node id. Out of range values are rejected, never
// truncated.
func (t *Topology) SetNodeID(n int) error {
	if n < 0 || n > MaxNodeID {
		return fmt.Errorf("%d: %w", n, ErrInvalidNodeID)
	}
	t.node.Store(uint32(n))
	return nil
}

func (t *Topology) NodeID() uint16 { return uint16(t.node.Load()) }

// SetShardID sets the shard id. Out of range values are rejected.
func (t *Topology) SetShardID(s int) error {
	if s < 0 || s > MaxShardID {
		return fmt.Errorf("%d: %w", s, ErrInvalidShardID)
	}
	t.shard.Store(uint32(s))
	return nil
}

func (t *Topology) ShardID() uint8 { return uint8(t.shard.Load()) }

// Snapshot is a point in time copy of a topology.
type Snapshot struct {
	NodeID  uint16 `json:"node_id"`
	ShardID uint8  `json:"shard_id"`
	EpochMS int64  `json:"epoch_ms"`
}

func (t *Topology) Snapshot() Snapshot {
	return Snapshot{NodeID: t.NodeID(), ShardID: t.ShardID(), EpochMS: t.Epoch()}
}

// Package-level accessors for Default.

func SetEpoch(ms int64) { Default.SetEpoch(ms) }
func Epoch() int64 { return Default.Epoch() }
func ResetEpoch() { Default.ResetEpoch() }
func SetNodeID(n int) error { return Default.SetNodeID(n) }
func NodeID() uint16 { return Default.NodeID() }
func SetShardID(s int) error { return Default.SetShardID(s) }
func ShardID() uint8 { return Default.ShardID() }
