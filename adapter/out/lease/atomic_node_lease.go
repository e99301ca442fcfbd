// Package lease claims a node id in Redis so that concurrent instances never
// pack the same node field.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"atomic_server/pkg/atomicid"
	"atomic_server/pkg/logger"

	"github.com/sony/gobreaker"
)

var (
	ErrNoFreeNode = errors.New("no free node id")
	ErrLeaseLost  = errors.New("node lease lost")
	ErrNotHeld    = errors.New("node lease not held")
)

// Store is the subset of the Redis store the lease needs.
type Store interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

// Config for NodeLease
type Config struct {
	Prefix string
	Owner  string
	TTL    time.Duration
	// MaxNode bounds the scanned range; defaults to atomicid.MaxNodeID.
	MaxNode int
}

// NodeLease holds one node id key of the form <prefix>:node:<n>.
type NodeLease struct {
	store Store
	cfg   Config
	cb    *gobreaker.CircuitBreaker
	log   *logger.Logger

	mu      sync.Mutex
	node    int
	renewed time.Time
}

// New creates a lease that has not been acquired yet.
func New(store Store, cfg Config) *NodeLease {
	if cfg.MaxNode <= 0 || cfg.MaxNode > atomicid.MaxNodeID {
		cfg.MaxNode = atomicid.MaxNodeID
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "atomicid"
	}
	log := logger.WithFields(map[string]any{"component": "node-lease", "owner": cfg.Owner})

	cbSettings := gobreaker.Settings{
		Name:        "node-lease",
		MaxRequests: 1,
		Interval:    cfg.TTL,
		Timeout:     cfg.TTL / 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit %s: %s -> %s", name, from.String(), to.String())
		},
	}

	return &NodeLease{
		store: store,
		cfg:   cfg,
		cb:    gobreaker.NewCircuitBreaker(cbSettings),
		log:   log,
		node:  -1,
	}
}

func (l *NodeLease) key(n int) string {
	return fmt.Sprintf("%s:node:%d", l.cfg.Prefix, n)
}

// Node returns the held node id, or -1.
func (l *NodeLease) Node() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.node
}

// Acquire claims the lowest free node id.
func (l *NodeLease) Acquire(ctx context.Context) (int, error) {
	for n := 0; n <= l.cfg.MaxNode; n++ {
		start := time.Now()
		res, err := l.cb.Execute(func() (interface{}, error) {
			return l.store.SetNX(ctx, l.key(n), l.cfg.Owner, l.cfg.TTL)
		})
		if err != nil {
			return -1, fmt.Errorf("claim node %d: %w", n, err)
		}
		if res.(bool) {
			l.mu.Lock()
			l.node = n
			l.renewed = start
			l.mu.Unlock()
			l.log.Info("leased node id %d", n)
			return n, nil
		}
	}
	return -1, ErrNoFreeNode
}

// grace is how long renewals may fail before the lease is given up. Renewals
// run every TTL/3, so the failing tick that crosses TTL/2 still comes about
// TTL/3 before the key can expire and be claimed by another instance.
func (l *NodeLease) grace() time.Duration {
	return l.cfg.TTL / 2
}

// Renew extends the lease. It returns ErrLeaseLost once the key belongs to
// someone else, or when no renewal succeeded within the grace period.
func (l *NodeLease) Renew(ctx context.Context) error {
	l.mu.Lock()
	node, renewed := l.node, l.renewed
	l.mu.Unlock()
	if node < 0 {
		return ErrNotHeld
	}

	// Past renewed+TTL the key may belong to someone else; stop waiting.
	ctx, cancel := context.WithDeadline(ctx, renewed.Add(l.cfg.TTL))
	defer cancel()

	start := time.Now()
	res, err := l.cb.Execute(func() (interface{}, error) {
		return l.store.CompareAndExpire(ctx, l.key(node), l.cfg.Owner, l.cfg.TTL)
	})
	if err != nil {
		if time.Since(renewed) >= l.grace() {
			l.drop()
			return fmt.Errorf("%w: %v", ErrLeaseLost, err)
		}
		l.log.WithError(err).Warn("renew node %d failed", node)
		return err
	}
	if !res.(bool) {
		l.drop()
		return ErrLeaseLost
	}

	l.mu.Lock()
	l.renewed = start
	l.mu.Unlock()
	return nil
}

func (l *NodeLease) drop() {
	l.mu.Lock()
	l.node = -1
	l.mu.Unlock()
}

// Run renews the lease every TTL/3 until ctx is done or the lease is lost.
func (l *NodeLease) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.TTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.Renew(ctx); errors.Is(err, ErrLeaseLost) || errors.Is(err, ErrNotHeld) {
				l.log.WithError(err).Error("node lease lost")
				return err
			}
		}
	}
}

// Release deletes the key if this owner still holds it.
func (l *NodeLease) Release(ctx context.Context) error {
	l.mu.Lock()
	node := l.node
	l.node = -1
	l.mu.Unlock()
	if node < 0 {
		return nil
	}

	if _, err := l.store.CompareAndDelete(ctx, l.key(node), l.cfg.Owner); err != nil {
		return fmt.Errorf("release node %d: %w", node, err)
	}
	l.log.Info("released node id %d", node)
	return nil
}
