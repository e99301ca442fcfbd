package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"atomic_server/adapter/out/lease"
	"atomic_server/config"
	"atomic_server/pkg/atomicid"
	"atomic_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPI_StaticNode(t *testing.T) {
	t.Setenv("NODE_ID", "12")
	t.Setenv("RATE_LIMIT_PER_MIN", "0")
	cfg, err := config.Load()
	require.NoError(t, err)

	app, cleanup, err := NewAPI(cfg)
	require.NoError(t, err)
	defer cleanup()

	tests := []struct {
		path string
		want int
	}{
		{"/health", fiber.StatusOK},
		{"/ready", fiber.StatusOK},
		{"/metrics", fiber.StatusOK},
		{"/api/v1/ids/64", fiber.StatusOK},
		{"/api/v1/topology", fiber.StatusOK},
		{"/nope", fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
	assert.Equal(t, uint16(12), atomicid.NodeID())
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memStore) CompareAndExpire(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key] == value, nil
}

func (m *memStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key] != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *memStore) steal(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = "thief"
}

func (m *memStore) get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) PublishLease(_ context.Context, typ string, node int, _ string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, fmt.Sprintf("%s:%d", typ, node))
	return "", nil
}

func (e *eventLog) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func TestLeaseKeeper_RecoversAfterLoss(t *testing.T) {
	store := &memStore{data: map[string]string{}}
	topo := atomicid.NewTopology()
	gate := &NodeGate{}
	events := &eventLog{}
	nl := lease.New(store, lease.Config{Owner: "me", TTL: 30 * time.Millisecond})
	keeper := NewLeaseKeeper(nl, topo, gate, 5*time.Millisecond)
	keeper.events = events

	require.NoError(t, keeper.Acquire(context.Background()))
	assert.True(t, gate.Available())
	assert.Equal(t, uint16(0), topo.NodeID())

	keeper.Start()
	store.steal("atomicid:node:0")

	assert.Eventually(t, func() bool {
		return gate.Available() && topo.NodeID() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "me", store.get("atomicid:node:1"))

	keeper.Stop()
	assert.False(t, gate.Available())
	assert.Empty(t, store.get("atomicid:node:1"))
	assert.Equal(t, []string{
		"node.acquired:0",
		"node.lost:0",
		"node.acquired:1",
		"node.released:1",
	}, events.all())
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(b.buf.Bytes()), []byte("\n")) {
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m), string(line))
		out = append(out, m)
	}
	return out
}

func TestLeaseKeeper_LogsThroughLogger(t *testing.T) {
	store := &memStore{data: map[string]string{}}
	topo := atomicid.NewTopology()
	nl := lease.New(store, lease.Config{Owner: "me", TTL: 30 * time.Millisecond})
	keeper := NewLeaseKeeper(nl, topo, &NodeGate{}, 5*time.Millisecond)

	out := &lockedBuffer{}
	keeper.log = logger.New(logger.Config{Level: logger.LevelInfo, Output: out, Service: "test"}).
		WithField("component", "lease-keeper")

	require.NoError(t, keeper.Acquire(context.Background()))
	keeper.Start()
	store.steal("atomicid:node:0")
	assert.Eventually(t, func() bool { return topo.NodeID() == 1 }, 2*time.Second, 5*time.Millisecond)
	keeper.Stop()

	var messages []string
	for _, m := range out.lines(t) {
		assert.Equal(t, "lease-keeper", m["component"])
		assert.Equal(t, "test", m["service"])
		messages = append(messages, m["message"].(string))
	}
	assert.Contains(t, messages, "node lease lost, id issuance paused")
	assert.Contains(t, messages, "node lease restored")
}
