package http

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"atomic_server/infra/middleware"
	"atomic_server/pkg/apperr"
	"atomic_server/pkg/atomicid"
	"atomic_server/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gate struct{ ok atomic.Bool }

func (g *gate) Available() bool { return g.ok.Load() }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Count    int    `json:"count"`
		Width    int    `json:"width"`
		Encoding string `json:"encoding"`
	} `json:"meta"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

type fixture struct {
	app  *fiber.App
	gen  *atomicid.Generator
	gate *gate
	reg  *metrics.Registry
}

func newFixture(t *testing.T, redis HealthChecker) *fixture {
	t.Helper()
	topo := atomicid.NewTopology()
	require.NoError(t, topo.SetNodeID(42))
	gen := atomicid.NewGenerator(atomicid.Config{Topology: topo})
	g := &gate{}
	g.ok.Store(true)
	reg := metrics.NewRegistry(100)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(middleware.RequestID(), middleware.RequestLogger(reg))

	api := app.Group("/api/v1")
	NewIDHandler(gen, IDHandlerConfig{
		DefaultEncoding: atomicid.Base36,
		MaxBatch:        100,
		Availability:    g,
		Metrics:         reg,
	}).Register(api)
	NewTopologyHandler(gen, "test-instance").Register(api, middleware.AdminAuth(""))
	NewHealthHandler(gen, redis, g, reg).Register(app)

	return &fixture{app: app, gen: gen, gate: g, reg: reg}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestGenerate_Single(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		path    string
		wantLen int
		wantEnc string
	}{
		{"/api/v1/ids/64", 13, "base36"},
		{"/api/v1/ids/x128?enc=base58", 22, "base58"},
		{"/api/v1/ids/256?enc=hex", 64, "hex"},
		{"/api/v1/ids/24?enc=91", 4, "base91"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, env := f.do(t, "GET", tt.path, "")
			require.Equal(t, fiber.StatusOK, status)

			var got IDResponse
			require.NoError(t, json.Unmarshal(env.Data, &got))
			assert.Len(t, got.ID, tt.wantLen)
			assert.Equal(t, tt.wantEnc, got.Encoding)
		})
	}
}

func TestGenerate_Batch(t *testing.T) {
	f := newFixture(t, nil)

	status, env := f.do(t, "GET", "/api/v1/ids/64?count=50&enc=hex", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 50, env.Meta.Count)
	assert.Equal(t, 64, env.Meta.Width)

	var data struct {
		IDs []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.IDs, 50)
	for i := 1; i < len(data.IDs); i++ {
		assert.Less(t, data.IDs[i-1], data.IDs[i])
	}
	assert.Equal(t, uint64(50), f.reg.Counters()["ids_x64"])
}

func TestGenerate_InvalidInput(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name     string
		path     string
		wantCode string
	}{
		{"width", "/api/v1/ids/48", apperr.CodeInvalidInput},
		{"encoding", "/api/v1/ids/64?enc=base64", apperr.CodeInvalidInput},
		{"count not a number", "/api/v1/ids/64?count=abc", apperr.CodeInvalidInput},
		{"count negative", "/api/v1/ids/64?count=-1", apperr.CodeBadRequest},
		{"count too large", "/api/v1/ids/64?count=101", apperr.CodeBadRequest},
		{"sequential count not a number", "/api/v1/sequential?count=1x", apperr.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := f.do(t, "GET", tt.path, "")
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestGenerate_EmptyBatch(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/api/v1/ids/128?count=0", "/api/v1/sequential?count=0"} {
		t.Run(path, func(t *testing.T) {
			status, env := f.do(t, "GET", path, "")
			require.Equal(t, fiber.StatusOK, status)
			assert.Zero(t, env.Meta.Count)
			assert.JSONEq(t, `{"ids":[]}`, string(env.Data))
		})
	}
}

func TestGenerate_NodeUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.gate.ok.Store(false)

	status, env := f.do(t, "GET", "/api/v1/ids/64", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, CodeNodeUnavailable, env.Error.Code)

	// Sequential IDs carry no node id.
	status, _ = f.do(t, "GET", "/api/v1/sequential", "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRaw(t *testing.T) {
	f := newFixture(t, nil)

	status, env := f.do(t, "GET", "/api/v1/ids/64/raw", "")
	require.Equal(t, fiber.StatusOK, status)

	var raw RawResponse
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	assert.Equal(t, uint16(42), raw.Fields.Node)
	assert.Len(t, raw.Hex, 16)
	assert.Len(t, raw.ID, 13)
	assert.Equal(t, uint16(42), raw.Topo.NodeID)
}

func TestSequential(t *testing.T) {
	f := newFixture(t, nil)

	status, env := f.do(t, "GET", "/api/v1/sequential?count=3&enc=hex", "")
	require.Equal(t, fiber.StatusOK, status)

	var data struct {
		IDs []string `json:"ids"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, []string{"0000000000000000", "0000000000000001", "0000000000000002"}, data.IDs)
}

func TestTopology(t *testing.T) {
	f := newFixture(t, nil)

	status, env := f.do(t, "GET", "/api/v1/topology", "")
	require.Equal(t, fiber.StatusOK, status)
	var topo TopologyResponse
	require.NoError(t, json.Unmarshal(env.Data, &topo))
	assert.Equal(t, "test-instance", topo.Instance)
	assert.Equal(t, atomicid.DefaultEpoch, topo.Topology.EpochMS)
	assert.Len(t, topo.Layouts, len(atomicid.Widths))

	status, env = f.do(t, "PUT", "/api/v1/topology/epoch", `{"epoch_ms": 1700000000000}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(1700000000000), f.gen.Topology().Epoch())

	status, env = f.do(t, "PUT", "/api/v1/topology/epoch", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeBadRequest, env.Error.Code)

	status, _ = f.do(t, "DELETE", "/api/v1/topology/epoch", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, atomicid.DefaultEpoch, f.gen.Topology().Epoch())
}

func TestReady(t *testing.T) {
	tests := []struct {
		name      string
		redis     HealthChecker
		available bool
		want      int
	}{
		{"static node", nil, true, fiber.StatusOK},
		{"redis healthy", fakePinger{}, true, fiber.StatusOK},
		{"redis down", fakePinger{err: errors.New("refused")}, true, fiber.StatusServiceUnavailable},
		{"lease lost", fakePinger{}, false, fiber.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.redis)
			f.gate.ok.Store(tt.available)

			resp, err := f.app.Test(httptest.NewRequest("GET", "/ready", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, "GET", "/api/v1/ids/128?count=5", "")

	resp, err := f.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Engine   atomicid.Stats            `json:"engine"`
		Latency  map[string]map[string]any `json:"latency"`
		Counters map[string]uint64         `json:"counters"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, uint64(5), body.Counters["ids_x128"])
	assert.Contains(t, body.Latency, "/api/v1/ids/:width")
}
