package http

import (
	"context"
	"time"

	"atomic_server/pkg/atomicid"
	"atomic_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	gen     *atomicid.Generator
	redis   HealthChecker
	avail   Availability
	metrics *metrics.Registry
}

// NewHealthHandler builds the health checks. redis and avail may be nil when the
// node id is static.
func NewHealthHandler(gen *atomicid.Generator, redis HealthChecker, avail Availability, reg *metrics.Registry) *HealthHandler {
	if avail == nil {
		avail = alwaysAvailable{}
	}
	return &HealthHandler{gen: gen, redis: redis, avail: avail, metrics: reg}
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	app.Get("/metrics", h.Metrics)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	if h.avail.Available() {
		checks["node"] = "held"
	} else {
		checks["node"] = "not held"
		allHealthy = false
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"topology":  h.gen.Topology().Snapshot(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	latencies := map[string]any{}
	var counters map[string]uint64
	if h.metrics != nil {
		for route, s := range h.metrics.Latencies() {
			latencies[route] = s.ToMap()
		}
		counters = h.metrics.Counters()
	}
	return c.JSON(fiber.Map{
		"engine":    h.gen.Stats(),
		"latency":   latencies,
		"counters":  counters,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
