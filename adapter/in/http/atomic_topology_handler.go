package http

import (
	"atomic_server/pkg/apperr"
	"atomic_server/pkg/atomicid"
	"atomic_server/pkg/logger"
	"atomic_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type TopologyHandler struct {
	gen      *atomicid.Generator
	instance string
}

func NewTopologyHandler(gen *atomicid.Generator, instance string) *TopologyHandler {
	return &TopologyHandler{gen: gen, instance: instance}
}

// Register mounts the read route on router and the epoch mutations behind
// admin.
func (h *TopologyHandler) Register(router fiber.Router, admin fiber.Handler) {
	router.Get("/topology", h.Get)
	router.Put("/topology/epoch", admin, h.SetEpoch)
	router.Delete("/topology/epoch", admin, h.ResetEpoch)
}

// TopologyResponse describes the generator state of this instance.
type TopologyResponse struct {
	Instance string            `json:"instance"`
	Topology atomicid.Snapshot `json:"topology"`
	Layouts  []atomicid.Layout `json:"layouts"`
}

func (h *TopologyHandler) Get(c *fiber.Ctx) error {
	layouts := make([]atomicid.Layout, 0, len(atomicid.Widths))
	for _, w := range atomicid.Widths {
		layouts = append(layouts, w.Layout())
	}
	return response.OK(c, TopologyResponse{
		Instance: h.instance,
		Topology: h.gen.Topology().Snapshot(),
		Layouts:  layouts,
	})
}

type setEpochRequest struct {
	EpochMS *int64 `json:"epoch_ms"`
}

func (h *TopologyHandler) SetEpoch(c *fiber.Ctx) error {
	var req setEpochRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid JSON body")
	}
	if req.EpochMS == nil {
		return apperr.BadRequest("epoch_ms is required").WithDetail("field", "epoch_ms")
	}

	topo := h.gen.Topology()
	prev := topo.Epoch()
	topo.SetEpoch(*req.EpochMS)
	logger.WithContext(c.UserContext()).
		WithFields(map[string]any{"from": prev, "to": *req.EpochMS, "admin": c.Locals("admin")}).
		Warn("epoch changed")

	return response.OK(c, topo.Snapshot())
}

func (h *TopologyHandler) ResetEpoch(c *fiber.Ctx) error {
	topo := h.gen.Topology()
	topo.ResetEpoch()
	logger.WithContext(c.UserContext()).Warn("epoch reset to default")
	return response.OK(c, topo.Snapshot())
}
