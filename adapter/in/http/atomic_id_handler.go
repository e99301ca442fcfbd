package http

import (
	"strconv"
	"time"

	"atomic_server/pkg/apperr"
	"atomic_server/pkg/atomicid"
	"atomic_server/pkg/metrics"
	"atomic_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CodeNodeUnavailable is returned while the instance holds no node id.
const CodeNodeUnavailable = "NODE_UNAVAILABLE"

// Availability reports whether the instance may issue topology-bearing IDs.
type Availability interface {
	Available() bool
}

type alwaysAvailable struct{}

func (alwaysAvailable) Available() bool { return true }

// IDHandlerConfig for NewIDHandler
type IDHandlerConfig struct {
	DefaultEncoding atomicid.Encoding
	MaxBatch        int
	Availability    Availability
	Metrics         *metrics.Registry
}

type IDHandler struct {
	gen      *atomicid.Generator
	enc      atomicid.Encoding
	maxBatch int
	avail    Availability
	metrics  *metrics.Registry
}

func NewIDHandler(gen *atomicid.Generator, cfg IDHandlerConfig) *IDHandler {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 10000
	}
	if cfg.Availability == nil {
		cfg.Availability = alwaysAvailable{}
	}
	return &IDHandler{
		gen:      gen,
		enc:      cfg.DefaultEncoding,
		maxBatch: cfg.MaxBatch,
		avail:    cfg.Availability,
		metrics:  cfg.Metrics,
	}
}

func (h *IDHandler) Register(router fiber.Router) {
	router.Get("/ids/:width", h.Generate)
	router.Get("/ids/:width/raw", h.Raw)
	router.Get("/sequential", h.Sequential)
}

// IDResponse is a single encoded ID.
type IDResponse struct {
	ID       string `json:"id"`
	Width    int    `json:"width"`
	Encoding string `json:"encoding"`
}

// RawResponse is a single ID with its decoded fields.
type RawResponse struct {
	ID     string            `json:"id"`
	Hex    string            `json:"hex"`
	Width  int               `json:"width"`
	Fields atomicid.Fields   `json:"fields"`
	Time   time.Time         `json:"time"`
	Topo   atomicid.Snapshot `json:"topology"`
}

func (h *IDHandler) Generate(c *fiber.Ctx) error {
	width, err := atomicid.ParseWidth(c.Params("width"))
	if err != nil {
		return apperr.InvalidInput("width", err)
	}
	enc, err := h.encoding(c)
	if err != nil {
		return err
	}
	count, err := h.count(c)
	if err != nil {
		return err
	}
	if !h.avail.Available() {
		return apperr.New(CodeNodeUnavailable, "node id lease not held", fiber.StatusServiceUnavailable)
	}

	h.record(width, count)
	if count == 1 {
		return response.OK(c, IDResponse{
			ID:       h.gen.New(width, enc),
			Width:    int(width),
			Encoding: enc.String(),
		})
	}
	return response.OKWithMeta(c, fiber.Map{"ids": h.gen.Batch(width, enc, count)}, &response.Meta{
		Count:    count,
		Width:    int(width),
		Encoding: enc.String(),
	})
}

func (h *IDHandler) Raw(c *fiber.Ctx) error {
	width, err := atomicid.ParseWidth(c.Params("width"))
	if err != nil {
		return apperr.InvalidInput("width", err)
	}
	enc, err := h.encoding(c)
	if err != nil {
		return err
	}
	if !h.avail.Available() {
		return apperr.New(CodeNodeUnavailable, "node id lease not held", fiber.StatusServiceUnavailable)
	}

	h.record(width, 1)
	topo := h.gen.Topology().Snapshot()
	id := h.gen.Generate(width)
	return response.OK(c, RawResponse{
		ID:     id.Encode(enc),
		Hex:    id.String(),
		Width:  int(width),
		Fields: id.Fields(),
		Time:   id.Time(topo.EpochMS),
		Topo:   topo,
	})
}

// Sequential serves counter based 64-bit IDs. They carry no node id, so they
// stay available without a lease.
func (h *IDHandler) Sequential(c *fiber.Ctx) error {
	enc, err := h.encoding(c)
	if err != nil {
		return err
	}
	count, err := h.count(c)
	if err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.Add("ids_sequential", uint64(count))
	}
	ids := h.gen.SequentialBatch(count)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Encode(enc)
	}
	return response.OKWithMeta(c, fiber.Map{"ids": out}, &response.Meta{
		Count:    count,
		Width:    int(atomicid.W64),
		Encoding: enc.String(),
	})
}

func (h *IDHandler) encoding(c *fiber.Ctx) (atomicid.Encoding, error) {
	raw := c.Query("enc")
	if raw == "" {
		return h.enc, nil
	}
	enc, err := atomicid.ParseEncoding(raw)
	if err != nil {
		return 0, apperr.InvalidInput("enc", err)
	}
	return enc, nil
}

// count reads ?count=, 1 when absent. Zero is a valid, empty batch.
func (h *IDHandler) count(c *fiber.Ctx) (int, error) {
	raw := c.Query("count")
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidInput("count", err)
	}
	if n < 0 || n > h.maxBatch {
		return 0, apperr.BadRequest("count must be between 0 and max batch").
			WithDetail("field", "count").
			WithDetail("max", h.maxBatch)
	}
	return n, nil
}

func (h *IDHandler) record(w atomicid.Width, n int) {
	if h.metrics != nil {
		h.metrics.Add("ids_"+w.String(), uint64(n))
	}
}
