package bootstrap

import (
	"strings"
	"time"

	"atomic_server/adapter/in/http"
	"atomic_server/config"
	"atomic_server/infra/middleware"
	"atomic_server/pkg/apperr"
	"atomic_server/pkg/logger"
	"atomic_server/pkg/ratelimit"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:               "atomicid",
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		// go-json for every JSON body
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:          64 * 1024,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		DisableDefaultDate: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(deps.Metrics))
	app.Use(middleware.Recover())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:  "GET,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders: "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		MaxAge:        86400,
	}))

	var redis http.HealthChecker
	if deps.Store != nil {
		redis = deps.Store
	}
	http.NewHealthHandler(deps.Generator, redis, deps.Gate, deps.Metrics).Register(app)

	api := app.Group("/api/v1")
	var limiter *middleware.RateLimiter
	switch {
	case cfg.RateLimitPerMin <= 0:
	case deps.Store != nil:
		shared := ratelimit.NewSlidingWindowLimiter(deps.Store.Client(),
			cfg.NodeLeasePrefix+":ratelimit", cfg.RateLimitPerMin, time.Minute)
		api.Use(middleware.SharedRateLimit(shared))
	default:
		limiter = middleware.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)
		api.Use(limiter.Handler())
	}

	http.NewIDHandler(deps.Generator, http.IDHandlerConfig{
		DefaultEncoding: cfg.Encoding(),
		MaxBatch:        cfg.MaxBatch,
		Availability:    deps.Gate,
		Metrics:         deps.Metrics,
	}).Register(api)
	http.NewTopologyHandler(deps.Generator, deps.Instance).
		Register(api, middleware.AdminAuth(cfg.AdminJWTSecret))

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET is not set, topology routes are unauthenticated")
	}

	app.Use(func(c *fiber.Ctx) error {
		return apperr.NotFound("route " + c.Path())
	})

	return app, func() {
		if limiter != nil {
			limiter.Stop()
		}
		cleanup()
	}, nil
}
