package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Version  string
	Env      string
	Gatherer prometheus.Gatherer // nil uses the default registry

	// RequestTimeout bounds the context handed to handlers; 0 leaves only
	// server shutdown as a cancellation source.
	RequestTimeout time.Duration
}

// requestContext gives each request a user context that ends on server
// shutdown or after timeout. fasthttp does not report client disconnects, so
// the timeout is what releases work for callers that went away.
func requestContext(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			ctx    context.Context
			cancel context.CancelFunc
		)
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(c.Context(), timeout)
		} else {
			ctx, cancel = context.WithCancel(c.Context())
		}
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func SetupRouter(app *fiber.App, handler *RecommendationHandler, cfg RouterConfig) {
	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "healthy",
			"version": cfg.Version,
			"env":     cfg.Env,
		})
	})

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API Versioning
	v1 := app.Group("/v1", requestContext(cfg.RequestTimeout))
	v1.Post("/recommendations", handler.HandleRecommend)
	v1.Post("/knowledge", handler.HandleIndexKnowledge)
}
