package router

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/eventkasse/eventkasse/app/controllers"
	"github.com/eventkasse/eventkasse/internal/pkg/cache"
	"github.com/eventkasse/eventkasse/internal/pkg/config"
	"github.com/eventkasse/eventkasse/internal/pkg/env"
	"github.com/eventkasse/eventkasse/internal/pkg/middleware"
)

// WebhookRouter installs the two pipeline endpoints: the public ingestion
// route and the queue-only worker route.
type WebhookRouter struct {
	cfg     *config.Config
	ingest  *controllers.WebhookController
	worker  *controllers.WorkerController
	counter *controllers.CounterController
}

func NewWebhookRouter(cfg *config.Config, ingest *controllers.WebhookController, worker *controllers.WorkerController, counterCtrl *controllers.CounterController) *WebhookRouter {
	return &WebhookRouter{cfg: cfg, ingest: ingest, worker: worker, counter: counterCtrl}
}

func (r *WebhookRouter) InstallRouter(app *fiber.App) {
	ingestHandlers := []fiber.Handler{}

	// IP allowlisting only applies in production-like environments.
	if r.cfg.IPAllowlistEnabled && r.cfg.IsProd() {
		ingestHandlers = append(ingestHandlers, middleware.IPAllowlistMiddleware(r.cfg.IPAllowlist))
	}

	// Sliding-window rate limit, shared across instances via Redis. Runs
	// before the body is touched.
	ingestHandlers = append(ingestHandlers, limiter.New(limiter.Config{
		Max:               r.cfg.RateLimitMax,
		Expiration:        r.cfg.RateLimitWindow,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           newLimiterStorage(),
	}))

	ingestHandlers = append(ingestHandlers, r.ingest.HandleIngest)
	app.Post("/webhooks/:provider", ingestHandlers...)

	// The worker route is invoked by the hosted queue only; its own signature
	// check rejects everything else, so no limiter applies here.
	app.Post("/workers/:provider-webhook", r.worker.HandleProcess)

	app.Get("/ops/webhooks/counters", r.counter.HandleSnapshot)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}

// newLimiterStorage builds a Redis-backed limiter store reusing the cache
// connection settings (DB 1; the cache itself uses DB 0).
func newLimiterStorage() fiber.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")

	if cacheClient := cache.GetClient(); cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
	})
}
