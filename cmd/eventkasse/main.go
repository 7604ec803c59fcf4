package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/eventkasse/eventkasse/app/controllers"
	"github.com/eventkasse/eventkasse/internal/pkg/cache"
	"github.com/eventkasse/eventkasse/internal/pkg/config"
	"github.com/eventkasse/eventkasse/internal/pkg/database"
	"github.com/eventkasse/eventkasse/internal/pkg/dispatch"
	"github.com/eventkasse/eventkasse/internal/pkg/env"
	"github.com/eventkasse/eventkasse/internal/pkg/handlers"
	"github.com/eventkasse/eventkasse/internal/pkg/queue"
	"github.com/eventkasse/eventkasse/internal/pkg/router"
	"github.com/eventkasse/eventkasse/internal/pkg/sweeper"
	"github.com/eventkasse/eventkasse/internal/pkg/webhook"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	store := webhook.NewStore(database.GetDB())
	publisher := queue.NewClient(cfg)

	// The handler registry is the only place business logic touches the
	// pipeline. Everything registered here runs at most once per event id.
	registry := dispatch.NewRegistry()
	repo := handlers.NewRepository(database.GetDB())
	handlers.NewPaymentHandlers(repo).RegisterAll(registry)
	handlers.NewAccountHandlers(repo).RegisterAll(registry)

	// Safety net for events the queue lost track of: abandoned claims and
	// retryable failures whose queue-side retries ran out get republished.
	sweeper.New(database.GetDB(), publisher, 5*time.Minute).Start()

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // webhook payloads are small; 1 MiB is generous
	})

	// recover turns handler panics into 500s, which the queue treats as
	// retryable. Unknown failures fail open toward retry.
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	router.InstallRouter(app, router.NewWebhookRouter(
		cfg,
		controllers.NewWebhookController(cfg, store, publisher),
		controllers.NewWorkerController(cfg, store, registry),
		controllers.NewCounterController(),
	))

	return app
}
