// Package main provides the AssetFlow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/assetflow-io/assetflow/pkg/authz"
	"github.com/assetflow-io/assetflow/pkg/eventbus"
	"github.com/assetflow-io/assetflow/pkg/otelhelper"
	"github.com/assetflow-io/assetflow/pkg/persistence"
	"github.com/assetflow-io/assetflow/pkg/services"
	"github.com/assetflow-io/assetflow/pkg/watch"
	"github.com/assetflow-io/assetflow/pkg/web"
)

type API struct {
	logger           *slog.Logger
	persistence      persistence.Persistence
	eventBus         eventbus.EventBus
	inspectionOffset time.Duration
	validate         *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persist persistence.Persistence,
	eventBus eventbus.EventBus,
	inspectionOffset time.Duration,
) *API {
	return &API{
		logger:           logger,
		persistence:      persist,
		eventBus:         eventBus,
		inspectionOffset: inspectionOffset,
		validate:         validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App(ctx context.Context) (*fiber.App, error) {
	roleService := services.NewRoles(a.persistence)
	gate := authz.NewGate(roleService)
	inspectionService := services.NewInspections(a.persistence, roleService, a.eventBus, a.logger, a.inspectionOffset)
	recordService := services.NewRecords(a.persistence, gate, a.eventBus, inspectionService, a.logger)

	if tracer, err := otelhelper.NewTracer(ctx, "assetflow-api"); err != nil {
		a.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	} else {
		recordService = recordService.WithTracer(tracer)
	}

	handlers := web.NewAPIHandlers(recordService, inspectionService, roleService, a.validate)

	watcher := watch.NewWatcher(a.eventBus)
	if err := watcher.Start(ctx); err != nil {
		return nil, err
	}

	streams := web.NewStreamHandlers(watcher)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("AssetFlow API")
	})

	r := app.Group("/records/:type")
	r.Post("/", handlers.CreateRecord)
	r.Get("/", handlers.ListRecords)
	r.Get("/watch", streams.StreamChanges)
	r.Get("/:id", handlers.GetRecord)
	r.Delete("/:id", handlers.DeleteRecord)
	r.Post("/:id/actions/:action", handlers.ApplyAction)
	r.Post("/:id/comments", handlers.AddComment)
	r.Get("/:id/threads", handlers.GetThreads)
	r.Get("/:id/watch", streams.StreamChanges)

	app.Get("/inspections", handlers.ListInspections)
	app.Post("/inspections/:id/actions/:action", handlers.ApplyInspectionAction)
	app.Delete("/inspections/:id", handlers.DeleteInspection)

	app.Get("/roles", handlers.GetRoles)
	app.Put("/roles", handlers.UpdateRoles)

	app.Get("/health", handlers.HealthCheck)

	return app, nil
}

func (a *API) Start(ctx context.Context, port int) error {
	app, err := a.App(ctx)
	if err != nil {
		return err
	}

	return app.Listen(":" + strconv.Itoa(port))
}
