// Package main provides the Taskflow API server implementation.
package main

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukex/taskflow/pkg/cache"
	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/services"
	"github.com/dukex/taskflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger         *slog.Logger
	persistence    persistence.Persistence
	cache          cache.Cache
	eventBus       eventbus.EventBus
	tracer         trace.Tracer
	metricsHandler http.Handler
	validate       *validator.Validate
}

type Option func(*API)

func WithCache(c cache.Cache) Option {
	return func(a *API) { a.cache = c }
}

func WithEventBus(bus eventbus.EventBus) Option {
	return func(a *API) { a.eventBus = bus }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(a *API) { a.tracer = tracer }
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *API) { a.metricsHandler = h }
}

func NewAPI(logger *slog.Logger, persistence persistence.Persistence, opts ...Option) *API {
	a := &API{
		logger:      logger,
		persistence: persistence,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *API) App() *fiber.App {
	serviceOpts := []services.Option{services.WithLogger(a.logger)}

	if a.cache != nil {
		serviceOpts = append(serviceOpts, services.WithCache(a.cache))
	}

	if a.eventBus != nil {
		serviceOpts = append(serviceOpts, services.WithPublisher(a.eventBus))
	}

	if a.tracer != nil {
		serviceOpts = append(serviceOpts, services.WithTracer(a.tracer))
	}

	workflowService := services.NewWorkflow(a.persistence, serviceOpts...)
	suggestionService := services.NewSuggestion(a.tracer, a.logger)

	handlers := web.NewAPIHandlers(workflowService, suggestionService, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.persistence.HealthCheck(c.Context()) == nil
		},
	}))

	if a.metricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(a.metricsHandler))
	}

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Taskflow API")
	})

	handlers.Routes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
