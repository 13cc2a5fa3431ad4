package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradeledger-api/internal/config"
	"github.com/noah-isme/gradeledger-api/internal/handler"
	"github.com/noah-isme/gradeledger-api/internal/middleware"
	"github.com/noah-isme/gradeledger-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradeHandler        *handler.GradeHandler
	ModificationHandler *handler.ModificationHandler
	AuditHandler        *handler.AuditHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.GradeHandler != nil {
		grades := api.Group("/grades", jwtMiddleware)
		grades.Use("/events", middleware.RateLimit("grade_events", 30, time.Minute))
		deps.GradeHandler.Register(grades)

		if deps.ModificationHandler != nil {
			deps.ModificationHandler.Register(grades)
		}
	}

	if deps.AuditHandler != nil {
		audit := api.Group("/audit", jwtMiddleware, middleware.RequireRole("admin", "headteacher"))
		deps.AuditHandler.Register(audit)
	}
}
