// handlers/system_routes.go
package handlers

import (
	"time"

	"vibeproof/middleware"
	"vibeproof/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupSystemRoutes exposes health and Prometheus metrics.
func SetupSystemRoutes(app *fiber.App, db *gorm.DB, gatherer prometheus.Gatherer) {
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"cause":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// SetupAdminRoutes exposes the reconciliation jobs to callers the gateway marks as admin.
func SetupAdminRoutes(app *fiber.App, rec *services.Reconciler, staleAfter time.Duration, logger *zap.Logger) {
	admin := app.Group("/admin", middleware.RequireRole(middleware.RoleAdmin, logger))

	admin.Get("/reconcile", func(c *fiber.Ctx) error {
		drift, err := rec.FindXPDrift(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "reconciliation failed",
				"cause": err.Error(),
			})
		}
		if drift == nil {
			drift = []services.XPDrift{}
		}
		return c.JSON(fiber.Map{"drift": drift})
	})

	admin.Post("/sweep", func(c *fiber.Ctx) error {
		n, err := rec.ExpireStale(c.UserContext(), staleAfter)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "sweep failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"expired": n})
	})
}
