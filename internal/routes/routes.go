// Package routes defines the API routing configuration.
package routes

import (
	"loyalty/internal/handlers"
	"loyalty/internal/middleware"
	"loyalty/internal/services/loyalty"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Dependencies is everything the routes need. Redis and Gatherer are
// optional.
type Dependencies struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Components *loyalty.Components
	Gatherer   prometheus.Gatherer
}

// SetupRoutes registers the public endpoints and the merchant API.
func SetupRoutes(app *fiber.App, deps Dependencies) {
	health := handlers.NewHealthHandler(deps.DB, deps.Redis)
	app.Get("/health", health.HealthCheck)

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	apiKeys := middleware.NewAPIKeyMiddleware(deps.Components.APIKeys)
	h := handlers.NewLoyaltyHandler(deps.Components.Service, deps.Components.Wallets)

	api := app.Group("/api/v1/loyalty", apiKeys.Handler)
	api.Post("/quote", h.Quote)
	api.Post("/commit", h.Commit)
	api.Post("/cancel", h.Cancel)
	api.Post("/refund", h.Refund)
	api.Get("/balance/:customerId", h.Balance)
	api.Get("/transactions/:customerId", h.Transactions)
}
