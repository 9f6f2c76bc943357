package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewHealthHandler builds the health handler. redis may be nil.
func NewHealthHandler(db *gorm.DB, redis *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	services := fiber.Map{"database": "connected"}

	if err := h.pingDB(ctx); err != nil {
		log.Error().Err(err).Msg("database health check failed")
		services["database"] = "unavailable"
		status = fiber.StatusServiceUnavailable
	}

	if h.redis == nil {
		services["redis"] = "disabled"
	} else if err := h.redis.Ping(ctx).Err(); err != nil {
		// Redis only fronts the database; the service keeps working without it
		log.Warn().Err(err).Msg("redis health check failed")
		services["redis"] = "unavailable"
	} else {
		services["redis"] = "connected"
	}

	state := "ok"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   state,
		"services": services,
	})
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
