// Package main runs the loyalty ledger HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyalty/internal/config"
	"loyalty/internal/logging"
	"loyalty/internal/metrics"
	"loyalty/internal/repositories"
	"loyalty/internal/repositories/cache"
	"loyalty/internal/routes"
	"loyalty/internal/services/auth"
	"loyalty/internal/services/loyalty"
	"loyalty/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()
	logging.Setup("loyalty", cfg.Env, cfg.LogLevel)

	db, err := repositories.InitDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get database instance")
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database connection")
		}
	}()

	// Redis only fronts the database; run without it when unreachable
	var front cache.Cache = cache.NopCache{}
	var redisClient *redis.Client
	cacheService := cache.NewCacheService(cache.NewRedisClient(cfg.Redis), cfg.BalanceCacheTTL)
	if err := cacheService.HealthCheck(context.Background()); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, caching disabled")
		cacheService.Close()
		cacheService = nil
	} else {
		front = cacheService
		redisClient = cacheService.Client()
		defer cacheService.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewPrometheusCollector("loyalty", registry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	components := loyalty.Build(db, front, collector, auth.NewTokenService(cfg.TokenSecret, cfg.TokenTTL), loyalty.Options{
		BalanceTTL:     cfg.BalanceCacheTTL,
		IdempotencyTTL: cfg.IdempotencyTTL,
		APIKeyTTL:      cfg.APIKeyCacheTTL,
	})

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			stats := sqlDB.Stats()
			event := log.Debug().
				Int("db_open", stats.OpenConnections).
				Int("db_idle", stats.Idle).
				Int("db_in_use", stats.InUse).
				Int64("db_wait_count", stats.WaitCount).
				Dur("db_wait", stats.WaitDuration)
			if cacheService != nil {
				pool := cacheService.GetStats(context.Background())
				event = event.Uint32("redis_hits", pool.Hits).
					Uint32("redis_misses", pool.Misses).
					Uint32("redis_total_conns", pool.TotalConns)
			}
			event.Msg("connection pool stats")
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      "loyalty",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, X-Api-Key, Idempotency-Key",
		AllowMethods: "GET,POST,HEAD",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Use("/api/v1/loyalty", limiter.New(limiter.Config{
		Max:        config.GetIntEnv("RATE_LIMIT_PER_MINUTE", 600),
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if key := c.Get("X-Api-Key"); key != "" {
				return key
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.Respond(c, fiber.StatusTooManyRequests, fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	routes.SetupRoutes(app, routes.Dependencies{
		DB:         db,
		Redis:      redisClient,
		Components: components,
		Gatherer:   registry,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("loyalty server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
