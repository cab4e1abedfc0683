package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"natours-api/internal/adapters/cache"
	"natours-api/internal/adapters/http/routes"
	"natours-api/internal/adapters/payment"
	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/config"
	"natours-api/internal/core/services"
	"natours-api/internal/pkg/logger"

	_ "natours-api/docs" // Swagger docs
)

// @title Natours API
// @version 1.0
// @description Tour booking API: tours, reviews, users and bookings.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@natours.dev

// @license.name MIT

// @host localhost:8000
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.AppMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logg.Sync() //nolint:errcheck

	if !cfg.EnvFileLoaded {
		logg.Info("no .env file found, using process environment")
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg, logg)
	if err != nil {
		logg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := config.CloseDatabase(db); err != nil {
			logg.Error("failed to close database", zap.Error(err))
		}
	}()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		logg.Fatal("failed to auto migrate", zap.Error(err))
	}
	logg.Info("database migration completed")

	// Rate limiter store
	var storage fiber.Storage
	if cfg.Redis.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.Connect(ctx, cfg.Redis)
		cancel()
		if err != nil {
			logg.Warn("redis unavailable, rate limiting per instance", zap.Error(err))
		} else {
			redisStorage := cache.NewRedisStorage(client, cache.DefaultPrefix)
			defer redisStorage.Close()
			storage = redisStorage
		}
	}

	// Payment gateway
	var payments services.PaymentGateway
	if cfg.Stripe.SecretKey != "" {
		gateway, err := payment.NewStripeGateway(cfg.Stripe)
		if err != nil {
			logg.Fatal("failed to configure payments", zap.Error(err))
		}
		payments = gateway
	} else {
		logg.Warn("stripe secret key not set, checkout disabled")
	}

	application := routes.NewApp(routes.Deps{
		DB:       db,
		Config:   cfg,
		Log:      logg,
		Payments: payments,
		Storage:  storage,
	})

	// Nightly ratings reconcile and reset token cleanup
	if err := application.Cron.Start(); err != nil {
		logg.Fatal("failed to start cron", zap.Error(err))
	}

	// Graceful shutdown
	drained := make(chan struct{})
	go gracefulShutdown(application.Fiber, logg, drained)

	// Start server
	logg.Info("server starting", zap.String("port", cfg.Port), zap.String("mode", cfg.AppMode))
	if err := application.Fiber.Listen(":" + cfg.Port); err != nil {
		logg.Fatal("failed to start server", zap.Error(err))
	}

	// Listen returns as soon as shutdown starts; in-flight requests may
	// still schedule recomputes until the drain completes.
	<-drained
	application.Ratings.Close()
	application.Cron.Stop()
	logg.Info("server stopped gracefully")
}

// gracefulShutdown stops the server on SIGINT or SIGTERM and closes drained
// once in-flight requests have finished or the timeout has passed
func gracefulShutdown(app *fiber.App, logg *zap.Logger, drained chan<- struct{}) {
	defer close(drained)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down server")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logg.Error("error during shutdown", zap.Error(err))
	}
}
