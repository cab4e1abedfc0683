package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/config"
	"natours-api/internal/core/services"
	"natours-api/internal/pkg/logger"
)

func main() {
	importData := flag.Bool("import", false, "import tours, users and reviews")
	deleteData := flag.Bool("delete", false, "delete all tours, users, reviews and bookings")
	dir := flag.String("dir", "dev-data", "directory holding the seed JSON files")
	flag.Parse()

	if *importData == *deleteData {
		log.Fatal("usage: seed --import|--delete [--dir dev-data]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logg, err := logger.New(cfg.AppMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logg.Sync() //nolint:errcheck

	db, err := config.ConnectDatabase(cfg, logg)
	if err != nil {
		logg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer config.CloseDatabase(db) //nolint:errcheck

	if err := models.AutoMigrate(db); err != nil {
		logg.Fatal("failed to auto migrate", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	seeder := config.NewSeeder(db, logg)

	if *deleteData {
		if err := seeder.Delete(ctx); err != nil {
			logg.Fatal("failed to delete data", zap.Error(err))
		}
		return
	}

	data, err := config.LoadSeedData(*dir)
	if err != nil {
		logg.Fatal("failed to read seed data", zap.Error(err))
	}
	if err := seeder.Import(ctx, data); err != nil {
		logg.Fatal("failed to import data", zap.Error(err))
	}

	// Seeded reviews bypass the write path; bring tour ratings in line
	ratings := services.NewRatingsService(
		repositories.NewReviewRepository(db),
		repositories.NewTourRepository(db),
		logg,
	)
	if err := ratings.RecomputeAll(ctx); err != nil {
		logg.Fatal("failed to recompute ratings", zap.Error(err))
	}
}
