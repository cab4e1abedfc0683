// Package testutil builds in-memory databases and fixtures for tests.
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/config"
	"natours-api/internal/core/domain"
	"natours-api/internal/pkg/password"
)

// Password is the plaintext password of every fixture user.
const Password = "pass1234"

// NewDB opens a migrated in-memory SQLite database that lives as long as t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	password.Cost = bcrypt.MinCost

	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig(logger.Discard))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to ":memory:" is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// Config returns a dev configuration with rate limiting and cron disabled.
func Config() *config.Config {
	return &config.Config{
		AppMode: "dev",
		Port:    "0",
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			ExpiresIn:         time.Hour,
			CookieExpiresDays: 1,
		},
		Cookie: config.CookieConfig{SameSite: "lax"},
		Auth: config.AuthConfig{
			ResetTokenTTL: 10 * time.Minute,
		},
		Stripe: config.StripeConfig{Currency: "usd"},
	}
}

// CreateUser inserts an active user with the fixture password.
func CreateUser(t testing.TB, db *gorm.DB, name, email string, role domain.Role) *models.User {
	t.Helper()

	hash, err := password.Hash(Password)
	require.NoError(t, err)

	user := &models.User{
		Name:     name,
		Email:    email,
		Photo:    "default.jpg",
		Role:     role,
		Password: hash,
		Active:   true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTour inserts a visible tour.
func CreateTour(t testing.TB, db *gorm.DB, name string, price float64, difficulty string) *models.Tour {
	t.Helper()

	tour := &models.Tour{
		Name:           name,
		Slug:           "",
		Duration:       5,
		MaxGroupSize:   10,
		Difficulty:     difficulty,
		RatingsAverage: domain.DefaultRatingsAverage,
		Price:          price,
		Summary:        "A fixture tour",
		ImageCover:     "tour-cover.jpg",
	}
	require.NoError(t, db.Omit("Guides", "Reviews").Create(tour).Error)
	return tour
}

// CreateReview inserts a review without touching tour aggregates.
func CreateReview(t testing.TB, db *gorm.DB, tourID, userID string, rating float64) *models.Review {
	t.Helper()

	review := &models.Review{
		Review: "Fixture review",
		Rating: rating,
		TourID: tourID,
		UserID: userID,
	}
	require.NoError(t, db.Omit("User").Create(review).Error)
	return review
}
