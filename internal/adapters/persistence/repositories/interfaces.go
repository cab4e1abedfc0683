package repositories

import (
	"context"
	"time"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/pkg/query"
)

// Repository is the storage contract shared by every resource. Reads go
// through the resource's scopes; a record a scope hides behaves as absent.
type Repository[T any] interface {
	Create(ctx context.Context, record *T) error
	FindByID(ctx context.Context, id string, preload ...string) (*T, error)
	FindOne(ctx context.Context, conds ...query.Condition) (*T, error)
	Find(ctx context.Context, spec *query.Spec) ([]T, error)
	UpdateByID(ctx context.Context, id string, record *T) error
	DeleteByID(ctx context.Context, id string) (*T, error)
}

// UserRepository defines user repository interface
type UserRepository interface {
	Repository[models.User]
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	Deactivate(ctx context.Context, id string) error
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// TourStats is one difficulty bucket of the tour statistics report.
type TourStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int64   `json:"numTours"`
	NumRatings int64   `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

// TourRepository defines tour repository interface
type TourRepository interface {
	Repository[models.Tour]
	Stats(ctx context.Context, minRating float64) ([]TourStats, error)
	ListSchedules(ctx context.Context) ([]models.Tour, error)
	ListStartLocations(ctx context.Context) ([]models.Tour, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Tour, error)
	IDs(ctx context.Context) ([]string, error)
	SetRatings(ctx context.Context, id string, quantity int64, average float64) error
}

// RatingStats is the aggregate of every review of one tour.
type RatingStats struct {
	Quantity int64
	Average  float64
}

// ReviewRepository defines review repository interface
type ReviewRepository interface {
	Repository[models.Review]
	RatingStats(ctx context.Context, tourID string) (RatingStats, error)
}

// BookingRepository defines booking repository interface
type BookingRepository interface {
	Repository[models.Booking]
	TourIDsForUser(ctx context.Context, userID string) ([]string, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Booking, error)
}
