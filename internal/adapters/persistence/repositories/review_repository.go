package repositories

import (
	"context"

	"gorm.io/gorm"

	"natours-api/internal/adapters/persistence/models"
)

// reviewRepository implements ReviewRepository interface
type reviewRepository struct {
	*gormRepository[models.Review]
}

func withAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "photo")
	})
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{newGormRepository[models.Review](db, withAuthor)}
}

// RatingStats counts and averages the ratings of one tour
func (r *reviewRepository) RatingStats(ctx context.Context, tourID string) (RatingStats, error) {
	var stats RatingStats
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COUNT(*) AS quantity, COALESCE(AVG(rating), 0) AS average").
		Where("tour_id = ?", tourID).
		Scan(&stats).Error
	return stats, err
}
