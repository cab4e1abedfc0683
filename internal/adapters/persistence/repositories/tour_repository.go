package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"natours-api/internal/adapters/persistence/models"
)

// tourRepository implements TourRepository interface
type tourRepository struct {
	*gormRepository[models.Tour]
}

// hideSecret keeps secret tours out of every read
func hideSecret(db *gorm.DB) *gorm.DB {
	return db.Where("tours.secret_tour = ?", false)
}

func withGuides(db *gorm.DB) *gorm.DB {
	return db.Preload("Guides")
}

// withReviews populates a tour's reviews, newest first, with their authors
func withReviews(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Reviews", func(db *gorm.DB) *gorm.DB {
			return db.Order("reviews.created_at DESC")
		}).
		Preload("Reviews.User", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "photo")
		})
}

// NewTourRepository creates a new tour repository
func NewTourRepository(db *gorm.DB) TourRepository {
	repo := newGormRepository[models.Tour](db, hideSecret, withGuides).
		relation("Reviews", withReviews)
	return &tourRepository{repo}
}

func guideRows(tour *models.Tour) []models.TourGuide {
	rows := make([]models.TourGuide, 0, len(tour.Guides))
	for _, g := range tour.Guides {
		rows = append(rows, models.TourGuide{TourID: tour.ID, UserID: g.ID})
	}
	return rows
}

// Create inserts a tour together with its guide assignments
func (r *tourRepository) Create(ctx context.Context, tour *models.Tour) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(tour).Error; err != nil {
			return err
		}
		if rows := guideRows(tour); len(rows) > 0 {
			return tx.Create(&rows).Error
		}
		return nil
	})
}

// UpdateByID overwrites a tour and replaces its guide assignments
func (r *tourRepository) UpdateByID(ctx context.Context, id string, tour *models.Tour) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateByID(tx, id, tour); err != nil {
			return err
		}
		if err := tx.Where("tour_id = ?", id).Delete(&models.TourGuide{}).Error; err != nil {
			return err
		}
		if rows := guideRows(tour); len(rows) > 0 {
			return tx.Create(&rows).Error
		}
		return nil
	})
}

// DeleteByID removes a tour and its guide assignments
func (r *tourRepository) DeleteByID(ctx context.Context, id string) (*models.Tour, error) {
	tour, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tour_id = ?", id).Delete(&models.TourGuide{}).Error; err != nil {
			return err
		}
		res := tx.Where(byID(id)).Delete(&models.Tour{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tour, nil
}

// Stats groups visible tours rated at least minRating by difficulty
func (r *tourRepository) Stats(ctx context.Context, minRating float64) ([]TourStats, error) {
	var stats []TourStats
	err := r.db.WithContext(ctx).
		Model(&models.Tour{}).
		Scopes(hideSecret).
		Select(`UPPER(difficulty) AS difficulty,
			COUNT(*) AS num_tours,
			COALESCE(SUM(ratings_quantity), 0) AS num_ratings,
			AVG(ratings_average) AS avg_rating,
			AVG(price) AS avg_price,
			MIN(price) AS min_price,
			MAX(price) AS max_price`).
		Where("ratings_average >= ?", minRating).
		Group("UPPER(difficulty)").
		Order("avg_price ASC").
		Scan(&stats).Error
	return stats, err
}

// ListSchedules gets the name and start dates of every visible tour
func (r *tourRepository) ListSchedules(ctx context.Context) ([]models.Tour, error) {
	var tours []models.Tour
	err := r.db.WithContext(ctx).
		Scopes(hideSecret).
		Select("id", "name", "start_dates").
		Find(&tours).Error
	return tours, err
}

// ListStartLocations gets the start location of every visible tour
func (r *tourRepository) ListStartLocations(ctx context.Context) ([]models.Tour, error) {
	var tours []models.Tour
	err := r.db.WithContext(ctx).
		Scopes(hideSecret).
		Select("id", "name", "slug", "price", "duration", "difficulty", "ratings_average", "summary", "image_cover", "start_location").
		Where("start_location IS NOT NULL").
		Find(&tours).Error
	return tours, err
}

// FindByIDs gets the visible tours with the given ids
func (r *tourRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Tour, error) {
	tours := make([]models.Tour, 0, len(ids))
	if len(ids) == 0 {
		return tours, nil
	}
	err := r.reads(ctx).Where("tours.id IN ?", ids).Order("tours.name").Find(&tours).Error
	return tours, err
}

// IDs lists the id of every tour, secret ones included
func (r *tourRepository) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Tour{}).Pluck("id", &ids).Error
	return ids, err
}

// SetRatings stores the recomputed rating aggregate of a tour
func (r *tourRepository) SetRatings(ctx context.Context, id string, quantity int64, average float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Tour{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ratings_quantity": quantity,
			"ratings_average":  models.RoundRating(average),
		}).Error
}
