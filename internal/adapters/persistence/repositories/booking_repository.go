package repositories

import (
	"context"

	"gorm.io/gorm"

	"natours-api/internal/adapters/persistence/models"
)

// bookingRepository implements BookingRepository interface
type bookingRepository struct {
	*gormRepository[models.Booking]
}

func withTourAndUser(db *gorm.DB) *gorm.DB {
	return db.Preload("Tour").Preload("User")
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{newGormRepository[models.Booking](db, withTourAndUser)}
}

// TourIDsForUser lists the distinct tours a user has booked
func (r *bookingRepository) TourIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("tour_id", &ids).Error
	return ids, err
}

// FindBySessionID gets the booking created for a checkout session
func (r *bookingRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Booking, error) {
	var booking models.Booking
	err := r.reads(ctx).Where("session_id = ?", sessionID).First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}
