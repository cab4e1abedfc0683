package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"natours-api/internal/adapters/persistence/models"
)

// userRepository implements UserRepository interface
type userRepository struct {
	*gormRepository[models.User]
}

// onlyActive hides deactivated accounts from every read
func onlyActive(db *gorm.DB) *gorm.DB {
	return db.Where("users.active = ?", true)
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{newGormRepository[models.User](db, onlyActive)}
}

// Create writes every column so an explicit Active=false is stored instead
// of the column default
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Select("*").Create(user).Error
}

// FindByEmail gets an active user by email
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.reads(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmail checks every account, active or not, since email is unique
// across the table
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// FindByResetToken gets the user holding an unexpired reset token hash
func (r *userRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	var user models.User
	err := r.reads(ctx).
		Where("password_reset_token = ? AND password_reset_expires > ?", tokenHash, now).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs gets the active users with the given ids
func (r *userRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := make([]models.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	err := r.reads(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// Deactivate soft deletes a user by clearing the active flag
func (r *userRepository) Deactivate(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClearExpiredResetTokens drops reset tokens past their expiry
func (r *userRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("password_reset_expires IS NOT NULL AND password_reset_expires <= ?", now).
		Updates(map[string]interface{}{
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		})
	return res.RowsAffected, res.Error
}
