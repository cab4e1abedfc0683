package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/core/domain"
	"natours-api/internal/pkg/validation"
)

// UserService handles self-service account operations
type UserService struct {
	userRepo repositories.UserRepository
	log      *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository, log *zap.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		log:      log,
	}
}

// UpdateMeInput holds the profile fields a user may change. Password fields
// are accepted only to be rejected.
type UpdateMeInput struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Photo           *string `json:"photo"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"passwordConfirm"`
}

// UpdateMe changes the caller's name, email or photo
func (s *UserService) UpdateMe(ctx context.Context, user *models.User, input *UpdateMeInput) (*models.User, error) {
	if input.Password != "" || input.PasswordConfirm != "" {
		return nil, domain.ErrPasswordRouteUpdate
	}

	updated := *user
	if input.Name != nil {
		updated.Name = *input.Name
	}
	if input.Email != nil {
		updated.Email = *input.Email
	}
	if input.Photo != nil && *input.Photo != "" {
		updated.Photo = *input.Photo
	}
	updated.NormalizeProfile()

	if err := validation.Struct(&updated); err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateByID(ctx, user.ID, &updated); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrEmailTaken
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNoLongerExists
		}
		return nil, domain.NewInternal("profile update failed", err)
	}

	return &updated, nil
}

// DeleteMe deactivates the caller's account. Deactivated users can no
// longer log in and are hidden from every user query.
func (s *UserService) DeleteMe(ctx context.Context, userID string) error {
	if err := s.userRepo.Deactivate(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrUserNoLongerExists
		}
		return domain.NewInternal("deactivation failed", err)
	}

	s.log.Info("user deactivated", zap.String("user_id", userID))
	return nil
}
