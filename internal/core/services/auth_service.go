package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/config"
	"natours-api/internal/core/domain"
	"natours-api/internal/pkg/jwt"
	"natours-api/internal/pkg/password"
	"natours-api/internal/pkg/validation"
)

// AuthService handles authentication business logic
type AuthService struct {
	userRepo repositories.UserRepository
	tokens   *jwt.Manager
	notifier Notifier
	cfg      *config.Config
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repositories.UserRepository,
	tokens *jwt.Manager,
	notifier Notifier,
	cfg *config.Config,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the service clock
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// SignupInput represents registration input
type SignupInput struct {
	Name            string `json:"name" validate:"required,min=3,max=40"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// LoginInput represents login input
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordInput represents the new password sent with a reset token
type ResetPasswordInput struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// UpdatePasswordInput represents a password change by a logged in user
type UpdatePasswordInput struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// AuthResult is a user together with a freshly issued session token
type AuthResult struct {
	User  *models.User
	Token string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a new user. The welcome email is best effort.
func (s *AuthService) Signup(ctx context.Context, input *SignupInput, welcomeURL string) (*AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)

	// 1. Validate input
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	// 2. Check if email already exists
	exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, domain.NewInternal("signup lookup failed", err)
	}
	if exists {
		return nil, domain.ErrEmailTaken
	}

	// 3. Hash password
	hashed, err := password.Hash(input.Password)
	if err != nil {
		return nil, domain.NewInternal("password hashing failed", err)
	}

	// 4. Create user
	user := &models.User{
		Name:     input.Name,
		Email:    input.Email,
		Photo:    "default.jpg",
		Role:     domain.RoleUser,
		Password: hashed,
		Active:   true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.NewInternal("signup failed", err)
	}

	// 5. Welcome email
	if err := s.notifier.SendWelcome(ctx, Recipient{Email: user.Email, Name: user.FirstName()}, welcomeURL); err != nil {
		s.log.Warn("welcome email failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	s.log.Info("user signed up", zap.String("user_id", user.ID))
	return s.issue(user)
}

// Login authenticates a user by email and password
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResult, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return nil, domain.ErrMissingCredentials
	}

	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrIncorrectLogin
		}
		return nil, domain.NewInternal("login lookup failed", err)
	}

	if !password.Verify(input.Password, user.Password) {
		return nil, domain.ErrIncorrectLogin
	}

	return s.issue(user)
}

// Authenticate resolves the user a session token belongs to. The token must
// be valid, its user must still exist and be active, and it must have been
// issued after the user's last password change.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, domain.ErrNotLoggedIn
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNoLongerExists
		}
		return nil, domain.NewInternal("token user lookup failed", err)
	}

	if user.ChangedPasswordSince(claims.Version) {
		return nil, domain.ErrPasswordChanged
	}

	return user, nil
}

// OptionalAuthenticate resolves the token's user like Authenticate but
// reports an absent or unusable token as no identity
func (s *AuthService) OptionalAuthenticate(ctx context.Context, token string) *models.User {
	if token == "" {
		return nil
	}
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil
	}
	return user
}

// ForgotPassword stores a hashed single-use reset token and emails the
// plaintext token inside the URL built by resetURL. When the email cannot be
// sent the token is discarded again.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	// 1. Find user by email
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if s.cfg.Auth.ConcealUnknownEmail {
				s.log.Info("password reset requested for unknown email")
				return nil
			}
			return domain.ErrNoUserWithEmail
		}
		return domain.NewInternal("reset lookup failed", err)
	}

	// 2. Generate and store the token hash
	plain, hashed, err := password.NewResetToken()
	if err != nil {
		return domain.NewInternal("reset token generation failed", err)
	}
	expires := s.now().Add(s.cfg.Auth.ResetTokenTTL)
	user.PasswordResetToken = &hashed
	user.PasswordResetExpires = &expires
	if err := s.userRepo.UpdateByID(ctx, user.ID, user); err != nil {
		return domain.NewInternal("storing reset token failed", err)
	}

	// 3. Send the plaintext token
	if err := s.notifier.SendPasswordReset(ctx, Recipient{Email: user.Email, Name: user.FirstName()}, resetURL(plain)); err != nil {
		user.ClearPasswordReset()
		if clearErr := s.userRepo.UpdateByID(ctx, user.ID, user); clearErr != nil {
			s.log.Error("clearing reset token failed", zap.String("user_id", user.ID), zap.Error(clearErr))
		}
		s.log.Error("password reset email failed", zap.String("user_id", user.ID), zap.Error(err))

		appErr := domain.NewServerError("There was an error sending the email. Try again later!")
		appErr.Err = err
		return appErr
	}

	return nil
}

// ResetPassword sets a new password using an unexpired reset token. The
// token is consumed on success.
func (s *AuthService) ResetPassword(ctx context.Context, token string, input *ResetPasswordInput) (*AuthResult, error) {
	// 1. Find user by token hash
	user, err := s.userRepo.FindByResetToken(ctx, password.HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrResetTokenInvalid
		}
		return nil, domain.NewInternal("reset lookup failed", err)
	}

	// 2. Validate and store the new password
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if err := s.setPassword(ctx, user, input.Password); err != nil {
		return nil, err
	}

	// 3. Log the user in
	return s.issue(user)
}

// UpdatePassword changes the password of a logged in user after checking
// the current one
func (s *AuthService) UpdatePassword(ctx context.Context, userID string, input *UpdatePasswordInput) (*AuthResult, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNoLongerExists
		}
		return nil, domain.NewInternal("user lookup failed", err)
	}

	if !password.Verify(input.PasswordCurrent, user.Password) {
		return nil, domain.ErrWrongPassword
	}

	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if err := s.setPassword(ctx, user, input.Password); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// setPassword hashes and stores a new password, clears any reset token and
// retires the user's existing tokens
func (s *AuthService) setPassword(ctx context.Context, user *models.User, plain string) error {
	hashed, err := password.Hash(plain)
	if err != nil {
		return domain.NewInternal("password hashing failed", err)
	}

	user.Password = hashed
	user.MarkPasswordChanged(s.now())
	user.ClearPasswordReset()

	if err := s.userRepo.UpdateByID(ctx, user.ID, user); err != nil {
		return domain.NewInternal("storing password failed", err)
	}
	return nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.TokenVersion)
	if err != nil {
		return nil, domain.NewInternal("token signing failed", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
