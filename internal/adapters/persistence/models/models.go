package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"natours-api/internal/core/domain"
)

// ============================================================
// Users & Auth
// ============================================================

// User represents users table
type User struct {
	ID                   string      `gorm:"primaryKey;size:36" json:"id"`
	Name                 string      `gorm:"size:40;not null" json:"name" validate:"required,min=3,max=40"`
	Email                string      `gorm:"uniqueIndex;size:191;not null" json:"email" validate:"required,email"`
	Photo                string      `gorm:"size:255;default:'default.jpg'" json:"photo"`
	Role                 domain.Role `gorm:"size:20;default:'user';index" json:"role" validate:"required,oneof=user guide lead-guide admin"`
	Password             string      `gorm:"size:255;not null" json:"-"`
	PasswordChangedAt    *time.Time  `json:"-"`
	TokenVersion         int         `gorm:"not null;default:0" json:"-"`
	PasswordResetToken   *string     `gorm:"size:64;index" json:"-"`
	PasswordResetExpires *time.Time  `json:"-"`
	Active               bool        `gorm:"default:true;index" json:"-"`
	CreatedAt            time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// ChangedPasswordSince reports whether the password was changed after a
// token carrying version was issued. Every change bumps TokenVersion.
func (u *User) ChangedPasswordSince(version int) bool {
	return version != u.TokenVersion
}

// MarkPasswordChanged records a password change at now and retires every
// token issued before it.
func (u *User) MarkPasswordChanged(now time.Time) {
	u.PasswordChangedAt = &now
	u.TokenVersion++
}

// NormalizeProfile trims the name and stores the email trimmed and
// lower-cased, the form every email lookup uses.
func (u *User) NormalizeProfile() {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
}

// FirstName is used to greet the user in emails.
func (u *User) FirstName() string {
	if fields := strings.Fields(u.Name); len(fields) > 0 {
		return fields[0]
	}
	return u.Name
}

// ClearPasswordReset drops any outstanding reset token.
func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
}

// UserSummary is the public projection of a user embedded in tours,
// reviews and bookings.
type UserSummary struct {
	ID    string      `gorm:"primaryKey;size:36" json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email,omitempty"`
	Photo string      `json:"photo"`
	Role  domain.Role `json:"role,omitempty"`
}

func (UserSummary) TableName() string {
	return "users"
}

// Summary returns the public projection of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Photo: u.Photo,
		Role:  u.Role,
	}
}

// AutoMigrate creates or updates every table the API owns
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Tour{},
		&TourGuide{},
		&Review{},
		&Booking{},
	)
}
