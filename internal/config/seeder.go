package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/pkg/password"
)

// Seed files read from the dev-data directory
const (
	ToursFile   = "tours.json"
	UsersFile   = "users.json"
	ReviewsFile = "reviews.json"
)

// SeedUser is a user record as stored in users.json. Password holds a bcrypt
// hash; a plaintext value is hashed on import.
type SeedUser struct {
	models.User
	Password string `json:"password"`
	Active   *bool  `json:"active,omitempty"`
}

// SeedData is the content of a dev-data directory
type SeedData struct {
	Tours   []models.Tour
	Users   []SeedUser
	Reviews []models.Review
}

// LoadSeedData reads the three seed files from dir
func LoadSeedData(dir string) (*SeedData, error) {
	data := &SeedData{}
	if err := readSeedFile(filepath.Join(dir, ToursFile), &data.Tours); err != nil {
		return nil, err
	}
	if err := readSeedFile(filepath.Join(dir, UsersFile), &data.Users); err != nil {
		return nil, err
	}
	if err := readSeedFile(filepath.Join(dir, ReviewsFile), &data.Reviews); err != nil {
		return nil, err
	}
	return data, nil
}

func readSeedFile(path string, v interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Seeder handles database seeding
type Seeder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, log *zap.Logger) *Seeder {
	return &Seeder{db: db, log: log}
}

// Import inserts users, tours with their guides and reviews in one
// transaction. Records skip model validation and tour aggregates are left
// as given; recompute them afterwards.
func (s *Seeder) Import(ctx context.Context, data *SeedData) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range data.Users {
			user, err := data.Users[i].model()
			if err != nil {
				return fmt.Errorf("user %s: %w", data.Users[i].Email, err)
			}
			// every column, or gorm swaps a false Active for the default
			if err := tx.Select("*").Create(user).Error; err != nil {
				return fmt.Errorf("user %s: %w", user.Email, err)
			}
		}

		for i := range data.Tours {
			tour := &data.Tours[i]
			if tour.RatingsAverage == 0 {
				tour.RatingsAverage = 4.5
			}
			if err := tx.Omit(clause.Associations).Create(tour).Error; err != nil {
				return fmt.Errorf("tour %s: %w", tour.Name, err)
			}
			for _, guideID := range tour.GuideIDs {
				row := &models.TourGuide{TourID: tour.ID, UserID: guideID}
				if err := tx.Create(row).Error; err != nil {
					return fmt.Errorf("tour %s guide %s: %w", tour.Name, guideID, err)
				}
			}
		}

		for i := range data.Reviews {
			if err := tx.Omit(clause.Associations).Create(&data.Reviews[i]).Error; err != nil {
				return fmt.Errorf("review %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("data successfully loaded",
		zap.Int("users", len(data.Users)),
		zap.Int("tours", len(data.Tours)),
		zap.Int("reviews", len(data.Reviews)),
	)
	return nil
}

// Delete removes every review, booking, tour and user
func (s *Seeder) Delete(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.Review{},
			&models.Booking{},
			&models.TourGuide{},
			&models.Tour{},
			&models.User{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("data successfully deleted")
	return nil
}

func (u *SeedUser) model() (*models.User, error) {
	user := u.User
	user.Active = u.Active == nil || *u.Active
	if user.Photo == "" {
		user.Photo = "default.jpg"
	}
	if user.Role == "" {
		user.Role = "user"
	}

	if _, err := bcrypt.Cost([]byte(u.Password)); err == nil {
		user.Password = u.Password
		return &user, nil
	}

	hash, err := password.Hash(u.Password)
	if err != nil {
		return nil, err
	}
	user.Password = hash
	return &user, nil
}
