package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ============================================================
// Tours
// ============================================================

// Location is a GeoJSON style point. Coordinates are [longitude, latitude].
type Location struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	Day         int       `json:"day,omitempty"`
}

// LatLng returns the point as latitude and longitude.
func (l *Location) LatLng() (lat, lng float64, ok bool) {
	if l == nil || len(l.Coordinates) < 2 {
		return 0, 0, false
	}
	return l.Coordinates[1], l.Coordinates[0], true
}

// Tour represents tours table
type Tour struct {
	ID              string        `gorm:"primaryKey;size:36" json:"id"`
	Name            string        `gorm:"uniqueIndex;size:40;not null" json:"name" validate:"required,min=10,max=40"`
	Slug            string        `gorm:"size:64;index" json:"slug"`
	Duration        int           `gorm:"not null" json:"duration" validate:"required,gt=0"`
	MaxGroupSize    int           `gorm:"not null" json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      string        `gorm:"size:20;not null;index" json:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64       `gorm:"default:4.5" json:"ratingsAverage" validate:"gte=1,lte=5"`
	RatingsQuantity int           `gorm:"default:0" json:"ratingsQuantity" validate:"gte=0"`
	Price           float64       `gorm:"not null;index" json:"price" validate:"required,gt=0"`
	PriceDiscount   float64       `json:"priceDiscount,omitempty" validate:"omitempty,gte=0,ltfield=Price"`
	Summary         string        `gorm:"size:255;not null" json:"summary" validate:"required"`
	Description     string        `gorm:"type:text" json:"description,omitempty"`
	ImageCover      string        `gorm:"size:255;not null" json:"imageCover" validate:"required"`
	Images          []string      `gorm:"serializer:json;type:text" json:"images"`
	StartDates      []time.Time   `gorm:"serializer:json;type:text" json:"startDates"`
	SecretTour      bool          `gorm:"default:false;index" json:"secretTour,omitempty"`
	StartLocation   *Location     `gorm:"serializer:json;type:text" json:"startLocation,omitempty"`
	Locations       []Location    `gorm:"serializer:json;type:text" json:"locations,omitempty"`
	Guides          []UserSummary `gorm:"many2many:tour_guides;joinForeignKey:TourID;joinReferences:UserID" json:"guides"`
	GuideIDs        []string      `gorm:"-" json:"guideIds,omitempty"`
	Reviews         []Review      `gorm:"foreignKey:TourID" json:"reviews,omitempty"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Tour) TableName() string {
	return "tours"
}

func (t *Tour) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// DurationWeeks is derived from Duration and never stored.
func (t Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

// MarshalJSON adds the derived durationWeeks field.
func (t Tour) MarshalJSON() ([]byte, error) {
	type tour Tour
	return json.Marshal(struct {
		tour
		DurationWeeks float64 `json:"durationWeeks"`
	}{tour(t), t.DurationWeeks()})
}

// RoundRating rounds a ratings average to one decimal place.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// TourGuide is the tour_guides join table.
type TourGuide struct {
	TourID string `gorm:"primaryKey;size:36"`
	UserID string `gorm:"primaryKey;size:36"`
}

func (TourGuide) TableName() string {
	return "tour_guides"
}

// TourSummary is the public projection of a tour embedded in bookings.
type TourSummary struct {
	ID         string  `gorm:"primaryKey;size:36" json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Price      float64 `json:"price"`
	ImageCover string  `json:"imageCover"`
}

func (TourSummary) TableName() string {
	return "tours"
}

// ============================================================
// Reviews & Bookings
// ============================================================

// Review represents reviews table. A user reviews a tour at most once.
type Review struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	Review    string       `gorm:"type:text;not null" json:"review" validate:"required"`
	Rating    float64      `gorm:"not null" json:"rating" validate:"required,gte=1,lte=5"`
	TourID    string       `gorm:"size:36;not null;uniqueIndex:idx_reviews_tour_user" json:"tourId" validate:"required"`
	UserID    string       `gorm:"size:36;not null;uniqueIndex:idx_reviews_tour_user;index" json:"userId" validate:"required"`
	User      *UserSummary `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Review) TableName() string {
	return "reviews"
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Booking represents bookings table
type Booking struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	TourID    string       `gorm:"size:36;not null;index" json:"tourId" validate:"required"`
	UserID    string       `gorm:"size:36;not null;index" json:"userId" validate:"required"`
	Price     float64      `gorm:"not null" json:"price" validate:"required,gt=0"`
	Paid      bool         `gorm:"not null" json:"paid"`
	SessionID *string      `gorm:"size:255;uniqueIndex" json:"-"`
	Tour      *TourSummary `gorm:"foreignKey:TourID" json:"tour,omitempty"`
	User      *UserSummary `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
