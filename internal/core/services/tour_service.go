package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/gosimple/slug"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/core/domain"
)

const (
	statsMinRating = 4.5

	earthRadiusMiles  = 3963.2
	earthRadiusKm     = 6378.1
	metresToMiles     = 0.000621371
	metresToKilometre = 0.001
)

// TourService holds the tour rules the generic handlers cannot express
type TourService struct {
	tours repositories.TourRepository
	users repositories.UserRepository
}

// NewTourService creates a new tour service
func NewTourService(tours repositories.TourRepository, users repositories.UserRepository) *TourService {
	return &TourService{
		tours: tours,
		users: users,
	}
}

// MonthlyPlan lists the tours starting in one month
type MonthlyPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

// TourDistance is the distance from a point to a tour's start location
type TourDistance struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// Prepare fills derived fields of a tour before it is validated and stored:
// the slug, the rating defaults and the guides named by GuideIDs.
func (s *TourService) Prepare(ctx context.Context, tour *models.Tour) error {
	tour.Name = strings.TrimSpace(tour.Name)
	tour.Slug = slug.Make(tour.Name)

	if tour.RatingsAverage == 0 {
		tour.RatingsAverage = domain.DefaultRatingsAverage
	}
	tour.RatingsAverage = models.RoundRating(tour.RatingsAverage)

	if tour.GuideIDs != nil {
		guides, err := s.resolveGuides(ctx, tour.GuideIDs)
		if err != nil {
			return err
		}
		tour.Guides = guides
		tour.GuideIDs = nil
	}
	return nil
}

func (s *TourService) resolveGuides(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	users, err := s.users.FindByIDs(ctx, unique)
	if err != nil {
		return nil, domain.NewInternal("guide lookup failed", err)
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	guides := make([]models.UserSummary, 0, len(unique))
	for _, id := range unique {
		u, ok := byID[id]
		if !ok {
			return nil, domain.NewValidation("Invalid input data. No user found with id "+id,
				domain.FieldError{Field: "guideIds", Message: "no user found with id " + id})
		}
		if u.Role != domain.RoleGuide && u.Role != domain.RoleLeadGuide {
			return nil, domain.NewValidation("Invalid input data. User "+id+" is not a guide",
				domain.FieldError{Field: "guideIds", Message: "user " + id + " is not a guide"})
		}
		guides = append(guides, u.Summary())
	}
	return guides, nil
}

// Stats reports per-difficulty statistics of tours rated 4.5 or better
func (s *TourService) Stats(ctx context.Context) ([]repositories.TourStats, error) {
	stats, err := s.tours.Stats(ctx, statsMinRating)
	if err != nil {
		return nil, domain.NewInternal("tour stats failed", err)
	}
	for i := range stats {
		stats[i].AvgRating = models.RoundRating(stats[i].AvgRating)
		stats[i].AvgPrice = math.Round(stats[i].AvgPrice*100) / 100
	}
	return stats, nil
}

// MonthlyPlan counts tour starts per month of year, busiest month first
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlan, error) {
	tours, err := s.tours.ListSchedules(ctx)
	if err != nil {
		return nil, domain.NewInternal("tour schedules failed", err)
	}

	byMonth := make(map[int]*MonthlyPlan)
	for _, tour := range tours {
		for _, start := range tour.StartDates {
			start = start.UTC()
			if start.Year() != year {
				continue
			}
			month := int(start.Month())
			plan, ok := byMonth[month]
			if !ok {
				plan = &MonthlyPlan{Month: month, Tours: []string{}}
				byMonth[month] = plan
			}
			plan.NumTourStarts++
			plan.Tours = append(plan.Tours, tour.Name)
		}
	}

	plans := make([]MonthlyPlan, 0, len(byMonth))
	for _, plan := range byMonth {
		plans = append(plans, *plan)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].NumTourStarts != plans[j].NumTourStarts {
			return plans[i].NumTourStarts > plans[j].NumTourStarts
		}
		return plans[i].Month < plans[j].Month
	})
	return plans, nil
}

// centralAngle returns the great-circle angle in radians between two points
func centralAngle(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func validPoint(lat, lng float64) error {
	if !(lat >= -90 && lat <= 90) || !(lng >= -180 && lng <= 180) {
		return domain.NewValidation("Please provide latitude and longitude in the format lat,lng.")
	}
	return nil
}

// Within lists tours whose start location lies within distance of a point
func (s *TourService) Within(ctx context.Context, distance, lat, lng float64, unit domain.DistanceUnit) ([]models.Tour, error) {
	if err := validPoint(lat, lng); err != nil {
		return nil, err
	}
	if !(distance > 0) || math.IsInf(distance, 0) {
		return nil, domain.NewValidation("Distance must be a positive number.")
	}

	radius := distance / earthRadiusKm
	if unit == domain.UnitMiles {
		radius = distance / earthRadiusMiles
	}

	tours, err := s.tours.ListStartLocations(ctx)
	if err != nil {
		return nil, domain.NewInternal("tour locations failed", err)
	}

	within := make([]models.Tour, 0, len(tours))
	for _, tour := range tours {
		tLat, tLng, ok := tour.StartLocation.LatLng()
		if ok && centralAngle(lat, lng, tLat, tLng) <= radius {
			within = append(within, tour)
		}
	}
	return within, nil
}

// Distances lists every tour with a start location by distance from a point,
// nearest first
func (s *TourService) Distances(ctx context.Context, lat, lng float64, unit domain.DistanceUnit) ([]TourDistance, error) {
	if err := validPoint(lat, lng); err != nil {
		return nil, err
	}

	multiplier := metresToKilometre
	if unit == domain.UnitMiles {
		multiplier = metresToMiles
	}

	tours, err := s.tours.ListStartLocations(ctx)
	if err != nil {
		return nil, domain.NewInternal("tour locations failed", err)
	}

	distances := make([]TourDistance, 0, len(tours))
	for _, tour := range tours {
		tLat, tLng, ok := tour.StartLocation.LatLng()
		if !ok {
			continue
		}
		metres := centralAngle(lat, lng, tLat, tLng) * earthRadiusKm * 1000
		distances = append(distances, TourDistance{
			ID:       tour.ID,
			Name:     tour.Name,
			Distance: math.Round(metres*multiplier*100) / 100,
		})
	}
	sort.SliceStable(distances, func(i, j int) bool {
		return distances[i].Distance < distances[j].Distance
	})
	return distances, nil
}

// FindVisible returns a tour that is not secret, as a NotFound error when
// there is none
func (s *TourService) FindVisible(ctx context.Context, id string) (*models.Tour, error) {
	tour, err := s.tours.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrTourNotFound, fmt.Sprintf("tour %s lookup failed", id))
	}
	return tour, nil
}
