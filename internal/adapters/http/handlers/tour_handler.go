package handlers

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/core/domain"
	"natours-api/internal/core/services"
	"natours-api/internal/pkg/response"
)

const topToursQuery = "limit=5&sort=-ratingsAverage,price&fields=name,price,ratingsAverage,summary,difficulty"

var errBadLatLng = domain.NewValidation("Please provide latitude and longitude in the format lat,lng.")

// TourHandler handles tour endpoints
type TourHandler struct {
	tourService *services.TourService
	resource    *Resource[models.Tour]
}

// NewTourHandler creates a new tour handler
func NewTourHandler(tourService *services.TourService, tours repositories.TourRepository) *TourHandler {
	return &TourHandler{
		tourService: tourService,
		resource: &Resource[models.Tour]{
			Repo: tours,
			Writable: []string{
				"name", "duration", "maxGroupSize", "difficulty", "ratingsAverage",
				"price", "priceDiscount", "summary", "description", "imageCover",
				"images", "startDates", "secretTour", "startLocation", "locations", "guideIds",
			},
			New: func() *models.Tour {
				return &models.Tour{RatingsAverage: domain.DefaultRatingsAverage}
			},
			Populate: []string{"Reviews"},
			Prepare: func(c *fiber.Ctx, _ WriteOp, tour *models.Tour) error {
				return tourService.Prepare(c.UserContext(), tour)
			},
		},
	}
}

// AliasTopTours rewrites the query to the five best rated, cheapest tours
func (h *TourHandler) AliasTopTours(c *fiber.Ctx) error {
	c.Request().URI().SetQueryString(topToursQuery)
	return c.Next()
}

// ListTours lists tours
// @Summary List tours
// @Description Filter with field=value or field[gte|gt|lte|lt]=value
// @Tags Tours
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(100)
// @Param sort query string false "Sort fields, - for descending"
// @Param fields query string false "Fields to return"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /tours [get]
func (h *TourHandler) ListTours(c *fiber.Ctx) error {
	return List(h.resource)(c)
}

// GetTour gets a tour with its guides and reviews
// @Summary Get tour
// @Tags Tours
// @Produce json
// @Param id path string true "Tour ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /tours/{id} [get]
func (h *TourHandler) GetTour(c *fiber.Ctx) error {
	return Get(h.resource)(c)
}

// CreateTour creates a tour
// @Summary Create tour
// @Tags Tours
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /tours [post]
func (h *TourHandler) CreateTour(c *fiber.Ctx) error {
	return Create(h.resource)(c)
}

// UpdateTour updates a tour
// @Summary Update tour
// @Tags Tours
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tour ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /tours/{id} [patch]
func (h *TourHandler) UpdateTour(c *fiber.Ctx) error {
	return Update(h.resource)(c)
}

// DeleteTour deletes a tour
// @Summary Delete tour
// @Tags Tours
// @Security BearerAuth
// @Param id path string true "Tour ID"
// @Success 204
// @Failure 404 {object} response.Response
// @Router /tours/{id} [delete]
func (h *TourHandler) DeleteTour(c *fiber.Ctx) error {
	return Delete(h.resource)(c)
}

// GetTourStats reports statistics per difficulty
// @Summary Tour statistics
// @Tags Tours
// @Produce json
// @Success 200 {object} response.Response
// @Router /tours/tour-stats [get]
func (h *TourHandler) GetTourStats(c *fiber.Ctx) error {
	stats, err := h.tourService.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"stats": stats})
}

// GetMonthlyPlan counts tour starts per month
// @Summary Monthly plan
// @Tags Tours
// @Produce json
// @Security BearerAuth
// @Param year path int true "Year"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /tours/monthly-plan/{year} [get]
func (h *TourHandler) GetMonthlyPlan(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil {
		return domain.NewValidation("Year must be a number.")
	}

	plan, err := h.tourService.MonthlyPlan(c.UserContext(), year)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"plan": plan})
}

// GetToursWithin lists tours starting within a distance of a point
// @Summary Tours within distance
// @Tags Tours
// @Produce json
// @Param distance path number true "Distance"
// @Param latlng path string true "Center as lat,lng"
// @Param unit path string true "mi or km"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /tours/tours-within/{distance}/center/{latlng}/unit/{unit} [get]
func (h *TourHandler) GetToursWithin(c *fiber.Ctx) error {
	distance, err := parseFinite(c.Params("distance"))
	if err != nil || distance <= 0 {
		return domain.NewValidation("Distance must be a positive number.")
	}
	lat, lng, err := parseLatLng(c.Params("latlng"))
	if err != nil {
		return err
	}
	unit, err := parseUnit(c.Params("unit"))
	if err != nil {
		return err
	}

	tours, err := h.tourService.Within(c.UserContext(), distance, lat, lng, unit)
	if err != nil {
		return err
	}
	return response.List(c, len(tours), fiber.Map{"data": tours})
}

// GetDistances lists the distance from a point to every tour
// @Summary Distances to tours
// @Tags Tours
// @Produce json
// @Param latlng path string true "Point as lat,lng"
// @Param unit path string true "mi or km"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /tours/distances/{latlng}/unit/{unit} [get]
func (h *TourHandler) GetDistances(c *fiber.Ctx) error {
	lat, lng, err := parseLatLng(c.Params("latlng"))
	if err != nil {
		return err
	}
	unit, err := parseUnit(c.Params("unit"))
	if err != nil {
		return err
	}

	distances, err := h.tourService.Distances(c.UserContext(), lat, lng, unit)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"data": distances})
}

func parseLatLng(raw string) (float64, float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, errBadLatLng
	}
	lat, err := parseFinite(parts[0])
	if err != nil {
		return 0, 0, errBadLatLng
	}
	lng, err := parseFinite(parts[1])
	if err != nil {
		return 0, 0, errBadLatLng
	}
	return lat, lng, nil
}

// parseFinite parses a float and refuses NaN and the infinities, which
// ParseFloat accepts
func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

func parseUnit(raw string) (domain.DistanceUnit, error) {
	unit, ok := domain.ParseDistanceUnit(raw)
	if !ok {
		return "", domain.NewValidation("Unit must be either mi or km.")
	}
	return unit, nil
}
