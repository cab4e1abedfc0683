package handlers

import (
	"github.com/gofiber/fiber/v2"

	"natours-api/internal/adapters/http/middleware"
	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/core/domain"
	"natours-api/internal/core/services"
	"natours-api/internal/pkg/query"
)

// ReviewHandler handles review endpoints, both top level and nested under
// /tours/:tourId/reviews
type ReviewHandler struct {
	resource *Resource[models.Review]
}

// NewReviewHandler creates a new review handler. Every committed review
// write schedules a ratings recompute of the affected tours.
func NewReviewHandler(reviews repositories.ReviewRepository, tourService *services.TourService, ratings *services.RatingsService) *ReviewHandler {
	return &ReviewHandler{
		resource: &Resource[models.Review]{
			Repo:      reviews,
			Writable:  []string{"review", "rating", "tourId", "userId"},
			Updatable: []string{"review", "rating"},
			Scope: func(c *fiber.Ctx) []query.Condition {
				if tourID := c.Params("tourId"); tourID != "" {
					return []query.Condition{query.Eq("tourId", tourID)}
				}
				return nil
			},
			Prepare: func(c *fiber.Ctx, op WriteOp, review *models.Review) error {
				if op != OpCreate {
					return nil
				}
				return setTourUserIDs(c, tourService, review)
			},
			OnWrite: func(_ WriteOp, before, after *models.Review) {
				var ids []string
				if before != nil {
					ids = append(ids, before.TourID)
				}
				if after != nil {
					ids = append(ids, after.TourID)
				}
				ratings.Schedule(ids...)
			},
		},
	}
}

// setTourUserIDs fills the tour from the nested route and the author from
// the session. Only admins may post a review on behalf of another user.
func setTourUserIDs(c *fiber.Ctx, tourService *services.TourService, review *models.Review) error {
	if tourID := c.Params("tourId"); tourID != "" {
		review.TourID = tourID
	}

	user := middleware.CurrentUser(c)
	if user == nil {
		return domain.ErrNotLoggedIn
	}
	if review.UserID == "" {
		review.UserID = user.ID
	} else if review.UserID != user.ID && user.Role != domain.RoleAdmin {
		return domain.ErrPermissionDenied
	}

	if review.TourID == "" {
		return domain.NewValidation("Invalid input data. Review must belong to a tour.",
			domain.FieldError{Field: "tourId", Message: "tourId is required"})
	}
	if _, err := tourService.FindVisible(c.UserContext(), review.TourID); err != nil {
		return err
	}
	return nil
}

// ListReviews lists reviews, limited to one tour on the nested route
// @Summary List reviews
// @Tags Reviews
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(100)
// @Param sort query string false "Sort fields, - for descending"
// @Success 200 {object} response.Response
// @Router /reviews [get]
// @Router /tours/{tourId}/reviews [get]
func (h *ReviewHandler) ListReviews(c *fiber.Ctx) error {
	return List(h.resource)(c)
}

// GetReview gets a review
// @Summary Get review
// @Tags Reviews
// @Produce json
// @Param id path string true "Review ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /reviews/{id} [get]
func (h *ReviewHandler) GetReview(c *fiber.Ctx) error {
	return Get(h.resource)(c)
}

// CreateReview creates a review by the current user
// @Summary Create review
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /reviews [post]
// @Router /tours/{tourId}/reviews [post]
func (h *ReviewHandler) CreateReview(c *fiber.Ctx) error {
	return Create(h.resource)(c)
}

// UpdateReview updates the text or rating of a review
// @Summary Update review
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /reviews/{id} [patch]
func (h *ReviewHandler) UpdateReview(c *fiber.Ctx) error {
	return Update(h.resource)(c)
}

// DeleteReview deletes a review
// @Summary Delete review
// @Tags Reviews
// @Security BearerAuth
// @Param id path string true "Review ID"
// @Success 204
// @Failure 404 {object} response.Response
// @Router /reviews/{id} [delete]
func (h *ReviewHandler) DeleteReview(c *fiber.Ctx) error {
	return Delete(h.resource)(c)
}
