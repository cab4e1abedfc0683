package handlers

import (
	"github.com/gofiber/fiber/v2"

	"natours-api/internal/adapters/http/middleware"
	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/core/domain"
	"natours-api/internal/core/services"
	"natours-api/internal/pkg/response"
)

// UserHandler handles user management endpoints
type UserHandler struct {
	userService *services.UserService
	resource    *Resource[models.User]
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, users repositories.UserRepository) *UserHandler {
	return &UserHandler{
		userService: userService,
		resource: &Resource[models.User]{
			Repo:     users,
			Writable: []string{"name", "email", "photo", "role"},
			Prepare: func(_ *fiber.Ctx, _ WriteOp, user *models.User) error {
				user.NormalizeProfile()
				return nil
			},
		},
	}
}

// GetMe returns the current user
// @Summary Get current user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /users/me [get]
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	return response.Success(c, fiber.Map{"data": middleware.CurrentUser(c)})
}

// UpdateMe changes the current user's name, email or photo
// @Summary Update current user
// @Description Passwords are changed through /users/updateMyPassword
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.UpdateMeInput true "Profile fields"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /users/updateMe [patch]
func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	var input services.UpdateMeInput
	if err := c.BodyParser(&input); err != nil {
		return domain.ErrInvalidBody
	}

	user, err := h.userService.UpdateMe(c.UserContext(), middleware.CurrentUser(c), &input)
	if err != nil {
		return err
	}

	return response.Success(c, fiber.Map{"user": user})
}

// DeleteMe deactivates the current user
// @Summary Delete current user
// @Tags Users
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} response.Response
// @Router /users/deleteMe [delete]
func (h *UserHandler) DeleteMe(c *fiber.Ctx) error {
	if err := h.userService.DeleteMe(c.UserContext(), middleware.CurrentUser(c).ID); err != nil {
		return err
	}
	return response.NoContent(c)
}

// CreateUser is not supported; users sign up
// @Summary Create user
// @Tags Users
// @Produce json
// @Failure 500 {object} response.Response
// @Router /users [post]
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	return domain.NewServerError("This route is not defined! Please use /signup instead")
}

// ListUsers lists active users
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(100)
// @Param sort query string false "Sort fields, - for descending"
// @Param fields query string false "Fields to return"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	return List(h.resource)(c)
}

// GetUser gets an active user by ID
// @Summary Get user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	return Get(h.resource)(c)
}

// UpdateUser changes a user's profile or role. Passwords cannot be set here.
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id} [patch]
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	return Update(h.resource)(c)
}

// DeleteUser permanently removes a user
// @Summary Delete user
// @Tags Users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 404 {object} response.Response
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	return Delete(h.resource)(c)
}
