package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"natours-api/internal/adapters/http/middleware"
	"natours-api/internal/config"
	"natours-api/internal/core/domain"
	"natours-api/internal/core/services"
	"natours-api/internal/pkg/response"
)

const loggedOutValue = "loggedout"

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
	}
}

// ForgotPasswordRequest represents forgot password request body
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Signup handles user registration
// @Summary Sign up
// @Description Register a new user and log them in
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.SignupInput true "Signup data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /users/signup [post]
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var input services.SignupInput
	if err := c.BodyParser(&input); err != nil {
		return domain.ErrInvalidBody
	}

	result, err := h.authService.Signup(c.UserContext(), &input, c.BaseURL()+"/me")
	if err != nil {
		return err
	}

	return h.sendToken(c, fiber.StatusCreated, result)
}

// Login handles user login
// @Summary Log in
// @Description Authenticate with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.LoginInput true "Login credentials"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /users/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input services.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return domain.ErrInvalidBody
	}

	result, err := h.authService.Login(c.UserContext(), &input)
	if err != nil {
		return err
	}

	return h.sendToken(c, fiber.StatusOK, result)
}

// Logout handles user logout
// @Summary Log out
// @Description Overwrite the session cookie
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /users/logout [get]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(h.cookie(loggedOutValue, time.Now().Add(10*time.Second)))
	return c.JSON(response.Response{Status: response.StatusSuccess})
}

// ForgotPassword emails a password reset link
// @Summary Forgot password
// @Description Send a single-use reset token by email
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body ForgotPasswordRequest true "Account email"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /users/forgotPassword [post]
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrInvalidBody
	}

	resetURL := func(token string) string {
		return c.BaseURL() + "/api/v1/users/resetPassword/" + token
	}
	if err := h.authService.ForgotPassword(c.UserContext(), req.Email, resetURL); err != nil {
		return err
	}

	return response.Message(c, "Token sent to email!")
}

// ResetPassword sets a new password with a reset token
// @Summary Reset password
// @Description Consume a reset token and log in with the new password
// @Tags Auth
// @Accept json
// @Produce json
// @Param token path string true "Reset token"
// @Param body body services.ResetPasswordInput true "New password"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /users/resetPassword/{token} [patch]
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var input services.ResetPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return domain.ErrInvalidBody
	}

	result, err := h.authService.ResetPassword(c.UserContext(), c.Params("token"), &input)
	if err != nil {
		return err
	}

	return h.sendToken(c, fiber.StatusOK, result)
}

// UpdatePassword changes the current user's password
// @Summary Update my password
// @Description Change the password after confirming the current one
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.UpdatePasswordInput true "Passwords"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /users/updateMyPassword [patch]
func (h *AuthHandler) UpdatePassword(c *fiber.Ctx) error {
	var input services.UpdatePasswordInput
	if err := c.BodyParser(&input); err != nil {
		return domain.ErrInvalidBody
	}

	result, err := h.authService.UpdatePassword(c.UserContext(), middleware.CurrentUser(c).ID, &input)
	if err != nil {
		return err
	}

	return h.sendToken(c, fiber.StatusOK, result)
}

// sendToken sets the session cookie and responds with the token and user
func (h *AuthHandler) sendToken(c *fiber.Ctx, statusCode int, result *services.AuthResult) error {
	expires := time.Now().Add(time.Duration(h.cfg.JWT.CookieExpiresDays) * 24 * time.Hour)
	c.Cookie(h.cookie(result.Token, expires))

	return response.WithToken(c, statusCode, result.Token, fiber.Map{"user": result.User})
}

// cookie builds the session cookie options for one response
func (h *AuthHandler) cookie(value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		Secure:   h.cfg.Cookie.Secure || h.cfg.IsProd(),
		HTTPOnly: true,
		SameSite: h.cfg.Cookie.SameSite,
		Domain:   h.cfg.Cookie.Domain,
	}
}
