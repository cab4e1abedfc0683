package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/core/domain"
	"natours-api/internal/core/services"
)

// TokenCookie is the cookie carrying the session token
const TokenCookie = "jwt"

const userLocalsKey = "user"

// ExtractToken returns the session token of a request. The Authorization
// header takes precedence over the cookie.
func ExtractToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(authHeader, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")); token != "" {
			return token
		}
	}
	return c.Cookies(TokenCookie)
}

// Protect rejects requests without a valid session and stores the
// authenticated user in the request locals
func Protect(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.Authenticate(c.UserContext(), ExtractToken(c))
		if err != nil {
			return err
		}

		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

// OptionalAuth stores the user of a valid session if there is one and never
// fails the request
func OptionalAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user := auth.OptionalAuthenticate(c.UserContext(), ExtractToken(c)); user != nil {
			c.Locals(userLocalsKey, user)
		}
		return c.Next()
	}
}

// RestrictTo lets through only users whose role is in roles. It must run
// after Protect.
func RestrictTo(roles domain.RoleSet) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return domain.ErrNotLoggedIn
		}
		if !roles.Allows(user.Role) {
			return domain.ErrPermissionDenied
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userLocalsKey).(*models.User)
	return user
}
