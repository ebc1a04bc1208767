package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"accounts/internal/auth"
	"accounts/internal/handlers"
)

const bearerPrefix = "Bearer "

// AuthMiddleware requires a valid session token in the Authorization header
// and stores its claims under the "claims" local.
func AuthMiddleware(c *fiber.Ctx) error {
	issuer := c.Locals("issuer").(*auth.Issuer)

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" || !strings.HasPrefix(authHeader, bearerPrefix) {
		return unauthorized(c)
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	if token == "" {
		return unauthorized(c)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		return unauthorized(c)
	}

	c.Locals("claims", claims)

	return c.Next()
}

func unauthorized(c *fiber.Ctx) error {
	return handlers.Reject(c, fiber.StatusUnauthorized, handlers.ReasonTokenInvalidOrExpired, "Unauthorized")
}
