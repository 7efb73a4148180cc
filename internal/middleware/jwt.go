package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kolo-save/kolo/internal/auth"
)

const bearerPrefix = "bearer "

// Authenticate resolves the bearer token through gateway and stores the caller's
// user id under auth.LocalsUserID.
func Authenticate(gateway auth.Gateway) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len(bearerPrefix) || !strings.EqualFold(authz[:len(bearerPrefix)], bearerPrefix) {
			return fiber.NewError(http.StatusUnauthorized, auth.ErrMissingToken.Error())
		}
		token := strings.TrimSpace(authz[len(bearerPrefix):])

		identity, err := gateway.Verify(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				return fiber.NewError(http.StatusUnauthorized, auth.ErrMissingToken.Error())
			}
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(auth.LocalsUserID, identity.UserID)
		return c.Next()
	}
}
