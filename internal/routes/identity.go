package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kolo-save/kolo/internal/auth"
	"github.com/kolo-save/kolo/internal/identity"
)

// RegisterIdentityRoutes wires registration, login and the caller's profile.
// loginLimit guards credential guessing on /auth/login.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Handler, login *auth.Handler, authn, loginLimit fiber.Handler) {
	r.Post("/identity/register", ids.Register)
	r.Post("/auth/login", loginLimit, login.Login)
	r.Get("/me", authn, ids.Me(auth.UserID))
}
