package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kolo-save/kolo/internal/otp"
)

// RegisterOTPRoutes wires phone verification endpoints behind their rate limiters.
func RegisterOTPRoutes(r fiber.Router, h *otp.Handler, requestLimit, verifyLimit fiber.Handler) {
	group := r.Group("/otp")
	group.Post("/request", requestLimit, h.Request)
	group.Post("/verify", verifyLimit, h.Verify)
}
