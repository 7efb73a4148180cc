package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// CronSecretHeader carries the shared secret of scheduler and operator calls.
const CronSecretHeader = "X-Cron-Secret"

// CronSecret admits requests whose X-Cron-Secret header equals secret.
func CronSecret(secret string) fiber.Handler {
	expected := []byte(secret)
	return func(c *fiber.Ctx) error {
		provided := []byte(c.Get(CronSecretHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
			return fiber.NewError(http.StatusUnauthorized, "invalid cron secret")
		}
		return c.Next()
	}
}
