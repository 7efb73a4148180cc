package auth

import "github.com/gofiber/fiber/v2"

// LocalsUserID is the fiber.Ctx locals key holding the authenticated user id.
const LocalsUserID = "user_id"

// UserID returns the authenticated user id stored by the auth middleware, or "".
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(LocalsUserID).(string)
	return uid
}
