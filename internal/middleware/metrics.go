package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kolo-save/kolo/internal/metrics"
)

// Metrics records request counts and latencies by matched route.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		done := metrics.RequestStarted()
		defer done()

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := ""
		if r := c.Route(); r != nil {
			route = r.Path
		}
		metrics.ObserveRequest(c.Method(), route, status, time.Since(start))
		return err
	}
}
