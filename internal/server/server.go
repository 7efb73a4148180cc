package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kolo-save/kolo/internal/routes"
)

const (
	readTimeout = 30 * time.Second
	// writeTimeout covers batch runs triggered over HTTP.
	writeTimeout = 5 * time.Minute
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app        *fiber.App
	components *routes.Components
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(components *routes.Components) *Server {
	app := fiber.New(fiber.Config{
		AppName:               components.Cfg.AppName,
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		DisableStartupMessage: !components.Cfg.IsDevelopment(),
		ErrorHandler:          ErrorHandler(components.Logger),
	})
	routes.Setup(app, components)
	return &Server{app: app, components: components}
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.components.Cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// ErrorHandler renders errors as {"error": message}. Errors that are not
// *fiber.Error become a generic 500; their detail is only logged.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		logger.Error("unhandled error",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}
