package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/kolo-save/kolo/internal/auth"
	"github.com/kolo-save/kolo/internal/funding"
	"github.com/kolo-save/kolo/internal/identity"
	"github.com/kolo-save/kolo/internal/ledger"
	"github.com/kolo-save/kolo/internal/metrics"
	"github.com/kolo-save/kolo/internal/middleware"
	"github.com/kolo-save/kolo/internal/otp"
	"github.com/kolo-save/kolo/internal/savings"
	"github.com/kolo-save/kolo/internal/wallet"
)

const (
	loginPerMinute      = 5
	otpRequestPerMinute = 3
	otpVerifyPerMinute  = 10
)

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, c *Components) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Metrics())
	if c.Cfg.LogFormat == "text" {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	} else {
		app.Use(middleware.Audit(c.Logger))
	}

	RegisterHealthRoutes(app, c.Deps)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api/v1")
	api.Get("/ping", func(ctx *fiber.Ctx) error {
		reqID, _ := ctx.Locals("X-Request-ID").(string)
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	loc := c.Cfg.DailySavings.Location
	authn := middleware.Authenticate(c.Tokens)
	idempotent := middleware.Idempotency(c.Cache, c.Cfg.IdempotencyTTL, c.Logger)
	cronGuard := middleware.CronSecret(c.Cfg.CronSecret)

	RegisterIdentityRoutes(api,
		identity.NewHandler(c.Identity, c.Validate),
		auth.NewHandler(c.Identity, c.Tokens, c.Validate),
		authn,
		middleware.PhoneRateLimit(c.Cache, "login", loginPerMinute))
	RegisterOTPRoutes(api, otp.NewHandler(c.Issuer, c.Validate),
		middleware.PhoneRateLimit(c.Cache, "otp-request", otpRequestPerMinute),
		middleware.PhoneRateLimit(c.Cache, "otp-verify", otpVerifyPerMinute))

	walletHandler := wallet.NewHandler(c.Wallets, c.Validate, loc)
	ledgerHandler := ledger.NewHandler(c.Ledger, c.Validate, loc)
	RegisterWalletRoutes(api.Group("/wallet", authn, idempotent), walletHandler, ledgerHandler, funding.NewHandler(c.Funding, c.Validate))

	RegisterSavingsRoutes(api, savings.NewHandler(c.Processor, loc), cronGuard)
	RegisterInternalRoutes(api.Group("/internal", cronGuard), walletHandler, ledgerHandler)
}
