package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kolo-save/kolo/internal/ledger"
	"github.com/kolo-save/kolo/internal/savings"
	"github.com/kolo-save/kolo/internal/wallet"
)

// RegisterSavingsRoutes wires the external cron trigger.
func RegisterSavingsRoutes(r fiber.Router, h *savings.Handler, guard fiber.Handler) {
	r.Post("/cron/daily-savings", guard, h.Trigger)
}

// RegisterInternalRoutes wires operator endpoints. r is already guarded by the cron secret.
func RegisterInternalRoutes(r fiber.Router, wallets *wallet.Handler, moves *ledger.Handler) {
	r.Post("/referrals", moves.CreditReferral)
	r.Get("/stats", wallets.Stats)
}
