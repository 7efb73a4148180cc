package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kolo-save/kolo/internal/funding"
	"github.com/kolo-save/kolo/internal/ledger"
	"github.com/kolo-save/kolo/internal/wallet"
)

// RegisterWalletRoutes wires the caller's wallet endpoints. r is already authenticated.
func RegisterWalletRoutes(r fiber.Router, wallets *wallet.Handler, moves *ledger.Handler, topUps *funding.Handler) {
	r.Get("", wallets.Me)
	r.Get("/history", wallets.History)
	r.Patch("/settings", wallets.UpdateSettings)
	r.Post("/lock", moves.Lock)
	r.Post("/unlock", moves.Unlock)
	r.Post("/top-up", topUps.TopUp)
}
