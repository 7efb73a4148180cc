package ledger

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kolo-save/kolo/internal/wallet"
)

// HTTPError maps ledger and wallet failures onto fiber errors. Unknown errors
// are returned unchanged so the server error handler logs them and answers 500.
func HTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, wallet.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, wallet.ErrNotFound.Error())
	case errors.Is(err, ErrAlreadyProcessed), errors.Is(err, ErrDuplicateTransaction):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidReference), errors.Is(err, ErrOutOfOrder):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrWalletInactive):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrTimeout):
		return fiber.NewError(http.StatusServiceUnavailable, "operation timed out, retry later")
	default:
		return err
	}
}
