package funding

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/kolo-save/kolo/internal/auth"
	"github.com/kolo-save/kolo/internal/ledger"
	"github.com/kolo-save/kolo/internal/wallet"
)

// Handler exposes HTTP endpoints for card funding flows.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

// TopUp processes wallet top-ups funded by cards.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	var req TopUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.TopUp(c.UserContext(), TopUpInput{
		UserID:     auth.UserID(c),
		Amount:     *req.Amount,
		ClientTxID: req.ClientTxID,
		CardNumber: req.CardNumber,
		Expiry:     req.Expiry,
		CVV:        req.CVV,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			res := toResponse(result)
			res.Duplicate = true
			return c.Status(http.StatusOK).JSON(res)
		case errors.Is(err, errInvalidCard):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return ledger.HTTPError(err)
		}
	}

	return c.Status(http.StatusCreated).JSON(toResponse(result))
}

func toResponse(result TopUpResult) TopUpResponse {
	return TopUpResponse{
		TransactionID:     result.Entry.ID,
		Balance:           result.Wallet.Balance.StringFixed(wallet.AmountPlaces),
		TotalBalance:      result.Wallet.TotalBalance.StringFixed(wallet.AmountPlaces),
		AcquirerReference: result.AcquirerReference,
	}
}
