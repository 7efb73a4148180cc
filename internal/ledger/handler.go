package ledger

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kolo-save/kolo/internal/auth"
	"github.com/kolo-save/kolo/internal/wallet"
)

// Handler exposes ledger mutations over HTTP.
type Handler struct {
	service  *Service
	validate *validator.Validate
	location *time.Location
}

// NewHandler constructs a ledger handler. loc is the calendar streaks are reported in.
func NewHandler(service *Service, validate *validator.Validate, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, validate: validate, location: loc}
}

// MovementRequest moves funds within the caller's wallet.
type MovementRequest struct {
	Amount    *decimal.Decimal `json:"amount" validate:"required"`
	Reference string           `json:"reference" validate:"required,max=64"`
}

// ReferralRequest credits a referral reward to a user.
type ReferralRequest struct {
	UserID    string           `json:"user_id" validate:"required,uuid"`
	Amount    *decimal.Decimal `json:"amount" validate:"required"`
	Reference string           `json:"reference" validate:"required,max=64"`
}

// MutationResponse reports a wallet after a mutation.
type MutationResponse struct {
	Wallet    wallet.Response       `json:"wallet"`
	Entry     *wallet.EntryResponse `json:"entry,omitempty"`
	Duplicate bool                  `json:"duplicate,omitempty"`
}

// Lock moves part of the balance into locked savings.
func (h *Handler) Lock(c *fiber.Ctx) error {
	req, err := h.parseMovement(c)
	if err != nil {
		return err
	}
	res, err := h.service.LockFunds(c.UserContext(), auth.UserID(c), *req.Amount, req.Reference)
	return h.respond(c, res, err)
}

// Unlock releases locked savings back to the balance.
func (h *Handler) Unlock(c *fiber.Ctx) error {
	req, err := h.parseMovement(c)
	if err != nil {
		return err
	}
	res, err := h.service.UnlockFunds(c.UserContext(), auth.UserID(c), *req.Amount, req.Reference)
	return h.respond(c, res, err)
}

// CreditReferral credits a referral reward; mounted on the internal, secret-guarded group.
func (h *Handler) CreditReferral(c *fiber.Ctx) error {
	var req ReferralRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.CreditReferral(c.UserContext(), req.UserID, *req.Amount, req.Reference)
	return h.respond(c, res, err)
}

func (h *Handler) parseMovement(c *fiber.Ctx) (MovementRequest, error) {
	var req MovementRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return req, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return req, nil
}

func (h *Handler) respond(c *fiber.Ctx, res Result, err error) error {
	today := time.Now().In(h.location)
	if errors.Is(err, ErrDuplicateTransaction) {
		return c.Status(http.StatusOK).JSON(MutationResponse{Wallet: wallet.ToResponse(res.Wallet, today), Duplicate: true})
	}
	if err != nil {
		return HTTPError(err)
	}
	entry := wallet.ToEntryResponse(res.Entry)
	return c.Status(http.StatusCreated).JSON(MutationResponse{Wallet: wallet.ToResponse(res.Wallet, today), Entry: &entry})
}
