package otp

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Handler exposes code issuance and verification.
type Handler struct {
	issuer   *Issuer
	validate *validator.Validate
}

// NewHandler constructs an OTP handler.
func NewHandler(issuer *Issuer, validate *validator.Validate) *Handler {
	return &Handler{issuer: issuer, validate: validate}
}

type issueRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type verifyRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// Request issues a code and reports whether the SMS went out.
func (h *Handler) Request(c *fiber.Ctx) error {
	var req issueRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	issued, err := h.issuer.Issue(c.UserContext(), req.Phone)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"expires_at": issued.ExpiresAt.Format(time.RFC3339),
		"delivered":  issued.Delivered,
	})
}

// Verify consumes a code.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.issuer.Verify(c.UserContext(), req.Phone, req.Code); err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"verified": true})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrExpired):
		return fiber.NewError(http.StatusGone, err.Error())
	case errors.Is(err, ErrAttemptsExceeded):
		return fiber.NewError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrInvalidCode):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrConflict):
		return fiber.NewError(http.StatusServiceUnavailable, "verification temporarily unavailable, retry later")
	default:
		return err
	}
}
