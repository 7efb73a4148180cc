package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/kolo-save/kolo/internal/identity"
)

// Handler exposes the login endpoint.
type Handler struct {
	ids      *identity.Service
	tokens   *JWTGateway
	validate *validator.Validate
}

// NewHandler wires login to the identity service and token issuer.
func NewHandler(ids *identity.Service, tokens *JWTGateway, validate *validator.Validate) *Handler {
	return &Handler{ids: ids, tokens: tokens, validate: validate}
}

type loginRequest struct {
	Phone    string `json:"phone" validate:"required,e164"`
	PIN      string `json:"pin" validate:"required,numeric,min=4,max=8"`
	DeviceID string `json:"device_id" validate:"max=128"`
}

type loginResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login validates credentials and returns an access token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{Phone: req.Phone, PIN: req.PIN, DeviceID: req.DeviceID})
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) || errors.Is(err, identity.ErrDeviceMismatch) || errors.Is(err, identity.ErrNotFound) {
			return fiber.NewError(http.StatusUnauthorized, "invalid credentials")
		}
		if errors.Is(err, identity.ErrDeviceRequired) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	token, exp, err := h.tokens.Issue(user.ID, user.Phone)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		UserID:      user.ID,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
	})
}
