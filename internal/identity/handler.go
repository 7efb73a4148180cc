package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Handler exposes identity endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

type registerRequest struct {
	Phone    string `json:"phone" validate:"required,e164"`
	PIN      string `json:"pin" validate:"required,numeric,min=4,max=8"`
	DeviceID string `json:"device_id" validate:"max=128"`
}

type userResponse struct {
	UserID    string `json:"user_id"`
	Phone     string `json:"phone"`
	Tier      string `json:"tier"`
	DeviceID  string `json:"device_id"`
	CreatedAt string `json:"created_at"`
}

// Register handles user onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.Register(c.UserContext(), Credentials{Phone: req.Phone, PIN: req.PIN, DeviceID: req.DeviceID})
	if err != nil {
		switch {
		case errors.Is(err, ErrExists):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrWeakPIN):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return err
		}
	}
	return c.Status(http.StatusCreated).JSON(toResponse(user))
}

// Me returns the profile of the authenticated user. userID comes from the auth middleware.
func (h *Handler) Me(userID func(*fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := h.service.Get(c.UserContext(), userID(c))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(http.StatusNotFound, err.Error())
			}
			return err
		}
		return c.Status(http.StatusOK).JSON(toResponse(user))
	}
}

func toResponse(user User) userResponse {
	return userResponse{
		UserID:    user.ID,
		Phone:     user.Phone,
		Tier:      user.Tier,
		DeviceID:  user.DeviceID,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}
