package wallet

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kolo-save/kolo/internal/auth"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	location *time.Location
}

// NewHandler builds a wallet HTTP handler. loc is the calendar used for "today".
func NewHandler(service *Service, validate *validator.Validate, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, validate: validate, location: loc}
}

type settingsRequest struct {
	DailySavingAmount *decimal.Decimal `json:"daily_saving_amount" validate:"required"`
}

// Response is the public view of a wallet.
type Response struct {
	UserID              string `json:"user_id"`
	Currency            string `json:"currency"`
	Status              string `json:"status"`
	Balance             string `json:"balance"`
	Locked              string `json:"locked"`
	ReferralEarnings    string `json:"referral_earnings"`
	TotalBalance        string `json:"total_balance"`
	CurrentStreak       int    `json:"current_streak"`
	LastDailySavingDate string `json:"last_daily_saving_date,omitempty"`
	DailySavingAmount   string `json:"daily_saving_amount"`
	UpdatedAt           string `json:"updated_at"`
}

// EntryResponse is the public view of a journal entry.
type EntryResponse struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Reference    string `json:"reference"`
	Amount       string `json:"amount"`
	BalanceAfter string `json:"balance_after"`
	LockedAfter  string `json:"locked_after"`
	TotalAfter   string `json:"total_after"`
	CreatedAt    string `json:"created_at"`
}

// ToResponse renders w for the API as seen on today.
func ToResponse(w Wallet, today time.Time) Response {
	res := Response{
		UserID:            w.UserID,
		Currency:          w.Currency,
		Status:            w.Status,
		Balance:           w.Balance.StringFixed(AmountPlaces),
		Locked:            w.Locked.StringFixed(AmountPlaces),
		ReferralEarnings:  w.ReferralEarnings.StringFixed(AmountPlaces),
		TotalBalance:      w.TotalBalance.StringFixed(AmountPlaces),
		CurrentStreak:     w.StreakOn(today),
		DailySavingAmount: w.DailySavingAmount.StringFixed(AmountPlaces),
		UpdatedAt:         w.UpdatedAt.Format(time.RFC3339),
	}
	if w.HasSaved() {
		res.LastDailySavingDate = FormatDate(w.LastDailySavingDate)
	}
	return res
}

// ToEntryResponse renders e for the API.
func ToEntryResponse(e Entry) EntryResponse {
	return EntryResponse{
		ID:           e.ID,
		Kind:         e.Kind,
		Reference:    e.Reference,
		Amount:       e.Amount.StringFixed(AmountPlaces),
		BalanceAfter: e.BalanceAfter.StringFixed(AmountPlaces),
		LockedAfter:  e.LockedAfter.StringFixed(AmountPlaces),
		TotalAfter:   e.TotalAfter.StringFixed(AmountPlaces),
		CreatedAt:    e.CreatedAt.Format(time.RFC3339Nano),
	}
}

// Me returns the authenticated user's wallet.
func (h *Handler) Me(c *fiber.Ctx) error {
	w, err := h.service.Get(c.UserContext(), auth.UserID(c))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(ToResponse(w, h.today()))
}

// History lists recent journal entries, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "0"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "limit must be an integer")
	}
	entries, err := h.service.History(c.UserContext(), auth.UserID(c), limit)
	if err != nil {
		return mapError(err)
	}
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToEntryResponse(e))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"entries": out})
}

// UpdateSettings changes the daily saving amount.
func (h *Handler) UpdateSettings(c *fiber.Ctx) error {
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.UpdateSettings(c.UserContext(), auth.UserID(c), *req.DailySavingAmount)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(ToResponse(w, h.today()))
}

// Stats serves the operations dashboard aggregate. The optional date query selects the day.
func (h *Handler) Stats(c *fiber.Ctx) error {
	day := h.today()
	if raw := c.Query("date"); raw != "" {
		parsed, err := ParseDate(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		day = parsed
	}
	st, err := h.service.Stats(c.UserContext(), day)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"date":           FormatDate(st.Day),
		"wallets":        st.Wallets,
		"active_wallets": st.ActiveWallets,
		"total_balance":  st.TotalBalance.StringFixed(AmountPlaces),
		"total_locked":   st.TotalLocked.StringFixed(AmountPlaces),
		"total_referral": st.TotalReferral.StringFixed(AmountPlaces),
		"total_holdings": st.TotalHoldings.StringFixed(AmountPlaces),
		"savers_on_day":  st.SaversOnDay,
		"saved_on_day":   st.SavedOnDay.StringFixed(AmountPlaces),
		"average_streak": st.AverageStreak.StringFixed(AmountPlaces),
		"longest_streak": st.LongestStreak,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (h *Handler) today() time.Time {
	return time.Now().In(h.location)
}
