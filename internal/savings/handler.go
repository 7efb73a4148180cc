package savings

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kolo-save/kolo/internal/wallet"
)

// Handler exposes the batch trigger used by the external cron job.
type Handler struct {
	runner   Runner
	location *time.Location
	now      func() time.Time
}

// NewHandler builds the cron trigger handler. loc defines "today" when no date is given.
func NewHandler(runner Runner, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{runner: runner, location: loc, now: time.Now}
}

// ReportResponse is the JSON body returned after a batch run.
type ReportResponse struct {
	Date             string    `json:"date"`
	Processed        int       `json:"processed"`
	Successful       int       `json:"successful_savings"`
	AlreadyProcessed int       `json:"already_processed"`
	Failed           int       `json:"failed_savings"`
	TotalAmount      string    `json:"total_amount"`
	Failures         []Failure `json:"failures"`
	DurationMillis   int64     `json:"duration_ms"`
}

// ToReportResponse renders r for the API.
func ToReportResponse(r Report) ReportResponse {
	failures := r.Failures
	if failures == nil {
		failures = []Failure{}
	}
	return ReportResponse{
		Date:             wallet.FormatDate(r.Date),
		Processed:        r.Processed,
		Successful:       r.Successful,
		AlreadyProcessed: r.AlreadyProcessed,
		Failed:           r.Failed,
		TotalAmount:      r.TotalAmount.StringFixed(wallet.AmountPlaces),
		Failures:         failures,
		DurationMillis:   r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
}

// Trigger runs the daily savings batch for the "date" query parameter, or today.
func (h *Handler) Trigger(c *fiber.Ctx) error {
	date := Today(h.now(), h.location)
	if raw := c.Query("date"); raw != "" {
		parsed, err := wallet.ParseDate(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		date = parsed
	}

	report, err := h.runner.Run(c.UserContext(), date)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(ToReportResponse(report))
}
