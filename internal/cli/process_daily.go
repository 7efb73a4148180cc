package cli

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kolo-save/kolo/internal/savings"
	"github.com/kolo-save/kolo/internal/wallet"
)

var processDailyDate string

var processDailyCmd = &cobra.Command{
	Use:   "process-daily",
	Short: "Run the daily savings batch once",
	Long: `Apply the daily saving to every active wallet for one calendar date and print
the report as JSON. Running it again for the same date only reports already processed wallets.`,
	Args: cobra.NoArgs,
	RunE: runProcessDaily,
}

func init() {
	processDailyCmd.Flags().StringVar(&processDailyDate, "date", "", "calendar date (YYYY-MM-DD); defaults to today in DAILY_SAVINGS_TIMEZONE")
	rootCmd.AddCommand(processDailyCmd)
}

func runProcessDaily(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	date := savings.Today(time.Now(), rt.cfg.DailySavings.Location)
	if processDailyDate != "" {
		if date, err = wallet.ParseDate(processDailyDate); err != nil {
			return err
		}
	}

	report, err := rt.components.Processor.Run(ctx, date)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(savings.ToReportResponse(report)); encErr != nil {
		return encErr
	}
	if err != nil {
		return fmt.Errorf("daily savings for %s: %w", wallet.FormatDate(date), err)
	}
	return nil
}
