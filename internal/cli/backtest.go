package cli

import (
	"errors"
	"fmt"

	"github.com/kjannette/npt-backend/internal/backtest"
	"github.com/kjannette/npt-backend/internal/db"
	"github.com/kjannette/npt-backend/internal/metrics"
	"github.com/kjannette/npt-backend/internal/models"
	"github.com/kjannette/npt-backend/internal/repository"
	"github.com/spf13/cobra"
)

func newBacktestCmd() *cobra.Command {
	var (
		zone       string
		start, end string
		seasonLag  int
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Walk-forward evaluate the seasonal-naive baseline for one zone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			z, err := models.ParseZone(zone)
			if err != nil {
				return err
			}
			if _, _, err := parseRange(start, end); err != nil {
				return err
			}
			if seasonLag < 0 {
				return &models.ValidationError{Fields: []string{"season-lag"}, Reason: "season lag must be positive"}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if seasonLag == 0 {
				seasonLag = cfg.SeasonLagHours
			}

			from, _, err := repository.DayBounds(start)
			if err != nil {
				return err
			}
			_, to, err := repository.DayBounds(end)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.Connect(ctx, cfg.DSN(), cfg.PoolOptions())
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer pool.Close()

			out := cmd.OutOrStdout()
			report, err := backtest.EvaluateZone(ctx, repository.NewPriceRepo(pool), z, from, to, seasonLag)
			if errors.Is(err, backtest.ErrEmptyResult) {
				metrics.RecordBacktest(string(z), "insufficient_data", 0)
				fmt.Fprintf(out, "%s %s..%s: insufficient data for season lag %dh\n", z, start, end, seasonLag)
				return nil
			}
			if err != nil {
				return err
			}
			metrics.RecordBacktest(string(z), "ok", report.MAE)
			printReport(cmd, z, start, end, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&zone, "zone", string(models.NO1), "price zone (NO1..NO5)")
	cmd.Flags().StringVar(&start, "start", "", "first day of history (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day of history, inclusive (YYYY-MM-DD)")
	cmd.Flags().IntVar(&seasonLag, "season-lag", 0, "season lag in hours (default SEASON_LAG_HOURS)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func printReport(cmd *cobra.Command, zone models.Zone, start, end string, r *backtest.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backtest %s %s..%s (season lag %dh, horizon %dh)\n", zone, start, end, r.SeasonLag, backtest.Horizon)
	fmt.Fprintf(out, "  origins: %d\n", r.Origins)
	fmt.Fprintf(out, "  points:  %d\n", r.Points)
	fmt.Fprintf(out, "  MAE:     %.4f NOK/kWh\n", r.MAE)
	fmt.Fprintf(out, "  RMSE:    %.4f NOK/kWh\n", r.RMSE)
}
