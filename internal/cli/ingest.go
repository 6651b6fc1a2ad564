package cli

import (
	"fmt"
	"time"

	"github.com/kjannette/npt-backend/internal/db"
	"github.com/kjannette/npt-backend/internal/ingest"
	"github.com/kjannette/npt-backend/internal/models"
	"github.com/kjannette/npt-backend/internal/repository"
	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var (
		start, end string
		zones      string
		saveBronze bool
	)

	cmd := &cobra.Command{
		Use:   "ingest-prices",
		Short: "Fetch spot prices for a date range and upsert them",
		Example: `  npt ingest-prices --start 2024-01-01 --end 2024-01-31
  npt ingest-prices --start 2024-03-01 --end 2024-03-01 --zones NO1,NO5 --save-bronze=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startDay, endDay, err := parseRange(start, end)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			zs := cfg.Zones()
			if zones != "" {
				if zs, err = models.ParseZones(zones); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			pool, err := db.Connect(ctx, cfg.DSN(), cfg.PoolOptions())
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer pool.Close()

			notifiers, closeNotifiers := buildNotifiers(ctx, cfg)
			defer closeNotifiers()

			driver := ingest.NewDriver(newPriceClient(cfg), repository.NewPriceRepo(pool), cfg.BronzeDir(), notifiers...)
			sum, err := driver.Run(ctx, ingest.Request{
				Start:      startDay,
				End:        endDay,
				Zones:      zs,
				SaveBronze: saveBronze,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Done. Inserted/updated %d rows into %s.\n",
				sum.TotalRows, pool.Config().ConnConfig.Database)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "first day to ingest (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day to ingest, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&zones, "zones", "", "comma-separated zones (default DEFAULT_ZONES)")
	cmd.Flags().BoolVar(&saveBronze, "save-bronze", true, "write each raw response under the bronze directory")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// parseRange parses an inclusive YYYY-MM-DD range.
func parseRange(start, end string) (time.Time, time.Time, error) {
	s, err := ingest.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := ingest.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, &models.ValidationError{
			Fields: []string{"end"},
			Reason: fmt.Sprintf("end %s is before start %s", end, start),
		}
	}
	return s, e, nil
}
