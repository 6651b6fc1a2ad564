package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjannette/npt-backend/internal/api"
	"github.com/kjannette/npt-backend/internal/db"
	"github.com/kjannette/npt-backend/internal/ingest"
	"github.com/kjannette/npt-backend/internal/models"
	"github.com/kjannette/npt-backend/internal/notifications"
	"github.com/kjannette/npt-backend/internal/repository"
	"github.com/kjannette/npt-backend/internal/scheduler"
	"github.com/spf13/cobra"
)

const banner = `
╔══════════════════════════════════════╗
║     npt Nordic Spot Price Service    ║
║                                      ║
╚══════════════════════════════════════╝
`

func newServeCmd() *cobra.Command {
	var (
		port     int
		schedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API, and optionally the hourly ingestion scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(banner)

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port == 0 {
				port = cfg.APIPort
			}
			cfg.Print()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Database
			fmt.Println("\n[DB] Connecting ...")
			pool, err := db.Connect(ctx, cfg.DSN(), cfg.PoolOptions())
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer func() {
				pool.Close()
				fmt.Println("[DB] Connection pool closed")
			}()
			info, err := db.Describe(ctx, pool)
			if err != nil {
				return err
			}
			fmt.Printf("[DB] Connected: %s\n", info)

			prices := repository.NewPriceRepo(pool)
			if err := prices.EnsureSchema(ctx); err != nil {
				return err
			}

			// 1. API server
			srv := api.NewServer(pool, api.Options{
				Port:       port,
				APIKey:     cfg.APIKey,
				CORSOrigin: cfg.CORSAllowOrigin,
				SeasonLag:  cfg.SeasonLagHours,
			})
			srvErr := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					srvErr <- err
				}
			}()

			// 2. Ingestion scheduler
			var sched *scheduler.IngestScheduler
			if schedule {
				notifiers, closeNotifiers := buildNotifiers(ctx, cfg)
				defer closeNotifiers()

				driver := ingest.NewDriver(newPriceClient(cfg), prices, cfg.BronzeDir(), notifiers...)
				sched = scheduler.NewIngestScheduler(driver, scheduler.IngestSchedulerConfig{
					Interval:   time.Duration(cfg.ScheduleIntervalMinutes) * time.Minute,
					Zones:      cfg.Zones(),
					SaveBronze: true,
					OnRun: func(sum models.IngestSummary, err error) {
						if err == nil {
							fmt.Printf("[SCHEDULER] %s\n", notifications.FormatSummary(sum))
						}
					},
				})
				sched.Start()
			} else {
				fmt.Println("[SCHEDULER] Skipped, run with --schedule to enable")
			}

			fmt.Println("\nAll services started successfully")

			select {
			case <-ctx.Done():
			case err := <-srvErr:
				fmt.Printf("[API] Server error: %v\n", err)
			}
			fmt.Println("\nShutting down gracefully...")

			if sched != nil {
				sched.Stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				fmt.Printf("[API] Shutdown error: %v\n", err)
			}
			fmt.Println("[API] Server closed")
			fmt.Println("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default API_PORT)")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "ingest today's and tomorrow's prices on a ticker")
	return cmd
}
