package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kjannette/npt-backend/internal/config"
	"github.com/kjannette/npt-backend/internal/external"
	"github.com/kjannette/npt-backend/internal/ingest"
	"github.com/kjannette/npt-backend/internal/notifications"
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=".
var Version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "npt",
		Short:         "Norwegian spot price ingestion and backtesting",
		Long:          `Fetches NO1..NO5 day-ahead prices from hvakosterstrommen.no, stores them in PostgreSQL and evaluates a seasonal-naive baseline on them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newIngestCmd(),
		newBacktestCmd(),
		newServeCmd(),
	)
	return root
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newPriceClient(cfg *config.Config) *external.HvakosterstrommenClient {
	return external.NewHvakosterstrommenClient(external.HvakosterstrommenOptions{
		BaseURL:     cfg.PriceAPIBaseURL,
		Timeout:     time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		MaxAttempts: cfg.FetchMaxAttempts,
	})
}

// buildNotifiers returns the configured run notifiers and a func that
// releases them. An unreachable Redis is logged and skipped.
func buildNotifiers(ctx context.Context, cfg *config.Config) ([]ingest.Notifier, func()) {
	var out []ingest.Notifier
	closeFn := func() {}

	if sender := notifications.NewSender(cfg.WebhookURL, cfg.AppName); sender.Enabled() {
		out = append(out, sender)
	}

	if cfg.RedisURL != "" {
		client, err := notifications.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			fmt.Printf("[REDIS] Disabled: %v\n", err)
		} else {
			out = append(out, notifications.NewRedisPublisher(client))
			closeFn = func() { client.Close() }
		}
	}
	return out, closeFn
}
