package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kjannette/npt-backend/internal/db"
	"github.com/kjannette/npt-backend/internal/models"
)

type Config struct {
	// Paths
	DataDir string

	// Secrets (from .env)
	APIKey          string
	CORSAllowOrigin string
	WebhookURL      string
	RedisURL        string
	AppName         string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBName      string
	DBUser      string
	DBPassword  string
	DBMaxConns  int

	// API
	APIPort int

	// Fetch
	PriceAPIBaseURL     string
	FetchTimeoutSeconds int
	FetchMaxAttempts    int

	// Backtest
	SeasonLagHours int

	// Ingestion
	DefaultZones            string
	ScheduleIntervalMinutes int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DataDir: envStr("NPT_DATA_DIR", "data"),

		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		RedisURL:        envStr("REDIS_URL", ""),
		AppName:         envStr("APP_NAME", "npt"),

		DatabaseURL: envStr("DATABASE_URL", ""),
		DBHost:      envStr("DB_HOST", "localhost"),
		DBPort:      envInt("DB_PORT", 5432),
		DBName:      envStr("DB_NAME", "npt"),
		DBUser:      envStr("DB_USER", "postgres"),
		DBPassword:  envStr("DB_PASSWORD", ""),
		DBMaxConns:  envInt("DB_MAX_CONNS", 4),

		APIPort: envInt("API_PORT", 3001),

		PriceAPIBaseURL:     envStr("PRICE_API_BASE_URL", ""),
		FetchTimeoutSeconds: envInt("FETCH_TIMEOUT_SECONDS", 20),
		FetchMaxAttempts:    envInt("FETCH_MAX_ATTEMPTS", 1),

		SeasonLagHours: envInt("SEASON_LAG_HOURS", 168),

		DefaultZones:            envStr("DEFAULT_ZONES", "NO1,NO2,NO3,NO4,NO5"),
		ScheduleIntervalMinutes: envInt("SCHEDULE_INTERVAL_MINUTES", 60),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.DataDir == "" {
		errs = append(errs, "NPT_DATA_DIR must not be empty")
	}
	if c.FetchTimeoutSeconds <= 0 {
		errs = append(errs, "FETCH_TIMEOUT_SECONDS must be positive")
	}
	if c.FetchMaxAttempts <= 0 {
		errs = append(errs, "FETCH_MAX_ATTEMPTS must be positive")
	}
	if c.DBMaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.SeasonLagHours <= 0 {
		errs = append(errs, "SEASON_LAG_HOURS must be positive")
	}
	if _, err := models.ParseZones(c.DefaultZones); err != nil {
		errs = append(errs, fmt.Sprintf("DEFAULT_ZONES: %v", err))
	}
	if c.FetchMaxAttempts > 1 {
		fmt.Printf("[WARN] FETCH_MAX_ATTEMPTS=%d, failed fetches will be retried with backoff\n", c.FetchMaxAttempts)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== npt Configuration ===")
	fmt.Printf("Data dir: %s\n", c.DataDir)
	if c.DatabaseURL != "" {
		fmt.Println("Database: DATABASE_URL")
	} else {
		fmt.Printf("Database: %s:%d/%s\n", c.DBHost, c.DBPort, c.DBName)
	}
	fmt.Printf("Zones: %s\n", c.DefaultZones)
	fmt.Printf("Fetch: timeout %ds, %d attempt(s)\n", c.FetchTimeoutSeconds, c.FetchMaxAttempts)
	fmt.Printf("Season lag: %dh\n", c.SeasonLagHours)
	fmt.Printf("Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Printf("Redis: %s\n", boolLabel(c.RedisURL != "", "configured", "not set"))
	fmt.Println("=========================")
}

func (c *Config) PoolOptions() db.PoolOptions {
	return db.PoolOptions{MaxConns: int32(c.DBMaxConns), AppName: c.AppName}
}

// DSN prefers DATABASE_URL and falls back to the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) Zones() []models.Zone {
	zones, err := models.ParseZones(c.DefaultZones)
	if err != nil {
		return models.AllZones
	}
	return zones
}

// --- paths ---

func (c *Config) BronzeDir() string { return filepath.Join(c.DataDir, "bronze") }
func (c *Config) SilverDir() string { return filepath.Join(c.DataDir, "silver") }
func (c *Config) GoldDir() string   { return filepath.Join(c.DataDir, "gold") }

// EnsureDirs creates the bronze, silver and gold directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.BronzeDir(), c.SilverDir(), c.GoldDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
