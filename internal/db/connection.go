package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns       = 4
	defaultConnectTimeout = 5 * time.Second
)

// PoolOptions tunes the pool. Zero values fall back to the defaults above.
type PoolOptions struct {
	MaxConns       int32
	ConnectTimeout time.Duration
	AppName        string
}

// Connect opens a pool and pings it. Sessions run in UTC; day grouping is
// always done with an explicit AT TIME ZONE.
func Connect(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = opts.MaxConns
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaultMaxConns
	}
	cfg.MinConns = 0
	cfg.MaxConnIdleTime = time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	if opts.AppName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.AppName
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.ConnConfig.Host, err)
	}
	return p, nil
}

type ServerInfo struct {
	Version  string
	Database string
	TimeZone string
	Now      time.Time
}

func (s ServerInfo) String() string {
	return fmt.Sprintf("PostgreSQL %s, database %s, tz %s, clock %s",
		s.Version, s.Database, s.TimeZone, s.Now.UTC().Format(time.RFC3339))
}

// Describe reports what the pool is connected to.
func Describe(ctx context.Context, p *pgxpool.Pool) (ServerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var info ServerInfo
	err := p.QueryRow(ctx,
		`SELECT current_setting('server_version'), current_database(), current_setting('TimeZone'), now()`,
	).Scan(&info.Version, &info.Database, &info.TimeZone, &info.Now)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("describe server: %w", err)
	}
	return info, nil
}
