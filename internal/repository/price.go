package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/npt-backend/internal/models"
)

const createSpotPrices = `
CREATE TABLE IF NOT EXISTS spot_prices (
	zone        TEXT             NOT NULL,
	time_start  TIMESTAMPTZ      NOT NULL,
	time_end    TIMESTAMPTZ      NOT NULL,
	nok_per_kwh DOUBLE PRECISION NOT NULL,
	eur_per_kwh DOUBLE PRECISION NOT NULL,
	exr         DOUBLE PRECISION NOT NULL,
	source      TEXT             NOT NULL,
	ingested_at TIMESTAMPTZ      NOT NULL DEFAULT now()
)`

const createSpotPricesKey = `
CREATE UNIQUE INDEX IF NOT EXISTS spot_prices_zone_time_start_key
	ON spot_prices (zone, time_start)`

// Only keys present in the batch are removed.
const deleteSpotPriceKeys = `
DELETE FROM spot_prices
WHERE (zone, time_start) IN (
	SELECT k.zone, k.time_start
	FROM unnest($1::text[], $2::timestamptz[]) AS k(zone, time_start)
)`

const selectSpotPrices = `
SELECT zone, time_start, time_end, nok_per_kwh, eur_per_kwh, exr, source, ingested_at
FROM spot_prices`

var spotPriceColumns = []string{"zone", "time_start", "time_end", "nok_per_kwh", "eur_per_kwh", "exr", "source"}

type PriceRepo struct {
	pool *pgxpool.Pool
}

func NewPriceRepo(pool *pgxpool.Pool) *PriceRepo {
	return &PriceRepo{pool: pool}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates spot_prices and its (zone, time_start) key if absent.
func (r *PriceRepo) EnsureSchema(ctx context.Context) error {
	return ensureSchema(ctx, r.pool)
}

func ensureSchema(ctx context.Context, e execer) error {
	if _, err := e.Exec(ctx, createSpotPrices); err != nil {
		return fmt.Errorf("create spot_prices: %w", err)
	}
	if _, err := e.Exec(ctx, createSpotPricesKey); err != nil {
		return fmt.Errorf("create spot_prices key: %w", err)
	}
	return nil
}

// Upsert replaces the rows for every (zone, time_start) in records and
// leaves all other rows untouched. The batch is validated before the
// database is touched, and delete plus insert commit together.
func (r *PriceRepo) Upsert(ctx context.Context, records []models.PricePoint) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := prepareBatch(records)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureSchema(ctx, tx); err != nil {
		return err
	}

	zones := make([]string, len(batch))
	starts := make([]time.Time, len(batch))
	for i, p := range batch {
		zones[i] = string(p.Zone)
		starts[i] = p.TimeStart
	}
	if _, err := tx.Exec(ctx, deleteSpotPriceKeys, zones, starts); err != nil {
		return fmt.Errorf("delete existing keys: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"spot_prices"}, spotPriceColumns,
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			p := batch[i]
			return []any{string(p.Zone), p.TimeStart, p.TimeEnd, p.NOKPerKWh, p.EURPerKWh, p.EXR, p.Source}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("insert spot_prices: %w", err)
	}
	if int(n) != len(batch) {
		return fmt.Errorf("insert spot_prices: wrote %d of %d rows", n, len(batch))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// prepareBatch validates every record, normalises times to UTC at the
// microsecond precision timestamptz keeps, stamps the source tag and drops
// earlier duplicates of the same key. The caller's slice is not modified.
func prepareBatch(records []models.PricePoint) ([]models.PricePoint, error) {
	type key struct {
		zone  models.Zone
		start int64
	}

	out := make([]models.PricePoint, 0, len(records))
	index := make(map[key]int, len(records))

	for i, rec := range records {
		p := rec
		p.TimeStart = p.TimeStart.UTC().Truncate(time.Microsecond)
		p.TimeEnd = p.TimeEnd.UTC().Truncate(time.Microsecond)
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		p.Source = models.SourceHvakosterstrommen
		p.IngestedAt = time.Time{}

		k := key{zone: p.Zone, start: p.TimeStart.UnixNano()}
		if j, seen := index[k]; seen {
			out[j] = p
			continue
		}
		index[k] = len(out)
		out = append(out, p)
	}
	return out, nil
}

// GetByDay returns a zone's prices for an Oslo calendar day (YYYY-MM-DD).
func (r *PriceRepo) GetByDay(ctx context.Context, zone models.Zone, day string) ([]models.PricePoint, error) {
	from, to, err := DayBounds(day)
	if err != nil {
		return nil, err
	}
	return r.GetRange(ctx, zone, from, to)
}

// GetRange returns a zone's prices with from <= time_start < to, ascending.
func (r *PriceRepo) GetRange(ctx context.Context, zone models.Zone, from, to time.Time) ([]models.PricePoint, error) {
	rows, err := r.pool.Query(ctx,
		selectSpotPrices+` WHERE zone = $1 AND time_start >= $2 AND time_start < $3 ORDER BY time_start ASC`,
		string(zone), from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrices(rows)
}

func (r *PriceRepo) GetAvailableDays(ctx context.Context, zone models.Zone) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT (time_start AT TIME ZONE 'Europe/Oslo')::date AS day
		 FROM spot_prices WHERE zone = $1 ORDER BY day DESC LIMIT 60`,
		string(zone),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d.Format("2006-01-02"))
	}
	return days, rows.Err()
}

// GetLatest returns the newest price for a zone, or nil if there is none.
func (r *PriceRepo) GetLatest(ctx context.Context, zone models.Zone) (*models.PricePoint, error) {
	row := r.pool.QueryRow(ctx,
		selectSpotPrices+` WHERE zone = $1 ORDER BY time_start DESC LIMIT 1`,
		string(zone),
	)
	p, err := scanPrice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// Count returns the number of stored rows.
func (r *PriceRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM spot_prices`).Scan(&n)
	return n, err
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanPrice(row scannable) (*models.PricePoint, error) {
	var p models.PricePoint
	var zone string
	err := row.Scan(&zone, &p.TimeStart, &p.TimeEnd, &p.NOKPerKWh, &p.EURPerKWh, &p.EXR, &p.Source, &p.IngestedAt)
	if err != nil {
		return nil, err
	}
	p.Zone = models.Zone(zone)
	p.TimeStart = p.TimeStart.UTC()
	p.TimeEnd = p.TimeEnd.UTC()
	return &p, nil
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectPrices(rows rowsIter) ([]models.PricePoint, error) {
	var out []models.PricePoint
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
