package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kjannette/npt-backend/internal/external"
	"github.com/kjannette/npt-backend/internal/metrics"
	"github.com/kjannette/npt-backend/internal/models"
)

const dateLayout = "2006-01-02"

// Fetcher downloads one day's raw payload for a zone.
type Fetcher interface {
	FetchRaw(ctx context.Context, day time.Time, zone models.Zone) ([]byte, error)
}

// Store persists a batch of prices idempotently.
type Store interface {
	Upsert(ctx context.Context, records []models.PricePoint) error
}

// Notifier is told about every successful run.
type Notifier interface {
	Notify(ctx context.Context, sum models.IngestSummary) error
}

type Request struct {
	Start      time.Time
	End        time.Time
	Zones      []models.Zone
	SaveBronze bool
}

type Driver struct {
	fetcher   Fetcher
	store     Store
	bronzeDir string
	notifiers []Notifier
	now       func() time.Time
}

func NewDriver(fetcher Fetcher, store Store, bronzeDir string, notifiers ...Notifier) *Driver {
	return &Driver{
		fetcher:   fetcher,
		store:     store,
		bronzeDir: bronzeDir,
		notifiers: notifiers,
		now:       time.Now,
	}
}

// ParseDate parses YYYY-MM-DD as a calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &models.ValidationError{
			Fields: []string{"date"},
			Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s),
		}
	}
	return d, nil
}

// Run ingests every day in [Start, End] for every zone, one upsert batch
// per day and zone. The first failure aborts the run; batches already
// written stay committed.
func (d *Driver) Run(ctx context.Context, req Request) (models.IngestSummary, error) {
	sum := models.IngestSummary{
		RunID:     uuid.New(),
		Start:     req.Start.Format(dateLayout),
		End:       req.End.Format(dateLayout),
		Zones:     req.Zones,
		StartedAt: d.now(),
	}

	if req.End.Before(req.Start) {
		return sum, &models.ValidationError{Fields: []string{"end"}, Reason: "end must be >= start"}
	}
	if len(req.Zones) == 0 {
		return sum, &models.ValidationError{Fields: []string{"zones"}, Reason: "no zones given"}
	}
	for _, z := range req.Zones {
		if _, err := models.ParseZone(string(z)); err != nil {
			return sum, err
		}
	}

	fmt.Printf("[INGEST] Run %s: %s..%s zones=%v bronze=%v\n", sum.RunID, sum.Start, sum.End, req.Zones, req.SaveBronze)

	for day := req.Start; !day.After(req.End); day = day.AddDate(0, 0, 1) {
		for _, zone := range req.Zones {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			n, err := d.ingestOne(ctx, day, zone, req.SaveBronze)
			if err != nil {
				return sum, fmt.Errorf("ingest %s %s: %w", day.Format(dateLayout), zone, err)
			}
			if n == 0 {
				continue
			}
			sum.Batches++
			sum.TotalRows += n
		}
	}

	sum.FinishedAt = d.now()
	metrics.IngestDuration.Observe(sum.Duration().Seconds())

	for _, n := range d.notifiers {
		if err := n.Notify(ctx, sum); err != nil {
			fmt.Printf("[INGEST] Notification failed: %v\n", err)
		}
	}
	return sum, nil
}

func (d *Driver) ingestOne(ctx context.Context, day time.Time, zone models.Zone, saveBronze bool) (int, error) {
	raw, err := d.fetcher.FetchRaw(ctx, day, zone)
	if err != nil {
		metrics.FetchFailures.WithLabelValues(string(zone), errorKind(err)).Inc()
		return 0, err
	}

	if saveBronze {
		path, err := external.SaveBronze(d.bronzeDir, day, zone, raw)
		if err != nil {
			return 0, err
		}
		fmt.Printf("[INGEST] Saved %s\n", path)
	}

	records, err := external.Decode(raw, zone, fmt.Sprintf("%s %s", day.Format(dateLayout), zone))
	if err != nil {
		metrics.FetchFailures.WithLabelValues(string(zone), errorKind(err)).Inc()
		return 0, err
	}
	if len(records) == 0 {
		fmt.Printf("[INGEST] %s %s: empty payload, skipped\n", day.Format(dateLayout), zone)
		return 0, nil
	}

	if err := d.store.Upsert(ctx, records); err != nil {
		return 0, err
	}
	metrics.BatchesWritten.Inc()
	metrics.RowsUpserted.WithLabelValues(string(zone)).Add(float64(len(records)))
	fmt.Printf("[INGEST] %s %s: %d rows\n", day.Format(dateLayout), zone, len(records))
	return len(records), nil
}

func errorKind(err error) string {
	var (
		terr *external.TransportError
		serr *external.SchemaError
		verr *models.ValidationError
	)
	switch {
	case errors.As(err, &terr):
		return "transport"
	case errors.As(err, &serr):
		return "schema"
	case errors.As(err, &verr):
		return "validation"
	default:
		return "other"
	}
}
