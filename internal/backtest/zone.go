package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/kjannette/npt-backend/internal/models"
)

// PriceRange reads a zone's stored prices with from <= time_start < to.
type PriceRange interface {
	GetRange(ctx context.Context, zone models.Zone, from, to time.Time) ([]models.PricePoint, error)
}

// EvaluateZone loads a zone's prices for [from, to), builds the hourly
// series and evaluates the seasonal-naive baseline on it.
func EvaluateZone(ctx context.Context, src PriceRange, zone models.Zone, from, to time.Time, seasonLag int) (*Report, error) {
	points, err := src.GetRange(ctx, zone, from, to)
	if err != nil {
		return nil, fmt.Errorf("load %s prices: %w", zone, err)
	}
	series, err := SeriesFromPrices(points)
	if err != nil {
		return nil, fmt.Errorf("%s series: %w", zone, err)
	}
	return Evaluate(series, seasonLag)
}
