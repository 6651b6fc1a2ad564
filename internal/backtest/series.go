package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kjannette/npt-backend/internal/models"
)

type Observation struct {
	Time  time.Time
	Value float64
}

// Series is a strictly hourly, UTC-indexed sequence of observations with no
// gaps. Build one with NewHourlySeries.
type Series struct {
	obs []Observation
}

// GapError reports the hours missing between the first and last observation.
type GapError struct {
	Missing []time.Time
}

func (e *GapError) Error() string {
	return fmt.Sprintf("series has %d missing hour(s), first at %s",
		len(e.Missing), e.Missing[0].Format(time.RFC3339))
}

// NewHourlySeries sorts observations, buckets them by UTC hour and averages
// every bucket, so 15-minute data collapses to one value per hour. Missing
// hours are reported as a *GapError rather than filled.
func NewHourlySeries(obs []Observation) (Series, error) {
	if len(obs) == 0 {
		return Series{}, nil
	}

	type bucket struct {
		sum float64
		n   int
	}
	buckets := make(map[int64]*bucket, len(obs))
	var hours []int64

	for _, o := range obs {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return Series{}, fmt.Errorf("non-finite value at %s", o.Time.Format(time.RFC3339))
		}
		h := o.Time.UTC().Truncate(time.Hour).Unix()
		b, ok := buckets[h]
		if !ok {
			b = &bucket{}
			buckets[h] = b
			hours = append(hours, h)
		}
		b.sum += o.Value
		b.n++
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i] < hours[j] })

	out := make([]Observation, 0, len(hours))
	var missing []time.Time
	for i, h := range hours {
		if i > 0 {
			for gap := hours[i-1] + 3600; gap < h; gap += 3600 {
				missing = append(missing, time.Unix(gap, 0).UTC())
			}
		}
		b := buckets[h]
		out = append(out, Observation{Time: time.Unix(h, 0).UTC(), Value: b.sum / float64(b.n)})
	}
	if len(missing) > 0 {
		return Series{}, &GapError{Missing: missing}
	}
	return Series{obs: out}, nil
}

// SeriesFromPrices builds the NOK/kWh series of one zone's stored prices.
func SeriesFromPrices(points []models.PricePoint) (Series, error) {
	obs := make([]Observation, len(points))
	for i, p := range points {
		obs[i] = Observation{Time: p.TimeStart, Value: p.NOKPerKWh}
	}
	return NewHourlySeries(obs)
}

func (s Series) Len() int { return len(s.obs) }

func (s Series) At(i int) Observation { return s.obs[i] }

// Observations returns a copy.
func (s Series) Observations() []Observation {
	return append([]Observation(nil), s.obs...)
}
