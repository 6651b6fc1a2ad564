package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kjannette/npt-backend/internal/external"
	"github.com/kjannette/npt-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls   []string
	payload func(day time.Time, zone models.Zone) ([]byte, error)
}

func (f *fakeFetcher) FetchRaw(_ context.Context, day time.Time, zone models.Zone) ([]byte, error) {
	f.calls = append(f.calls, day.Format(dateLayout)+"_"+string(zone))
	return f.payload(day, zone)
}

type fakeStore struct {
	batches [][]models.PricePoint
	err     error
}

func (s *fakeStore) Upsert(_ context.Context, records []models.PricePoint) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, records)
	return nil
}

type fakeNotifier struct {
	got []models.IngestSummary
	err error
}

func (n *fakeNotifier) Notify(_ context.Context, sum models.IngestSummary) error {
	n.got = append(n.got, sum)
	return n.err
}

// hours builds a payload of n hourly records starting at local midnight.
func hours(day time.Time, n int) []byte {
	out := "["
	for h := 0; h < n; h++ {
		if h > 0 {
			out += ","
		}
		start := day.Add(time.Duration(h) * time.Hour)
		out += fmt.Sprintf(`{"NOK_per_kWh":%.2f,"EUR_per_kWh":0.1,"EXR":11.5,"time_start":%q,"time_end":%q}`,
			1+float64(h)/10, start.Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339))
	}
	return []byte(out + "]")
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestRun_AccumulatesRowsPerDayAndZone(t *testing.T) {
	fetcher := &fakeFetcher{payload: func(day time.Time, _ models.Zone) ([]byte, error) { return hours(day, 24), nil }}
	store := &fakeStore{}
	notifier := &fakeNotifier{err: errors.New("webhook down")}
	bronze := filepath.Join(t.TempDir(), "bronze")

	d := NewDriver(fetcher, store, bronze, notifier)
	sum, err := d.Run(context.Background(), Request{
		Start:      mustDate(t, "2026-02-14"),
		End:        mustDate(t, "2026-02-15"),
		Zones:      []models.Zone{models.NO1, models.NO5},
		SaveBronze: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-02-14_NO1", "2026-02-14_NO5", "2026-02-15_NO1", "2026-02-15_NO5"}, fetcher.calls)
	assert.Equal(t, 96, sum.TotalRows)
	assert.Equal(t, 4, sum.Batches)
	assert.Len(t, store.batches, 4)
	assert.Equal(t, models.NO5, store.batches[1][0].Zone)

	// notifier errors do not fail the run
	require.Len(t, notifier.got, 1)
	assert.Equal(t, sum.RunID, notifier.got[0].RunID)

	_, err = os.Stat(external.BronzePath(bronze, mustDate(t, "2026-02-15"), models.NO5))
	assert.NoError(t, err)
}

func TestRun_SkipsEmptyPayloadAndBronzeOff(t *testing.T) {
	fetcher := &fakeFetcher{payload: func(time.Time, models.Zone) ([]byte, error) { return []byte("[]"), nil }}
	store := &fakeStore{}
	bronze := filepath.Join(t.TempDir(), "bronze")

	sum, err := NewDriver(fetcher, store, bronze).Run(context.Background(), Request{
		Start: mustDate(t, "2026-02-14"),
		End:   mustDate(t, "2026-02-14"),
		Zones: []models.Zone{models.NO2},
	})
	require.NoError(t, err)
	assert.Zero(t, sum.TotalRows)
	assert.Empty(t, store.batches)

	_, err = os.Stat(bronze)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_AbortsOnFirstError(t *testing.T) {
	fetcher := &fakeFetcher{payload: func(day time.Time, zone models.Zone) ([]byte, error) {
		if zone == models.NO2 {
			return nil, &external.TransportError{URL: "x", StatusCode: 500}
		}
		return hours(day, 24), nil
	}}
	store := &fakeStore{}
	notifier := &fakeNotifier{}

	sum, err := NewDriver(fetcher, store, "", notifier).Run(context.Background(), Request{
		Start: mustDate(t, "2026-02-14"),
		End:   mustDate(t, "2026-02-16"),
		Zones: []models.Zone{models.NO1, models.NO2, models.NO3},
	})

	var terr *external.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Contains(t, err.Error(), "2026-02-14 NO2")
	assert.Equal(t, []string{"2026-02-14_NO1", "2026-02-14_NO2"}, fetcher.calls)
	assert.Len(t, store.batches, 1, "earlier batch stays written")
	assert.Equal(t, 24, sum.TotalRows)
	assert.Empty(t, notifier.got)
}

func TestRun_StoreErrorPropagates(t *testing.T) {
	fetcher := &fakeFetcher{payload: func(day time.Time, _ models.Zone) ([]byte, error) { return hours(day, 1), nil }}
	store := &fakeStore{err: errors.New("db down")}

	_, err := NewDriver(fetcher, store, "").Run(context.Background(), Request{
		Start: mustDate(t, "2026-02-14"),
		End:   mustDate(t, "2026-02-14"),
		Zones: []models.Zone{models.NO1},
	})
	assert.ErrorContains(t, err, "db down")
}

func TestRun_SchemaErrorPropagates(t *testing.T) {
	fetcher := &fakeFetcher{payload: func(time.Time, models.Zone) ([]byte, error) { return []byte(`{"oops":1}`), nil }}

	_, err := NewDriver(fetcher, &fakeStore{}, "").Run(context.Background(), Request{
		Start: mustDate(t, "2026-02-14"),
		End:   mustDate(t, "2026-02-14"),
		Zones: []models.Zone{models.NO1},
	})
	var serr *external.SchemaError
	assert.True(t, errors.As(err, &serr))
}

func TestRun_ValidatesRequest(t *testing.T) {
	fetcher := &fakeFetcher{payload: func(time.Time, models.Zone) ([]byte, error) { return nil, nil }}
	d := NewDriver(fetcher, &fakeStore{}, "")
	var verr *models.ValidationError

	_, err := d.Run(context.Background(), Request{
		Start: mustDate(t, "2026-02-15"),
		End:   mustDate(t, "2026-02-14"),
		Zones: []models.Zone{models.NO1},
	})
	assert.True(t, errors.As(err, &verr))

	_, err = d.Run(context.Background(), Request{
		Start: mustDate(t, "2026-02-14"),
		End:   mustDate(t, "2026-02-14"),
		Zones: []models.Zone{"NO9"},
	})
	assert.True(t, errors.As(err, &verr))
	assert.Empty(t, fetcher.calls)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-14")
	require.NoError(t, err)
	assert.Equal(t, time.February, d.Month())

	_, err = ParseDate("14/02/2026")
	var verr *models.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "transport", errorKind(fmt.Errorf("wrap: %w", &external.TransportError{})))
	assert.Equal(t, "schema", errorKind(&external.SchemaError{}))
	assert.Equal(t, "validation", errorKind(&models.ValidationError{}))
	assert.Equal(t, "other", errorKind(errors.New("x")))
}
