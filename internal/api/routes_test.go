package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kjannette/npt-backend/internal/models"
	"github.com/kjannette/npt-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore map[models.Zone][]models.PricePoint

func (m memStore) GetRange(_ context.Context, zone models.Zone, from, to time.Time) ([]models.PricePoint, error) {
	var out []models.PricePoint
	for _, p := range m[zone] {
		if !p.TimeStart.Before(from) && p.TimeStart.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memStore) GetByDay(ctx context.Context, zone models.Zone, day string) ([]models.PricePoint, error) {
	from, to, err := repository.DayBounds(day)
	if err != nil {
		return nil, err
	}
	return m.GetRange(ctx, zone, from, to)
}

func (m memStore) GetAvailableDays(_ context.Context, zone models.Zone) ([]string, error) {
	var days []string
	seen := map[string]bool{}
	for i := len(m[zone]) - 1; i >= 0; i-- {
		d := repository.OsloDay(m[zone][i].TimeStart)
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days, nil
}

func (m memStore) GetLatest(_ context.Context, zone models.Zone) (*models.PricePoint, error) {
	ps := m[zone]
	if len(ps) == 0 {
		return nil, nil
	}
	p := ps[len(ps)-1]
	return &p, nil
}

func (m memStore) Count(context.Context) (int64, error) {
	var n int64
	for _, ps := range m {
		n += int64(len(ps))
	}
	return n, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

// hourly builds n hourly NO1 prices from Oslo midnight on 2024-01-01. The
// value repeats daily and steps up by one every week.
func hourly(n int) []models.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, repository.Oslo).UTC()
	out := make([]models.PricePoint, n)
	for i := range out {
		ts := start.Add(time.Duration(i) * time.Hour)
		v := float64(i%24) + float64(i/168)
		out[i] = models.PricePoint{
			Zone: models.NO1, TimeStart: ts, TimeEnd: ts.Add(time.Hour),
			NOKPerKWh: v, EURPerKWh: v / 11.5, EXR: 11.5,
			Source: models.SourceHvakosterstrommen,
		}
	}
	return out
}

func newTestServer(store memStore) http.Handler {
	s := newServer(fakePinger{}, store, Options{SeasonLag: 168})
	return s.Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLatestPrice(t *testing.T) {
	h := newTestServer(memStore{models.NO1: hourly(48)})

	rr := get(t, h, "/v1/prices/NO1/latest")
	require.Equal(t, http.StatusOK, rr.Code)

	var p priceJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, 23.0, p.NOK)
	assert.Equal(t, p.T+time.Hour.Milliseconds(), p.End)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/prices/NO2/latest").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/v1/prices/SE3/latest").Code)
}

func TestPricesByDay(t *testing.T) {
	h := newTestServer(memStore{models.NO1: hourly(48)})

	rr := get(t, h, "/v1/prices/no1/day/2024-01-02")
	require.Equal(t, http.StatusOK, rr.Code)

	var ps []priceJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ps))
	require.Len(t, ps, 24)
	assert.Equal(t, 0.0, ps[0].NOK)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/v1/prices/NO1/day/2024-1-2").Code)
}

func TestAvailableDays(t *testing.T) {
	h := newTestServer(memStore{models.NO1: hourly(48)})

	rr := get(t, h, "/v1/prices/NO1/days")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `["2024-01-02","2024-01-01"]`, rr.Body.String())

	rr = get(t, h, "/v1/prices/NO5/days")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestBacktest(t *testing.T) {
	h := newTestServer(memStore{models.NO1: hourly(14 * 24)})

	rr := get(t, h, "/v1/backtest/NO1?start=2024-01-01&end=2024-01-14")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "NO1", body["zone"])
	assert.EqualValues(t, 168, body["seasonLag"])
	assert.EqualValues(t, 7, body["origins"])
	assert.InDelta(t, 1.0, body["mae"], 1e-9)
	assert.InDelta(t, 1.0, body["rmse"], 1e-9)
}

func TestBacktest_BadRequests(t *testing.T) {
	h := newTestServer(memStore{models.NO1: hourly(14 * 24)})

	for _, path := range []string{
		"/v1/backtest/NO1",
		"/v1/backtest/NO1?start=2024-01-01",
		"/v1/backtest/NO1?start=2024-01-10&end=2024-01-01",
		"/v1/backtest/NO1?start=2024-01-01&end=2024-01-14&season_lag=0",
		"/v1/backtest/NO9?start=2024-01-01&end=2024-01-14",
	} {
		assert.Equal(t, http.StatusBadRequest, get(t, h, path).Code, path)
	}
}

func TestBacktest_Unprocessable(t *testing.T) {
	full := hourly(14 * 24)
	gappy := append(append([]models.PricePoint(nil), full[:100]...), full[101:]...)

	short := newTestServer(memStore{models.NO1: full})
	rr := get(t, short, "/v1/backtest/NO1?start=2024-01-01&end=2024-01-07")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = get(t, short, "/v1/backtest/NO1?start=2024-01-01&end=2024-01-14&season_lag=9223372036854775807")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	withGap := newTestServer(memStore{models.NO1: gappy})
	rr = get(t, withGap, "/v1/backtest/NO1?start=2024-01-01&end=2024-01-14")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing")
}

func TestHealth(t *testing.T) {
	down := newServer(fakePinger{err: errors.New("refused")}, memStore{}, Options{APIKey: "k"})
	rr := get(t, down.Handler(), "/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rr.Body.String(), `"database":"disconnected"`)

	next := time.Now().UTC().Truncate(time.Hour).Add(5 * time.Hour)
	fresh := memStore{
		models.NO1: hourly(48),
		models.NO2: {{Zone: models.NO2, TimeStart: next, TimeEnd: next.Add(time.Hour), NOKPerKWh: 1, EURPerKWh: 0.1, EXR: 10}},
	}
	rr = get(t, newServer(fakePinger{}, fresh, Options{}).Handler(), "/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "connected", body.Database)
	assert.EqualValues(t, 49, body.Rows)
	require.Len(t, body.Zones, len(models.AllZones))

	// NO1 ends in 2024
	assert.Equal(t, "stale", body.Status)
	require.NotNil(t, body.Zones[1].HoursAhead)
	assert.InDelta(t, 5, *body.Zones[1].HoursAhead, 1)
	assert.Nil(t, body.Zones[4].LatestHour)

	rr = get(t, newServer(fakePinger{}, memStore{models.NO2: fresh[models.NO2]}, Options{}).Handler(), "/health")
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}
