package backtest

import (
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultSeasonLag is one week of hours: same hour, same weekday.
	DefaultSeasonLag = 168
	// Horizon is the number of hours forecast from each origin.
	Horizon = 24
)

// ErrEmptyResult is returned when metrics are asked of a result with no
// points, typically because the series was shorter than seasonLag+Horizon.
var ErrEmptyResult = errors.New("walk-forward result is empty")

type Point struct {
	Time time.Time `json:"time"`
	Y    float64   `json:"y"`
	YHat float64   `json:"yhat"`
}

type Result struct {
	Points  []Point
	Origins int
}

func (r Result) Empty() bool { return len(r.Points) == 0 }

// WalkForwardSeasonalNaive forecasts each 24-hour window from the values
// seasonLag hours earlier, stepping one day at a time. Origins start at
// seasonLag and advance by 24 while a full test window remains. A series
// shorter than seasonLag+24 yields an empty result.
func WalkForwardSeasonalNaive(s Series, seasonLag int) Result {
	if seasonLag <= 0 {
		seasonLag = DefaultSeasonLag
	}
	n := s.Len()
	if n == 0 || seasonLag > n-Horizon {
		return Result{}
	}

	var res Result
	for i := seasonLag; i <= n-Horizon; i += Horizon {
		// training prefix is [0, i); the forecast reads [i-seasonLag, i-seasonLag+Horizon)
		for h := 0; h < Horizon; h++ {
			actual := s.obs[i+h]
			res.Points = append(res.Points, Point{
				Time: actual.Time,
				Y:    actual.Value,
				YHat: s.obs[i-seasonLag+h].Value,
			})
		}
		res.Origins++
	}

	sort.SliceStable(res.Points, func(a, b int) bool {
		return res.Points[a].Time.Before(res.Points[b].Time)
	})
	return res
}

// MAERMSE returns the mean absolute error and root mean squared error of
// actual minus predicted.
func MAERMSE(r Result) (mae, rmse float64, err error) {
	if r.Empty() {
		return 0, 0, ErrEmptyResult
	}
	n := float64(len(r.Points))
	errs := make([]float64, len(r.Points))
	yhat := make([]float64, len(r.Points))
	for i, p := range r.Points {
		errs[i] = p.Y
		yhat[i] = p.YHat
	}
	floats.Sub(errs, yhat)

	mae = floats.Norm(errs, 1) / n
	rmse = math.Sqrt(floats.Dot(errs, errs) / n)
	return mae, rmse, nil
}

type Report struct {
	SeasonLag int       `json:"seasonLag"`
	Origins   int       `json:"origins"`
	Points    int       `json:"points"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	MAE       float64   `json:"mae"`
	RMSE      float64   `json:"rmse"`
}

// Evaluate runs the walk-forward and summarises it. It returns
// ErrEmptyResult when the series is too short to evaluate.
func Evaluate(s Series, seasonLag int) (*Report, error) {
	if seasonLag <= 0 {
		seasonLag = DefaultSeasonLag
	}
	res := WalkForwardSeasonalNaive(s, seasonLag)
	mae, rmse, err := MAERMSE(res)
	if err != nil {
		return nil, err
	}
	return &Report{
		SeasonLag: seasonLag,
		Origins:   res.Origins,
		Points:    len(res.Points),
		From:      res.Points[0].Time,
		To:        res.Points[len(res.Points)-1].Time,
		MAE:       mae,
		RMSE:      rmse,
	}, nil
}
