package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kjannette/npt-backend/internal/backtest"
	"github.com/kjannette/npt-backend/internal/metrics"
	"github.com/kjannette/npt-backend/internal/repository"
)

type backtestResponse struct {
	Zone string `json:"zone"`
	*backtest.Report
}

// handleBacktest evaluates the seasonal-naive baseline over the Oslo days
// start..end inclusive.
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	zone, ok := zoneParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if !validateDate(start) || !validateDate(end) {
		writeError(w, http.StatusBadRequest, "start and end are required, expected YYYY-MM-DD")
		return
	}

	from, _, err := repository.DayBounds(start)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, to, err := repository.DayBounds(end)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !from.Before(to) {
		writeError(w, http.StatusBadRequest, "end must not be before start")
		return
	}
	if to.Sub(from).Hours() > maxBacktestDays*25 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("range exceeds %d days", maxBacktestDays))
		return
	}

	lag := s.seasonLag
	if v := q.Get("season_lag"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "season_lag must be a positive integer")
			return
		}
		lag = n
	}

	report, err := backtest.EvaluateZone(r.Context(), s.prices, zone, from, to, lag)
	var gap *backtest.GapError
	switch {
	case err == nil:
		metrics.RecordBacktest(string(zone), "ok", report.MAE)
		writeJSON(w, http.StatusOK, backtestResponse{Zone: string(zone), Report: report})
	case errors.As(err, &gap):
		metrics.RecordBacktest(string(zone), "gap", 0)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, backtest.ErrEmptyResult):
		metrics.RecordBacktest(string(zone), "insufficient_data", 0)
		writeError(w, http.StatusUnprocessableEntity, "not enough history for the requested season lag")
	default:
		metrics.RecordBacktest(string(zone), "error", 0)
		fmt.Printf("[API] Backtest %s %s..%s failed: %v\n", zone, start, end, err)
		writeError(w, http.StatusInternalServerError, "backtest failed")
	}
}
