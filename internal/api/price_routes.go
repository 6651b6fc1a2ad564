package api

import (
	"fmt"
	"net/http"

	"github.com/kjannette/npt-backend/internal/models"
	"github.com/kjannette/npt-backend/internal/repository"
)

type priceJSON struct {
	T   int64   `json:"t"`
	End int64   `json:"end"`
	NOK float64 `json:"nok"`
	EUR float64 `json:"eur"`
	EXR float64 `json:"exr"`
}

func toPriceJSON(p models.PricePoint) priceJSON {
	return priceJSON{
		T:   p.TimeStart.UnixMilli(),
		End: p.TimeEnd.UnixMilli(),
		NOK: p.NOKPerKWh,
		EUR: p.EURPerKWh,
		EXR: p.EXR,
	}
}

func (s *Server) handlePricesToday(w http.ResponseWriter, r *http.Request) {
	zone, ok := zoneParam(w, r)
	if !ok {
		return
	}
	s.writeDay(w, r, zone, repository.TodayOslo())
}

func (s *Server) handlePricesByDay(w http.ResponseWriter, r *http.Request) {
	zone, ok := zoneParam(w, r)
	if !ok {
		return
	}
	date := r.PathValue("date")
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}
	s.writeDay(w, r, zone, date)
}

func (s *Server) writeDay(w http.ResponseWriter, r *http.Request, zone models.Zone, date string) {
	prices, err := s.prices.GetByDay(r.Context(), zone, date)
	if err != nil {
		fmt.Printf("[API] Error fetching %s prices for %s: %v\n", zone, date, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch prices")
		return
	}

	out := make([]priceJSON, len(prices))
	for i, p := range prices {
		out[i] = toPriceJSON(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAvailableDays(w http.ResponseWriter, r *http.Request) {
	zone, ok := zoneParam(w, r)
	if !ok {
		return
	}
	days, err := s.prices.GetAvailableDays(r.Context(), zone)
	if err != nil {
		fmt.Printf("[API] Error fetching available days for %s: %v\n", zone, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch available days")
		return
	}
	if days == nil {
		days = []string{}
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleLatestPrice(w http.ResponseWriter, r *http.Request) {
	zone, ok := zoneParam(w, r)
	if !ok {
		return
	}
	price, err := s.prices.GetLatest(r.Context(), zone)
	if err != nil {
		fmt.Printf("[API] Error fetching latest %s price: %v\n", zone, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch latest price")
		return
	}
	if price == nil {
		writeError(w, http.StatusNotFound, "no price data available")
		return
	}
	writeJSON(w, http.StatusOK, toPriceJSON(*price))
}
