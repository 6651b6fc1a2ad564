package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kjannette/npt-backend/internal/models"
)

type healthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Database  string       `json:"database"`
	Rows      int64        `json:"rows"`
	Zones     []zoneHealth `json:"zones"`
}

// zoneHealth tells how far each zone's data reaches. Day-ahead prices
// normally run to the end of tomorrow.
type zoneHealth struct {
	Zone       models.Zone `json:"zone"`
	LatestHour *time.Time  `json:"latestHour"`
	HoursAhead *int        `json:"hoursAhead,omitempty"`
}

// handleHealth always answers 200; status turns "degraded" when the
// database is unreachable and "stale" when a zone has no future hours.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	now := time.Now().UTC()
	resp := healthResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		Database:  "connected",
		Zones:     []zoneHealth{},
	}

	if s.db == nil || s.db.Ping(ctx) != nil {
		resp.Status = "degraded"
		resp.Database = "disconnected"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if n, err := s.prices.Count(ctx); err == nil {
		resp.Rows = n
	}
	for _, z := range models.AllZones {
		zh := zoneHealth{Zone: z}
		if p, err := s.prices.GetLatest(ctx, z); err == nil && p != nil {
			latest := p.TimeStart.UTC()
			ahead := int(latest.Sub(now.Truncate(time.Hour)) / time.Hour)
			zh.LatestHour = &latest
			zh.HoursAhead = &ahead
			if ahead < 0 {
				resp.Status = "stale"
			}
		}
		resp.Zones = append(resp.Zones, zh)
	}

	writeJSON(w, http.StatusOK, resp)
}
