package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// SourceHvakosterstrommen tags rows ingested from hvakosterstrommen.no.
const SourceHvakosterstrommen = "hvakosterstrommen"

type PricePoint struct {
	Zone       Zone      `json:"zone"`
	TimeStart  time.Time `json:"timeStart"`
	TimeEnd    time.Time `json:"timeEnd"`
	NOKPerKWh  float64   `json:"nokPerKwh"`
	EURPerKWh  float64   `json:"eurPerKwh"`
	EXR        float64   `json:"exr"`
	Source     string    `json:"source"`
	IngestedAt time.Time `json:"ingestedAt"`
}

// MissingFields lists the required fields that are absent. A NaN price
// counts as absent.
func (p *PricePoint) MissingFields() []string {
	var missing []string
	if p.Zone == "" {
		missing = append(missing, "zone")
	}
	if p.TimeStart.IsZero() {
		missing = append(missing, "time_start")
	}
	if p.TimeEnd.IsZero() {
		missing = append(missing, "time_end")
	}
	if math.IsNaN(p.NOKPerKWh) {
		missing = append(missing, "nok_per_kwh")
	}
	if math.IsNaN(p.EURPerKWh) {
		missing = append(missing, "eur_per_kwh")
	}
	if math.IsNaN(p.EXR) {
		missing = append(missing, "exr")
	}
	return missing
}

// Validate checks required fields and the zone code.
func (p *PricePoint) Validate() error {
	if missing := p.MissingFields(); len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "missing required fields"}
	}
	if _, err := ParseZone(string(p.Zone)); err != nil {
		return err
	}
	if !p.TimeEnd.After(p.TimeStart) {
		return &ValidationError{
			Fields: []string{"time_end"},
			Reason: fmt.Sprintf("time_end %s not after time_start %s", p.TimeEnd.Format(time.RFC3339), p.TimeStart.Format(time.RFC3339)),
		}
	}
	return nil
}

// ValidationError is returned before any I/O when input is incomplete or
// carries an unknown zone.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation: " + e.Reason
	}
	fields := append([]string(nil), e.Fields...)
	sort.Strings(fields)
	return fmt.Sprintf("validation: %s: [%s]", e.Reason, strings.Join(fields, ", "))
}
