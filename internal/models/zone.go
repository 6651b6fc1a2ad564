package models

import (
	"fmt"
	"strings"
)

type Zone string

const (
	NO1 Zone = "NO1"
	NO2 Zone = "NO2"
	NO3 Zone = "NO3"
	NO4 Zone = "NO4"
	NO5 Zone = "NO5"
)

// AllZones is NO1..NO5 in order.
var AllZones = []Zone{NO1, NO2, NO3, NO4, NO5}

func ParseZone(s string) (Zone, error) {
	z := Zone(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllZones {
		if z == known {
			return z, nil
		}
	}
	return "", &ValidationError{
		Fields: []string{"zone"},
		Reason: fmt.Sprintf("invalid zone %q, expected one of NO1..NO5", s),
	}
}

// ParseZones parses a comma-separated list such as "NO1, no2". Blank
// entries are skipped; an empty list is an error.
func ParseZones(s string) ([]Zone, error) {
	var out []Zone
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		z, err := ParseZone(part)
		if err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	if len(out) == 0 {
		return nil, &ValidationError{Fields: []string{"zones"}, Reason: "no zones given"}
	}
	return out, nil
}

func (z Zone) String() string { return string(z) }
