package repository

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Oslo is the calendar the price feed publishes days in.
var Oslo = mustLoad("Europe/Oslo")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// DayBounds returns the UTC instants [start, end) covering the Oslo
// calendar day given as YYYY-MM-DD. DST days are 23 or 25 hours long.
func DayBounds(day string) (time.Time, time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", day, Oslo)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse day %q: %w", day, err)
	}
	return d.UTC(), d.AddDate(0, 0, 1).UTC(), nil
}

// OsloDay returns the Oslo calendar day (YYYY-MM-DD) containing ts.
func OsloDay(ts time.Time) string {
	return ts.In(Oslo).Format("2006-01-02")
}

// TodayOslo returns the current Oslo calendar day.
func TodayOslo() string {
	return OsloDay(time.Now())
}
