// Package readings holds the canonical sensor series: the typed reading
// model, batch normalization and the watermark merge.
package readings

import (
	"sort"
	"time"
)

// Reading is one timestamped sensor sample. Sensor values are pointers so
// that an absent measurement stays null end to end instead of collapsing
// to zero in API output.
type Reading struct {
	Time        time.Time `json:"time"`
	Battery     *float64  `json:"battery"`
	Humidity    *float64  `json:"humidity"`
	Motion      *float64  `json:"motion"`
	Temperature *float64  `json:"temperature"`
}

// Series is a time-ordered sequence of readings with at most one reading
// per distinct timestamp. It is treated as immutable once built; producers
// construct a new series rather than mutating a shared one.
type Series []Reading

// Last returns the most recent reading.
func (s Series) Last() (Reading, bool) {
	if len(s) == 0 {
		return Reading{}, false
	}
	return s[len(s)-1], true
}

// LastTime returns the watermark: the maximum timestamp in the series.
func (s Series) LastTime() (time.Time, bool) {
	r, ok := s.Last()
	return r.Time, ok
}

// Tail returns up to n most recent readings, oldest first.
func (s Series) Tail(n int) Series {
	if n <= 0 || len(s) == 0 {
		return Series{}
	}
	if n > len(s) {
		n = len(s)
	}
	out := make(Series, n)
	copy(out, s[len(s)-n:])
	return out
}

func (s Series) sortByTime() {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
}

// Float returns a pointer to a copy of v. Convenient for building readings.
func Float(v float64) *float64 { return &v }

// fieldPtr gives write access to the named sensor column of a reading.
func fieldPtr(r *Reading, col string) **float64 {
	switch col {
	case ColBattery:
		return &r.Battery
	case ColHumidity:
		return &r.Humidity
	case ColMotion:
		return &r.Motion
	case ColTemperature:
		return &r.Temperature
	}
	return nil
}

// Canonical sensor column names, matching the upstream CSV header.
const (
	ColBattery     = "Battery"
	ColHumidity    = "Humidity"
	ColMotion      = "Motion"
	ColTemperature = "Temperature"
)

// SensorColumns lists the known numeric columns in canonical order.
var SensorColumns = []string{ColBattery, ColHumidity, ColMotion, ColTemperature}
