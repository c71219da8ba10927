package readings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/SsenogaHerman/IoT-SmartHome/internal/ingest"
)

// SchemaError means the batch as a whole is unusable: no recognizable time
// column. The cycle is abandoned; nothing is persisted.
type SchemaError struct {
	Columns []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("no time column found among %v", e.Columns)
}

// timeAliases are the accepted time column names, in priority order.
// "Time (Uganda)" is what the TTN bridge script writes.
var timeAliases = []string{"Time (Uganda)", "Time", "timestamp", "Datetime", "time"}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize turns a raw batch into a clean, time-sorted, gap-filled series:
//
//  1. column names are trimmed and the time column located via aliases;
//  2. rows with an unparseable timestamp are dropped as noise;
//  3. sensor cells are coerced to float, non-numeric cells become missing;
//  4. missing values are interpolated linearly against elapsed time, with
//     boundary values extended outward; anything still missing is filled
//     with the column median. Columns absent from the batch stay absent.
func Normalize(batch ingest.RawBatch) (Series, error) {
	cols := make([]string, len(batch.Columns))
	for i, c := range batch.Columns {
		cols[i] = strings.TrimSpace(c)
	}

	timeIdx := -1
	for _, alias := range timeAliases {
		for i, c := range cols {
			if c == alias {
				timeIdx = i
				break
			}
		}
		if timeIdx >= 0 {
			break
		}
	}
	if timeIdx < 0 {
		return nil, &SchemaError{Columns: cols}
	}

	sensorIdx := map[string]int{}
	for _, name := range SensorColumns {
		for i, c := range cols {
			if strings.EqualFold(c, name) {
				sensorIdx[name] = i
				break
			}
		}
	}

	series := make(Series, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		ts, ok := parseTime(row[timeIdx])
		if !ok {
			continue
		}
		r := Reading{Time: ts}
		for name, idx := range sensorIdx {
			if v, ok := parseFloat(row[idx]); ok {
				*fieldPtr(&r, name) = Float(v)
			}
		}
		series = append(series, r)
	}
	series.sortByTime()

	for _, name := range SensorColumns {
		if _, present := sensorIdx[name]; present {
			interpolateColumn(series, name)
		}
	}
	return series, nil
}

// interpolateColumn fills gaps in one sensor column. Interior gaps are
// interpolated linearly against elapsed time; values before the first and
// after the last known point take the nearest known value. A column with no
// known value at all is left untouched.
func interpolateColumn(s Series, col string) {
	known := make([]int, 0, len(s))
	for i := range s {
		if *fieldPtr(&s[i], col) != nil {
			known = append(known, i)
		}
	}
	if len(known) == 0 {
		return
	}

	first, last := known[0], known[len(known)-1]
	for i := 0; i < first; i++ {
		*fieldPtr(&s[i], col) = Float(**fieldPtr(&s[first], col))
	}
	for i := last + 1; i < len(s); i++ {
		*fieldPtr(&s[i], col) = Float(**fieldPtr(&s[last], col))
	}

	for k := 0; k < len(known)-1; k++ {
		a, b := known[k], known[k+1]
		if b-a <= 1 {
			continue
		}
		va := **fieldPtr(&s[a], col)
		vb := **fieldPtr(&s[b], col)
		span := s[b].Time.Sub(s[a].Time)
		for i := a + 1; i < b; i++ {
			v := va
			if span > 0 {
				frac := float64(s[i].Time.Sub(s[a].Time)) / float64(span)
				v = va + (vb-va)*frac
			}
			*fieldPtr(&s[i], col) = Float(v)
		}
	}

	// median backstop for anything interpolation could not reach
	var vals []float64
	for i := range s {
		if p := *fieldPtr(&s[i], col); p != nil {
			vals = append(vals, *p)
		}
	}
	med := median(vals)
	for i := range s {
		if *fieldPtr(&s[i], col) == nil {
			*fieldPtr(&s[i], col) = Float(med)
		}
	}
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func parseTime(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, cell); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseFloat(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
