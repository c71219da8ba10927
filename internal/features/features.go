// Package features derives model-ready columns from the canonical series.
// Feature tables are cycle-local: recomputed in full on every retrain,
// never persisted.
package features

import (
	"fmt"
	"time"

	"github.com/SsenogaHerman/IoT-SmartHome/internal/readings"
)

// BatteryDropRate is the derived column name: battery delta per elapsed
// minute between consecutive readings.
const BatteryDropRate = "battery_drop_per_min"

// ForecastFeatures is the fixed input layout of the temperature forecaster.
var ForecastFeatures = []string{"temp_lag_1", "temp_lag_2", "temp_lag_3", "motion_lag_1", "battery_lag_1"}

// Row carries the derived values for one reading.
type Row struct {
	Time        time.Time
	Battery     *float64
	Humidity    *float64
	Motion      *float64
	Temperature *float64

	DropRate float64 // battery depletion per minute; 0 on the first row

	TempLag1    *float64
	TempLag2    *float64
	TempLag3    *float64
	MotionLag1  *float64
	BatteryLag1 *float64

	// TempNext is the supervised label: the following reading's
	// temperature. Nil on the final row, which has no label.
	TempNext *float64
}

// Table is the full derived feature set for a series, in time order.
type Table struct {
	Rows []Row
}

// Synthesize computes per-row derived columns over a time-sorted series.
func Synthesize(s readings.Series) *Table {
	rows := make([]Row, len(s))
	for i, r := range s {
		row := Row{
			Time:        r.Time,
			Battery:     r.Battery,
			Humidity:    r.Humidity,
			Motion:      r.Motion,
			Temperature: r.Temperature,
		}
		if i > 0 {
			prev := s[i-1]
			drop := 0.0
			if r.Battery != nil && prev.Battery != nil {
				drop = *r.Battery - *prev.Battery
			}
			elapsedMin := r.Time.Sub(prev.Time).Minutes()
			if elapsedMin != 0 {
				row.DropRate = drop / elapsedMin
			}
		}
		if i >= 1 {
			row.TempLag1 = s[i-1].Temperature
			row.MotionLag1 = s[i-1].Motion
			row.BatteryLag1 = s[i-1].Battery
		}
		if i >= 2 {
			row.TempLag2 = s[i-2].Temperature
		}
		if i >= 3 {
			row.TempLag3 = s[i-3].Temperature
		}
		if i+1 < len(s) {
			row.TempNext = s[i+1].Temperature
		}
		rows[i] = row
	}
	return &Table{Rows: rows}
}

// AnomalyColumns returns the feature set for the outlier model: whichever
// sensor columns actually carry data, plus the depletion rate.
func (t *Table) AnomalyColumns() []string {
	present := map[string]bool{}
	for _, row := range t.Rows {
		if row.Battery != nil {
			present[readings.ColBattery] = true
		}
		if row.Humidity != nil {
			present[readings.ColHumidity] = true
		}
		if row.Motion != nil {
			present[readings.ColMotion] = true
		}
		if row.Temperature != nil {
			present[readings.ColTemperature] = true
		}
	}
	cols := make([]string, 0, 5)
	for _, name := range readings.SensorColumns {
		if present[name] {
			cols = append(cols, name)
		}
	}
	return append(cols, BatteryDropRate)
}

// AnomalyMatrix builds one feature vector per row over the given columns,
// zero-filling missing values. The column list must match the schema the
// model was trained with; scoring reuses the trained list verbatim.
func (t *Table) AnomalyMatrix(cols []string) ([][]float64, error) {
	X := make([][]float64, len(t.Rows))
	for i, row := range t.Rows {
		vec := make([]float64, len(cols))
		for j, col := range cols {
			v, err := row.anomalyValue(col)
			if err != nil {
				return nil, err
			}
			vec[j] = v
		}
		X[i] = vec
	}
	return X, nil
}

func (r Row) anomalyValue(col string) (float64, error) {
	var p *float64
	switch col {
	case readings.ColBattery:
		p = r.Battery
	case readings.ColHumidity:
		p = r.Humidity
	case readings.ColMotion:
		p = r.Motion
	case readings.ColTemperature:
		p = r.Temperature
	case BatteryDropRate:
		return r.DropRate, nil
	default:
		return 0, fmt.Errorf("unknown anomaly feature column %q", col)
	}
	if p == nil {
		return 0, nil
	}
	return *p, nil
}

// ForecastSet builds the supervised training set. Rows missing any lag
// feature or the next-step label are dropped; the forecaster needs
// complete examples.
func (t *Table) ForecastSet() (X [][]float64, y []float64) {
	for _, row := range t.Rows {
		if row.TempNext == nil || row.TempLag1 == nil || row.TempLag2 == nil ||
			row.TempLag3 == nil || row.MotionLag1 == nil || row.BatteryLag1 == nil {
			continue
		}
		X = append(X, []float64{*row.TempLag1, *row.TempLag2, *row.TempLag3, *row.MotionLag1, *row.BatteryLag1})
		y = append(y, *row.TempNext)
	}
	return X, y
}
