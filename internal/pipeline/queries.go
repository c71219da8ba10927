package pipeline

import (
	"errors"
	"math"

	"github.com/SsenogaHerman/IoT-SmartHome/internal/anomaly"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/features"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/forecast"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/readings"
	"github.com/SsenogaHerman/IoT-SmartHome/internal/store"
)

// Summary aggregates the persisted series for the dashboard. Averages skip
// missing values; recent readings pass nulls through untouched.
type Summary struct {
	AvgTemperature float64            `json:"avg_temperature"`
	AvgHumidity    float64            `json:"avg_humidity"`
	AvgBattery     float64            `json:"avg_battery"`
	RecentReadings []readings.Reading `json:"recent_readings"`
}

// AnalyticsSummary returns means over the full series plus the last limit
// readings. An empty store degrades to zeros and an empty list.
func (p *Pipeline) AnalyticsSummary(limit int) (Summary, error) {
	series, err := p.history.Load()
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{RecentReadings: []readings.Reading{}}
	if len(series) == 0 {
		return sum, nil
	}
	sum.AvgTemperature = round2(meanOf(series, func(r readings.Reading) *float64 { return r.Temperature }))
	sum.AvgHumidity = round2(meanOf(series, func(r readings.Reading) *float64 { return r.Humidity }))
	sum.AvgBattery = round2(meanOf(series, func(r readings.Reading) *float64 { return r.Battery }))
	sum.RecentReadings = series.Tail(limit)
	return sum, nil
}

// PredictNextTemperature applies the persisted forecaster to the latest
// reading. Nil means "unavailable": no data, or no trained artifacts yet.
//
// The feature vector reuses the current temperature for all three lag
// slots; true historical lags for the next unseen step do not exist. This
// mirrors the original system and is a known approximation.
func (p *Pipeline) PredictNextTemperature() (*float64, error) {
	series, err := p.history.Load()
	if err != nil {
		return nil, err
	}
	last, ok := series.Last()
	if !ok {
		return nil, nil
	}
	if last.Temperature == nil || last.Motion == nil || last.Battery == nil {
		return nil, nil
	}

	modelBlob, err := p.artifacts.Load(store.ForecastModel)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	scalerBlob, err := p.artifacts.Load(store.ForecastScaler)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	model, err := forecast.Load(modelBlob)
	if err != nil {
		return nil, err
	}
	scaler, err := forecast.LoadScaler(scalerBlob)
	if err != nil {
		return nil, err
	}

	vec := []float64{*last.Temperature, *last.Temperature, *last.Temperature, *last.Motion, *last.Battery}
	scaled, err := scaler.Transform(vec)
	if err != nil {
		return nil, err
	}
	pred, err := model.Predict(scaled)
	if err != nil {
		return nil, err
	}
	out := forecast.Round2(pred)
	return &out, nil
}

// Anomalies returns up to limit most-recent readings whose anomaly score
// is negative, in time order. No data or no trained model degrades to an
// empty list.
func (p *Pipeline) Anomalies(limit int) ([]readings.Reading, error) {
	out := []readings.Reading{}
	series, err := p.history.Load()
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return out, nil
	}

	blob, err := p.artifacts.Load(store.AnomalyModel)
	if errors.Is(err, store.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	forest, err := anomaly.Load(blob)
	if err != nil {
		return nil, err
	}

	table := features.Synthesize(series)
	// scoring reuses the trained column set and its zero-fill policy
	X, err := table.AnomalyMatrix(forest.Columns)
	if err != nil {
		return nil, err
	}
	scores, err := forest.ScoreAll(X, forest.Columns)
	if err != nil {
		return nil, err
	}

	for i, score := range scores {
		if score < 0 {
			out = append(out, series[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Status reports data and artifact presence plus cycle counters.
type Status struct {
	DataLoaded         bool     `json:"data_loaded"`
	RowCount           int      `json:"row_count"`
	Columns            []string `json:"columns"`
	ModelExists        bool     `json:"model_exists"`
	AnomalyModelExists bool     `json:"anomaly_model_exists"`
	Stats              Stats    `json:"stats"`
}

func (p *Pipeline) Status() (Status, error) {
	series, err := p.history.Load()
	if err != nil {
		return Status{}, err
	}
	return Status{
		DataLoaded:         len(series) > 0,
		RowCount:           len(series),
		Columns:            presentColumns(series),
		ModelExists:        p.artifacts.Exists(store.ForecastModel),
		AnomalyModelExists: p.artifacts.Exists(store.AnomalyModel),
		Stats:              p.Stats(),
	}, nil
}

// presentColumns lists the sensor columns that carry at least one value.
func presentColumns(s readings.Series) []string {
	cols := []string{}
	for _, name := range readings.SensorColumns {
		for i := range s {
			var p *float64
			switch name {
			case readings.ColBattery:
				p = s[i].Battery
			case readings.ColHumidity:
				p = s[i].Humidity
			case readings.ColMotion:
				p = s[i].Motion
			case readings.ColTemperature:
				p = s[i].Temperature
			}
			if p != nil {
				cols = append(cols, name)
				break
			}
		}
	}
	return cols
}

func meanOf(s readings.Series, get func(readings.Reading) *float64) float64 {
	var sum float64
	var n int
	for _, r := range s {
		if v := get(r); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
