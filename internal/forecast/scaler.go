package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Scaler holds z-score parameters per feature. It is fit once on the
// training set and persisted alongside the model; inference always applies
// the persisted parameters, never refits.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-column mean and standard deviation over X.
func FitScaler(X [][]float64) Scaler {
	n := float64(len(X))
	width := len(X[0])
	mean := make([]float64, width)
	std := make([]float64, width)

	for _, vec := range X {
		for j, v := range vec {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, vec := range X {
		for j, v := range vec {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		// guard against zero std
		if std[j] < 1e-10 {
			std[j] = 1
		}
	}
	return Scaler{Mean: mean, Std: std}
}

// Transform returns the standardized copy of one feature vector.
func (s Scaler) Transform(vec []float64) ([]float64, error) {
	if len(vec) != len(s.Mean) {
		return nil, fmt.Errorf("vector width %d does not match scaler width %d", len(vec), len(s.Mean))
	}
	out := make([]float64, len(vec))
	for j, v := range vec {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// TransformAll standardizes every row of X.
func (s Scaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, vec := range X {
		t, err := s.Transform(vec)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// Marshal serializes the scaler artifact as JSON.
func (s Scaler) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// LoadScaler deserializes a scaler artifact.
func LoadScaler(data []byte) (Scaler, error) {
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return Scaler{}, err
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Std) {
		return Scaler{}, errors.New("scaler artifact is malformed")
	}
	return s, nil
}
