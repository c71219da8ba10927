// Package forecast implements the one-step-ahead temperature regressor: a
// bagged ensemble of regression trees over standardized lag features.
package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// MinTrainingRows is the training gate: below this the previous artifact
// is retained and training is skipped.
const MinTrainingRows = 20

// Config controls ensemble fitting.
type Config struct {
	Trees    int
	Seed     uint64
	MaxDepth int
	MinLeaf  int
}

func (c Config) withDefaults() Config {
	if c.Trees <= 0 {
		c.Trees = 200
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 10
	}
	if c.MinLeaf <= 0 {
		c.MinLeaf = 2
	}
	return c
}

// Node is one split (or leaf) of a regression tree.
type Node struct {
	Feature int     `json:"f"`
	Split   float64 `json:"s"`
	Value   float64 `json:"v"`
	Left    *Node   `json:"l,omitempty"`
	Right   *Node   `json:"r,omitempty"`
}

func (n *Node) leaf() bool { return n.Left == nil && n.Right == nil }

// Model is the trained forecaster artifact. Inputs must be standardized
// with the paired Scaler before prediction.
type Model struct {
	Columns []string `json:"columns"`
	Trees   []*Node  `json:"trees"`
}

// Train fits the ensemble on standardized features X and targets y. Each
// tree sees a bootstrap resample of the training set.
func Train(X [][]float64, y []float64, cols []string, cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()
	if len(X) < 2 || len(X) != len(y) {
		return nil, errors.New("insufficient or mismatched training data")
	}
	if len(cols) != len(X[0]) {
		return nil, fmt.Errorf("column list (%d) does not match vector width (%d)", len(cols), len(X[0]))
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	m := &Model{
		Columns: append([]string(nil), cols...),
		Trees:   make([]*Node, cfg.Trees),
	}
	n := len(X)
	for t := range m.Trees {
		bx := make([][]float64, n)
		by := make([]float64, n)
		for i := 0; i < n; i++ {
			j := rng.IntN(n)
			bx[i] = X[j]
			by[i] = y[j]
		}
		m.Trees[t] = buildRegressionNode(bx, by, 0, cfg)
	}
	return m, nil
}

// Predict averages the trees over one standardized feature vector.
func (m *Model) Predict(vec []float64) (float64, error) {
	if len(vec) != len(m.Columns) {
		return 0, fmt.Errorf("vector width %d does not match trained width %d", len(vec), len(m.Columns))
	}
	var sum float64
	for _, t := range m.Trees {
		sum += evalTree(vec, t)
	}
	return sum / float64(len(m.Trees)), nil
}

// Marshal serializes the model artifact as JSON.
func (m *Model) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Load deserializes a model artifact.
func Load(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m.Trees) == 0 {
		return nil, errors.New("forecast artifact has no trees")
	}
	return &m, nil
}

// Round2 rounds a prediction to 2 decimal places for presentation.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func buildRegressionNode(X [][]float64, y []float64, depth int, cfg Config) *Node {
	if len(y) < 2*cfg.MinLeaf || depth >= cfg.MaxDepth || constant(y) {
		return &Node{Value: mean(y)}
	}

	feature, split, ok := bestSplit(X, y, cfg.MinLeaf)
	if !ok {
		return &Node{Value: mean(y)}
	}

	var lx, rx [][]float64
	var ly, ry []float64
	for i, vec := range X {
		if vec[feature] < split {
			lx = append(lx, vec)
			ly = append(ly, y[i])
		} else {
			rx = append(rx, vec)
			ry = append(ry, y[i])
		}
	}
	return &Node{
		Feature: feature,
		Split:   split,
		Value:   mean(y),
		Left:    buildRegressionNode(lx, ly, depth+1, cfg),
		Right:   buildRegressionNode(rx, ry, depth+1, cfg),
	}
}

// bestSplit scans every feature for the threshold that minimizes the summed
// squared error of the two halves, using prefix sums over sorted values.
func bestSplit(X [][]float64, y []float64, minLeaf int) (feature int, split float64, ok bool) {
	n := len(y)
	best := math.Inf(1)
	idx := make([]int, n)

	for f := 0; f < len(X[0]); f++ {
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool { return X[idx[a]][f] < X[idx[b]][f] })

		var sumL, sqL float64
		sumR, sqR := 0.0, 0.0
		for _, i := range idx {
			sumR += y[i]
			sqR += y[i] * y[i]
		}
		for k := 0; k < n-1; k++ {
			v := y[idx[k]]
			sumL += v
			sqL += v * v
			sumR -= v
			sqR -= v * v

			if k+1 < minLeaf || n-(k+1) < minLeaf {
				continue
			}
			a, b := X[idx[k]][f], X[idx[k+1]][f]
			if a == b {
				continue
			}
			nl, nr := float64(k+1), float64(n-k-1)
			sse := (sqL - sumL*sumL/nl) + (sqR - sumR*sumR/nr)
			if sse < best {
				best = sse
				feature = f
				split = (a + b) / 2
				ok = true
			}
		}
	}
	return feature, split, ok
}

func evalTree(vec []float64, node *Node) float64 {
	for !node.leaf() {
		if vec[node.Feature] < node.Split {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

func constant(vals []float64) bool {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return false
		}
	}
	return true
}
