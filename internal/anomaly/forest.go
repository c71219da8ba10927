// Package anomaly implements an isolation-forest outlier model over
// multivariate sensor feature vectors. Scores follow the decision-function
// convention: negative means anomalous.
package anomaly

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
const MinTrainingRows = 10

const defaultSubsample = 256

// Config controls forest fitting.
type Config struct {
	Trees         int     // ensemble size
	Subsample     int     // per-tree sample size
	Contamination float64 // expected outlier fraction, sets the decision offset
	Seed          uint64  // deterministic training seed
}

func (c Config) withDefaults() Config {
	if c.Trees <= 0 {
		c.Trees = 200
	}
	if c.Subsample <= 0 {
		c.Subsample = defaultSubsample
	}
	if c.Contamination <= 0 || c.Contamination >= 1 {
		c.Contamination = 0.02
	}
	return c
}

// Node is one split (or leaf) of an isolation tree. Exported fields so the
// whole forest round-trips through JSON as an artifact.
type Node struct {
	Feature int     `json:"f"`
	Split   float64 `json:"s"`
	Left    *Node   `json:"l,omitempty"`
	Right   *Node   `json:"r,omitempty"`
	Size    int     `json:"n"`
}

func (n *Node) leaf() bool { return n.Left == nil && n.Right == nil }

// Forest is the trained scorer artifact. Columns records the exact feature
// schema used at training time; scoring rejects any other schema.
type Forest struct {
	Columns   []string `json:"columns"`
	Subsample int      `json:"subsample"`
	Offset    float64  `json:"offset"`
	Trees     []*Node  `json:"trees"`
}

// Train fits an isolation forest on X, whose vectors follow cols. The
// decision offset is placed at the (1-contamination) quantile of the
// training isolation scores, so roughly that fraction of training rows
// scores negative.
func Train(X [][]float64, cols []string, cfg Config) (*Forest, error) {
	cfg = cfg.withDefaults()
	if len(X) < 2 {
		return nil, errors.New("insufficient training data")
	}
	if len(cols) == 0 || len(cols) != len(X[0]) {
		return nil, fmt.Errorf("column list (%d) does not match vector width (%d)", len(cols), len(X[0]))
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	sample := cfg.Subsample
	if sample > len(X) {
		sample = len(X)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sample))))

	f := &Forest{
		Columns:   append([]string(nil), cols...),
		Subsample: sample,
		Trees:     make([]*Node, cfg.Trees),
	}
	for i := range f.Trees {
		f.Trees[i] = buildNode(subsample(X, sample, rng), 0, maxDepth, rng)
	}

	raw := make([]float64, len(X))
	for i, vec := range X {
		raw[i] = f.isolation(vec)
	}
	f.Offset = quantile(raw, 1-cfg.Contamination)
	return f, nil
}

// Score returns the decision value for one feature vector; negative means
// anomalous. The column set must equal the training schema.
func (f *Forest) Score(vec []float64, cols []string) (float64, error) {
	if err := f.checkSchema(cols); err != nil {
		return 0, err
	}
	return f.Offset - f.isolation(vec), nil
}

// ScoreAll scores every row of X under the same schema check as Score.
func (f *Forest) ScoreAll(X [][]float64, cols []string) ([]float64, error) {
	if err := f.checkSchema(cols); err != nil {
		return nil, err
	}
	scores := make([]float64, len(X))
	for i, vec := range X {
		scores[i] = f.Offset - f.isolation(vec)
	}
	return scores, nil
}

func (f *Forest) checkSchema(cols []string) error {
	if len(cols) != len(f.Columns) {
		return fmt.Errorf("feature schema %v does not match trained schema %v", cols, f.Columns)
	}
	for i := range cols {
		if cols[i] != f.Columns[i] {
			return fmt.Errorf("feature schema %v does not match trained schema %v", cols, f.Columns)
		}
	}
	return nil
}

// isolation is the normalized anomaly score s(x) = 2^(-E[h(x)]/c(psi)),
// in (0,1]; higher means easier to isolate, i.e. more anomalous.
func (f *Forest) isolation(vec []float64) float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += pathLength(vec, t, 0)
	}
	avg := sum / float64(len(f.Trees))
	return math.Pow(2, -avg/avgPathLength(float64(f.Subsample)))
}

// Marshal serializes the forest artifact as JSON.
func (f *Forest) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// Load deserializes a forest artifact.
func Load(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("anomaly artifact has no trees")
	}
	return &f, nil
}

func subsample(X [][]float64, size int, rng *rand.Rand) [][]float64 {
	if len(X) <= size {
		return X
	}
	idx := rng.Perm(len(X))[:size]
	out := make([][]float64, size)
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func buildNode(data [][]float64, depth, maxDepth int, rng *rand.Rand) *Node {
	if len(data) <= 1 || depth >= maxDepth {
		return &Node{Size: len(data)}
	}

	feature := rng.IntN(len(data[0]))
	minVal, maxVal := data[0][feature], data[0][feature]
	for _, d := range data {
		if d[feature] < minVal {
			minVal = d[feature]
		}
		if d[feature] > maxVal {
			maxVal = d[feature]
		}
	}
	if minVal == maxVal {
		return &Node{Size: len(data)}
	}

	split := minVal + rng.Float64()*(maxVal-minVal)
	var left, right [][]float64
	for _, d := range data {
		if d[feature] < split {
			left = append(left, d)
		} else {
			right = append(right, d)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &Node{Size: len(data)}
	}
	return &Node{
		Feature: feature,
		Split:   split,
		Left:    buildNode(left, depth+1, maxDepth, rng),
		Right:   buildNode(right, depth+1, maxDepth, rng),
		Size:    len(data),
	}
}

func pathLength(vec []float64, node *Node, depth int) float64 {
	if node == nil || node.leaf() {
		if node != nil && node.Size > 1 {
			return float64(depth) + avgPathLength(float64(node.Size))
		}
		return float64(depth)
	}
	if vec[node.Feature] < node.Split {
		return pathLength(vec, node.Left, depth+1)
	}
	return pathLength(vec, node.Right, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n samples; H(n-1) approximated with Euler's constant.
func avgPathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// quantile returns the q-th linear-interpolated quantile of vals.
func quantile(vals []float64, q float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
