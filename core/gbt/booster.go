// Package gbt implements a small gradient-boosted regression tree classifier for binary
// log-loss, in the spirit of xgboost's exact greedy algorithm, and a TreeSHAP explainer for it.
package gbt

import (
	"math"

	"github.com/pkg/errors"
)

var (
	ErrEmptyInput     = errors.New("gbt: empty X")
	ErrLengthMismatch = errors.New("gbt: X and y length mismatch")
	ErrRaggedInput    = errors.New("gbt: inconsistent number of features in X rows")
	ErrInvalidLabel   = errors.New("gbt: labels must be 0 or 1")
	ErrNotFitted      = errors.New("gbt: booster not fitted")
)

// Params are the boosting hyper-parameters.
type Params struct {
	Rounds         int     `json:"rounds"`           // number of trees
	MaxDepth       int     `json:"max_depth"`        // root depth = 0; 0 => no limit
	LearningRate   float64 `json:"learning_rate"`    // shrinkage applied to every leaf
	Lambda         float64 `json:"lambda"`           // L2 regularization on leaf weights
	Gamma          float64 `json:"gamma"`            // minimum loss reduction to split
	MinChildWeight float64 `json:"min_child_weight"` // minimum hessian sum in a child
	MinSamplesLeaf int     `json:"min_samples_leaf"` // minimum samples in a child
	BaseScore      float64 `json:"base_score"`       // initial probability
}

// DefaultParams returns xgboost's defaults, except for MinChildWeight which is relaxed
// so that small cohorts can still be split.
func DefaultParams() Params {
	return Params{
		Rounds:         100,
		MaxDepth:       6,
		LearningRate:   0.3,
		Lambda:         1,
		Gamma:          0,
		MinChildWeight: 0,
		MinSamplesLeaf: 1,
		BaseScore:      0.5,
	}
}

// Booster is an additive ensemble of regression trees over the log-odds (margin) space.
// A fitted Booster is never mutated and can be shared between goroutines.
type Booster struct {
	Params      Params  `json:"params"`
	BaseMargin  float64 `json:"base_margin"`
	NumFeatures int     `json:"num_features"`
	Trees       []*Tree `json:"trees"`
}

// NewBooster returns an unfitted Booster.
func NewBooster(params Params) *Booster {
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}
	if params.BaseScore <= 0 || params.BaseScore >= 1 {
		params.BaseScore = 0.5
	}
	return &Booster{Params: params}
}

// Fit trains the ensemble on X (n x p) and binary labels y.
func (b *Booster) Fit(X [][]float64, y []int) error {
	n := len(X)
	if n == 0 {
		return ErrEmptyInput
	}
	if len(y) != n {
		return ErrLengthMismatch
	}
	p := len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return ErrRaggedInput
		}
		if y[i] != 0 && y[i] != 1 {
			return ErrInvalidLabel
		}
	}

	b.NumFeatures = p
	b.BaseMargin = logit(b.Params.BaseScore)
	b.Trees = make([]*Tree, 0, b.Params.Rounds)

	cols := columns(X, p)
	margins := make([]float64, n)
	for i := range margins {
		margins[i] = b.BaseMargin
	}
	grad := make([]float64, n)
	hess := make([]float64, n)

	for round := 0; round < b.Params.Rounds; round++ {
		for i := range margins {
			prob := sigmoid(margins[i])
			grad[i] = prob - float64(y[i])
			hess[i] = math.Max(prob*(1-prob), 1e-16)
		}
		tree := growTree(cols, grad, hess, b.Params)
		for i := range margins {
			margins[i] += tree.Predict(X[i])
		}
		b.Trees = append(b.Trees, tree)
	}
	return nil
}

// Margin returns the raw (log-odds) output for a single row.
func (b *Booster) Margin(x []float64) float64 {
	m := b.BaseMargin
	for _, t := range b.Trees {
		m += t.Predict(x)
	}
	return m
}

// PredictProba returns P(y=1) for every row.
func (b *Booster) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		out[i] = sigmoid(b.Margin(X[i]))
	}
	return out
}

// Predict returns the 0/1 class of every row (P(y=1) > 0.5).
func (b *Booster) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, prob := range b.PredictProba(X) {
		if prob > 0.5 {
			out[i] = 1
		}
	}
	return out
}

// Fitted reports whether Fit has been called successfully.
func (b *Booster) Fitted() bool {
	return b != nil && b.NumFeatures > 0 && b.Trees != nil
}

func columns(X [][]float64, p int) [][]float64 {
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = make([]float64, len(X))
		for i := range X {
			cols[j][i] = X[i][j]
		}
	}
	return cols
}

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

func logit(p float64) float64 { return math.Log(p / (1 - p)) }

// Sigmoid converts a margin into a probability.
func Sigmoid(margin float64) float64 { return sigmoid(margin) }
