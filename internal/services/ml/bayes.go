// Package ml holds the statistical disease classifiers: one over engineered
// weather features and one over image feature vectors.
package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// varSmoothing is added to every class variance, scaled by the largest
// feature variance, so constant features do not divide by zero.
const varSmoothing = 1e-9

var errEmptyTrainingSet = errors.New("empty training set")

// GaussianNB is a Gaussian naive Bayes classifier. Its exported fields are
// the whole fitted state and round-trip through JSON.
type GaussianNB struct {
	Classes   []string    `json:"classes"`
	LogPriors []float64   `json:"log_priors"`
	Means     [][]float64 `json:"means"`
	Variances [][]float64 `json:"variances"`
}

// FitGaussianNB fits one Gaussian per (class, feature) pair.
func FitGaussianNB(x [][]float64, y []string) (*GaussianNB, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", errEmptyTrainingSet, len(x), len(y))
	}
	dims := len(x[0])

	rows := make(map[string][][]float64)
	for i, row := range x {
		if len(row) != dims {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), dims)
		}
		rows[y[i]] = append(rows[y[i]], row)
	}

	epsilon := 0.0
	for j := 0; j < dims; j++ {
		_, v := stat.PopMeanVariance(column(x, j), nil)
		epsilon = math.Max(epsilon, v)
	}
	epsilon *= varSmoothing
	if epsilon == 0 {
		epsilon = varSmoothing
	}

	m := &GaussianNB{}
	for class := range rows {
		m.Classes = append(m.Classes, class)
	}
	sort.Strings(m.Classes)

	for _, class := range m.Classes {
		cr := rows[class]
		means := make([]float64, dims)
		vars := make([]float64, dims)
		for j := 0; j < dims; j++ {
			means[j], vars[j] = stat.PopMeanVariance(column(cr, j), nil)
			vars[j] += epsilon
		}
		m.Means = append(m.Means, means)
		m.Variances = append(m.Variances, vars)
		m.LogPriors = append(m.LogPriors, math.Log(float64(len(cr))/float64(len(x))))
	}
	return m, nil
}

// PredictProba returns class probabilities in the order of m.Classes.
func (m *GaussianNB) PredictProba(features []float64) ([]float64, error) {
	if len(m.Classes) == 0 {
		return nil, errors.New("classifier has no classes")
	}
	if len(features) != len(m.Means[0]) {
		return nil, fmt.Errorf("got %d features, want %d", len(features), len(m.Means[0]))
	}

	jll := make([]float64, len(m.Classes))
	for c := range m.Classes {
		ll := m.LogPriors[c]
		for j, x := range features {
			v := m.Variances[c][j]
			d := x - m.Means[c][j]
			ll -= 0.5 * (math.Log(2*math.Pi*v) + d*d/v)
		}
		jll[c] = ll
	}

	norm := floats.LogSumExp(jll)
	probs := make([]float64, len(jll))
	for c, ll := range jll {
		probs[c] = math.Exp(ll - norm)
	}
	return probs, nil
}

// ranked pairs each class with its probability, most likely first. Ties
// keep class order.
func (m *GaussianNB) ranked(probs []float64) []ranking {
	out := make([]ranking, len(probs))
	for i, p := range probs {
		out[i] = ranking{class: m.Classes[i], p: p}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].p > out[j].p })
	return out
}

type ranking struct {
	class string
	p     float64
}

func column(x [][]float64, j int) []float64 {
	col := make([]float64, len(x))
	for i, row := range x {
		col[i] = row[j]
	}
	return col
}
