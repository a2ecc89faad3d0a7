package ml

import (
	"gonum.org/v1/gonum/stat"
)

// Scaler standardises features to zero mean and unit variance.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func FitScaler(x [][]float64) *Scaler {
	if len(x) == 0 {
		return &Scaler{}
	}
	dims := len(x[0])
	s := &Scaler{Mean: make([]float64, dims), Scale: make([]float64, dims)}
	for j := 0; j < dims; j++ {
		mean, std := stat.PopMeanStdDev(column(x, j), nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j], s.Scale[j] = mean, std
	}
	return s
}

// Transform returns a scaled copy of features.
func (s *Scaler) Transform(features []float64) []float64 {
	out := make([]float64, len(features))
	for j, v := range features {
		if j >= len(s.Mean) {
			out[j] = v
			continue
		}
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

func (s *Scaler) TransformAll(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = s.Transform(row)
	}
	return out
}
