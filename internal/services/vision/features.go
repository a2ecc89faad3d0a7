package vision

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FeatureLen is the fixed length of a feature vector.
const FeatureLen = 20

// FeatureVector summarises colour, texture and brightness statistics of an
// image.
type FeatureVector [FeatureLen]float64

// Features extracts the vector for a frame: for each of the three channels
// the RGB mean, std, 25th and 75th percentiles followed by the HSV mean and
// std, then edge density and gray mean and std. Values past FeatureLen are
// dropped.
func (f *Frame) Features() FeatureVector {
	var v FeatureVector
	if f.Pixels() == 0 {
		return v
	}

	rgb := [3][]uint8{f.R, f.G, f.B}
	hsv := [3][]uint8{f.H, f.S, f.V}

	values := make([]float64, 0, 21)
	for c := 0; c < 3; c++ {
		data := floats(rgb[c])
		mean, std := stat.PopMeanStdDev(data, nil)
		sort.Float64s(data)
		values = append(values,
			mean,
			std,
			percentile(data, 0.25),
			percentile(data, 0.75),
		)

		mean, std = stat.PopMeanStdDev(floats(hsv[c]), nil)
		values = append(values, mean, std)
	}

	gray := floats(f.Gray)
	grayMean, grayStd := stat.PopMeanStdDev(gray, nil)
	values = append(values, f.EdgeDensity(), grayMean, grayStd)

	copy(v[:], values)
	return v
}

// Brightness is the mean of the gray plane.
func (f *Frame) Brightness() float64 {
	if f.Pixels() == 0 {
		return 0
	}
	return stat.Mean(floats(f.Gray), nil)
}

// percentile reads the p-quantile of sorted data by linear interpolation of
// the empirical distribution.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

func floats(plane []uint8) []float64 {
	out := make([]float64, len(plane))
	for i, v := range plane {
		out[i] = float64(v)
	}
	return out
}
