package vision

import (
	"gonum.org/v1/gonum/stat"
)

// Canny thresholds applied to the L1 Sobel gradient magnitude.
const (
	cannyLow  = 50
	cannyHigh = 150
)

// reflect101 mirrors an out-of-range index without repeating the border
// pixel.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func (f *Frame) grayAt(x, y int) float64 {
	return float64(f.Gray[reflect101(y, f.Height)*f.Width+reflect101(x, f.Width)])
}

// LaplacianVariance is the variance of the 4-neighbour Laplacian of the gray
// plane. Low values mean a blurry image.
func (f *Frame) LaplacianVariance() float64 {
	if f.Pixels() == 0 {
		return 0
	}
	lap := make([]float64, 0, f.Pixels())
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := f.grayAt(x-1, y) + f.grayAt(x+1, y) + f.grayAt(x, y-1) + f.grayAt(x, y+1) - 4*f.grayAt(x, y)
			lap = append(lap, v)
		}
	}
	_, variance := stat.PopMeanVariance(lap, nil)
	return variance
}

// EdgeDensity is the share of pixels marked as edges by a Canny detector.
func (f *Frame) EdgeDensity() float64 {
	n := f.Pixels()
	if n == 0 {
		return 0
	}
	edges := f.canny(cannyLow, cannyHigh)
	count := 0
	for _, e := range edges {
		if e {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (f *Frame) canny(low, high float64) []bool {
	w, h := f.Width, f.Height
	mag := make([]float64, w*h)
	dir := make([]uint8, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := f.grayAt(x+1, y-1) + 2*f.grayAt(x+1, y) + f.grayAt(x+1, y+1) -
				f.grayAt(x-1, y-1) - 2*f.grayAt(x-1, y) - f.grayAt(x-1, y+1)
			gy := f.grayAt(x-1, y+1) + 2*f.grayAt(x, y+1) + f.grayAt(x+1, y+1) -
				f.grayAt(x-1, y-1) - 2*f.grayAt(x, y-1) - f.grayAt(x+1, y-1)
			i := y*w + x
			mag[i] = abs(gx) + abs(gy)
			dir[i] = quantizeDirection(gx, gy)
		}
	}

	// Non-maximum suppression along the gradient direction.
	const (
		weak   = 1
		strong = 2
	)
	state := make([]uint8, w*h)
	var stack []int
	offsets := [4][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			o := offsets[dir[i]]
			if m < magAt(mag, w, h, x+o[0], y+o[1]) || m <= magAt(mag, w, h, x-o[0], y-o[1]) {
				continue
			}
			if m > high {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = weak
			}
		}
	}

	// Hysteresis: weak pixels survive only when connected to a strong one.
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == weak {
					state[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	edges := make([]bool, w*h)
	for i, s := range state {
		edges[i] = s == strong
	}
	return edges
}

func magAt(mag []float64, w, h, x, y int) float64 {
	if x < 0 || y < 0 || x >= w || y >= h {
		return 0
	}
	return mag[y*w+x]
}

// quantizeDirection maps a gradient to one of four neighbour axes:
// 0 horizontal, 1 diagonal, 2 vertical, 3 anti-diagonal.
func quantizeDirection(gx, gy float64) uint8 {
	const tan22, tan67 = 0.4142135623730951, 2.414213562373095
	ax, ay := abs(gx), abs(gy)
	switch {
	case ay <= ax*tan22:
		return 0
	case ay >= ax*tan67:
		return 2
	case (gx > 0) == (gy > 0):
		return 1
	default:
		return 3
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
