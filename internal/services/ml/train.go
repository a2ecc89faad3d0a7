package ml

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/shuv1824/kisan/internal/services/vision"
)

// TrainOptions sizes the synthetic training sets. A fixed seed reproduces
// the same parameters.
type TrainOptions struct {
	Seed           uint64
	WeatherSamples int
	ImagesPerClass int
	ImageSize      int
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Seed:           42,
		WeatherSamples: 1000,
		ImagesPerClass: 40,
		ImageSize:      64,
	}
}

// TrainWeather fits the weather classifier on generated observations
// labelled with coarse agronomic rules.
func TrainWeather(opts TrainOptions) (*WeatherClassifier, error) {
	x, y := weatherTrainingSet(opts.WeatherSamples, rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	scaler := FitScaler(x)
	model, err := FitGaussianNB(scaler.TransformAll(x), y)
	if err != nil {
		return nil, fmt.Errorf("train weather classifier: %w", err)
	}
	return &WeatherClassifier{Scaler: scaler, Model: model}, nil
}

func weatherTrainingSet(n int, src rand.Source) ([][]float64, []string) {
	rng := rand.New(src)
	temperature := distuv.Normal{Mu: 25, Sigma: 5, Src: src}
	humidity := distuv.Normal{Mu: 70, Sigma: 15, Src: src}
	rainfall := distuv.Exponential{Rate: 1.0 / 5, Src: src}
	wind := distuv.Normal{Mu: 10, Sigma: 3, Src: src}
	sunshine := distuv.Normal{Mu: 6, Sigma: 2, Src: src}

	pick := func(labels ...string) string { return labels[rng.IntN(len(labels))] }

	x := make([][]float64, 0, n)
	y := make([]string, 0, n)
	for i := 0; i < n; i++ {
		t, h, r := temperature.Rand(), humidity.Rand(), rainfall.Rand()

		var label string
		switch {
		case h > 85 && t < 25:
			label = pick("blight", "powdery_mildew")
		case t > 28 && h < 60:
			label = pick("wilt", "bacterial_spot")
		case r > 10:
			label = pick("blast", "rust")
		default:
			label = pick(WeatherDiseaseLabels...)
		}

		x = append(x, weatherFeatures(t, h, r, wind.Rand(), sunshine.Rand()))
		y = append(y, label)
	}
	return x, y
}

// TrainImage fits the image classifier on rendered leaves: a green leaf
// with spots coloured from each pattern's HSV ranges, passed through the
// same feature extraction used at inference time.
func TrainImage(opts TrainOptions) (*ImageClassifier, error) {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed+1))

	var (
		x [][]float64
		y []string
	)
	for _, p := range Patterns {
		for i := 0; i < opts.ImagesPerClass; i++ {
			v := vision.Prepare(RenderLeaf(p, opts.ImageSize, rng)).Features()
			x = append(x, append([]float64(nil), v[:]...))
			y = append(y, p.Name)
		}
	}

	model, err := FitGaussianNB(x, y)
	if err != nil {
		return nil, fmt.Errorf("train image classifier: %w", err)
	}
	return &ImageClassifier{Model: model}, nil
}

// RenderLeaf draws a size x size leaf with spots in the colours of p
// covering 10-35% of the area.
func RenderLeaf(p Pattern, size int, rng *rand.Rand) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	baseH := uint8(35 + rng.IntN(50))
	baseS := uint8(80 + rng.IntN(120))
	baseV := uint8(80 + rng.IntN(120))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			jitter := rng.IntN(17) - 8
			img.SetRGBA(x, y, hsvToRGB(baseH, baseS, clampByte(int(baseV)+jitter)))
		}
	}

	names := make([]string, 0, len(p.ColorRanges))
	for name := range p.ColorRanges {
		names = append(names, name)
	}
	sort.Strings(names)

	target := int(float64(size*size) * (0.10 + 0.25*rng.Float64()))
	painted := make([]bool, size*size)
	count := 0
	maxRadius := max(2, size/8)
	for spots := 0; count < target && spots < 200; spots++ {
		r := p.ColorRanges[names[rng.IntN(len(names))]]
		c := hsvToRGB(
			between(rng, r.Lo[0], r.Hi[0]),
			between(rng, r.Lo[1], r.Hi[1]),
			between(rng, r.Lo[2], r.Hi[2]),
		)
		cx, cy := rng.IntN(size), rng.IntN(size)
		radius := 1 + rng.IntN(maxRadius)
		for y := max(0, cy-radius); y < min(size, cy+radius+1); y++ {
			for x := max(0, cx-radius); x < min(size, cx+radius+1); x++ {
				if (x-cx)*(x-cx)+(y-cy)*(y-cy) > radius*radius {
					continue
				}
				img.SetRGBA(x, y, c)
				if !painted[y*size+x] {
					painted[y*size+x] = true
					count++
				}
			}
		}
	}
	return img
}

func between(rng *rand.Rand, lo, hi uint8) uint8 {
	if hi <= lo {
		return lo
	}
	return lo + uint8(rng.IntN(int(hi-lo)+1))
}

// hsvToRGB inverts the OpenCV-scale conversion: hue in 0-180, saturation
// and value in 0-255.
func hsvToRGB(h, s, v uint8) color.RGBA {
	hf := math.Mod(float64(h)*2, 360) / 60
	sf := float64(s) / 255
	vf := float64(v)

	c := vf * sf
	x := c * (1 - math.Abs(math.Mod(hf, 2)-1))
	m := vf - c

	var r, g, b float64
	switch int(hf) {
	case 0:
		r, g, b = c, x, 0
	case 1:
		r, g, b = x, c, 0
	case 2:
		r, g, b = 0, c, x
	case 3:
		r, g, b = 0, x, c
	case 4:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.RGBA{
		R: clampByte(int(math.Round(r + m))),
		G: clampByte(int(math.Round(g + m))),
		B: clampByte(int(math.Round(b + m))),
		A: 255,
	}
}

func clampByte(v int) uint8 {
	return uint8(max(0, min(255, v)))
}
