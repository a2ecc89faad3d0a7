package vision

import (
	"fmt"
	"image"

	"github.com/shuv1824/kisan/internal/types"
)

// Indicator names reported by colour-spot analysis.
const (
	IndicatorBrownSpots    = "brown_spots_detected"
	IndicatorYellowing     = "yellowing_detected"
	IndicatorDiscoloration = "significant_discoloration"
)

const (
	spotThreshold          = 0.05
	discolorationThreshold = 0.1

	sharpnessThreshold = 100
	minBrightness      = 50
	maxBrightness      = 200

	QualityGood = "good"
	QualityPoor = "poor"
)

// HSVRange is an inclusive box in OpenCV-scale HSV space.
type HSVRange struct {
	Lo, Hi [3]uint8
}

// Contains reports whether h, s, v lie inside the range.
func (r HSVRange) Contains(h, s, v uint8) bool {
	return h >= r.Lo[0] && h <= r.Hi[0] &&
		s >= r.Lo[1] && s <= r.Hi[1] &&
		v >= r.Lo[2] && v <= r.Hi[2]
}

var (
	BrownRange  = HSVRange{Lo: [3]uint8{10, 50, 20}, Hi: [3]uint8{20, 255, 200}}
	YellowRange = HSVRange{Lo: [3]uint8{20, 100, 100}, Hi: [3]uint8{30, 255, 255}}
)

// Coverage is the share of pixels inside r.
func (f *Frame) Coverage(r HSVRange) float64 {
	n := f.Pixels()
	if n == 0 {
		return 0
	}
	hits := 0
	for i := 0; i < n; i++ {
		if r.Contains(f.H[i], f.S[i], f.V[i]) {
			hits++
		}
	}
	return float64(hits) / float64(n)
}

// Spots measures brown and yellow coverage.
func (f *Frame) Spots() types.SpotAnalysis {
	brown := f.Coverage(BrownRange)
	yellow := f.Coverage(YellowRange)
	return types.SpotAnalysis{
		BrownCoverage:  brown,
		YellowCoverage: yellow,
		TotalCoverage:  brown + yellow,
	}
}

// Indicators turns spot coverage into qualitative symptom flags.
func Indicators(spots types.SpotAnalysis) []string {
	indicators := []string{}
	if spots.BrownCoverage > spotThreshold {
		indicators = append(indicators, IndicatorBrownSpots)
	}
	if spots.YellowCoverage > spotThreshold {
		indicators = append(indicators, IndicatorYellowing)
	}
	if spots.TotalCoverage > discolorationThreshold {
		indicators = append(indicators, IndicatorDiscoloration)
	}
	return indicators
}

// Inspection is everything pixel analysis learns about one image.
type Inspection struct {
	Features          FeatureVector
	Quality           types.ImageQuality
	Spots             types.SpotAnalysis
	Indicators        []string
	LaplacianVariance float64
	Brightness        float64
}

// PoorQuality reports whether sharpness or brightness was judged poor.
func (in Inspection) PoorQuality() bool {
	return in.Quality.Sharpness == QualityPoor || in.Quality.Brightness == QualityPoor
}

// Inspect analyses img. Resolution reports the decoded size; every other
// signal comes from the bounded analysis frame.
func Inspect(img image.Image) Inspection {
	b := img.Bounds()
	f := Prepare(img)

	lapVar := f.LaplacianVariance()
	brightness := f.Brightness()

	quality := types.ImageQuality{
		Sharpness:  QualityPoor,
		Brightness: QualityPoor,
		Resolution: fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
	}
	if lapVar > sharpnessThreshold {
		quality.Sharpness = QualityGood
	}
	if brightness > minBrightness && brightness < maxBrightness {
		quality.Brightness = QualityGood
	}

	spots := f.Spots()
	return Inspection{
		Features:          f.Features(),
		Quality:           quality,
		Spots:             spots,
		Indicators:        Indicators(spots),
		LaplacianVariance: lapVar,
		Brightness:        brightness,
	}
}
