package ml

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/shuv1824/kisan/internal/services/vision"
	"github.com/shuv1824/kisan/internal/types"
)

var ErrInvalidImage = errors.New("invalid image data")

// Fusion constants for combining classifier output with pixel analysis.
const (
	indicatorBoost       = 0.1
	poorQualityFactor    = 0.8
	primaryMinConfidence = 0.3
	alternateMinProb     = 0.2
	maxAlternates        = 2
)

// ImageClassifier maps an image feature vector to a disease pattern.
type ImageClassifier struct {
	Model *GaussianNB `json:"model"`
}

func (c *ImageClassifier) classify(v vision.FeatureVector) ([]ranking, error) {
	if c == nil || c.Model == nil {
		return nil, ErrClassifierUnavailable
	}
	probs, err := c.Model.PredictProba(v[:])
	if err != nil {
		return nil, fmt.Errorf("image classifier: %w", err)
	}
	return c.Model.ranked(probs), nil
}

// ImageAnalyzer fuses classifier output with colour-spot and quality
// signals from the same image.
type ImageAnalyzer struct {
	classifier *ImageClassifier
	logger     *slog.Logger
}

func NewImageAnalyzer(classifier *ImageClassifier, logger *slog.Logger) *ImageAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageAnalyzer{classifier: classifier, logger: logger}
}

// Available reports whether a trained classifier is loaded.
func (a *ImageAnalyzer) Available() bool {
	return a.classifier != nil && a.classifier.Model != nil
}

// Analyze classifies a decoded image. Poor image quality lowers confidence
// rather than failing.
func (a *ImageAnalyzer) Analyze(img image.Image, cropType string) (types.ImageAnalysis, error) {
	if img == nil || img.Bounds().Empty() {
		return types.ImageAnalysis{}, ErrInvalidImage
	}
	if !a.Available() {
		return types.ImageAnalysis{}, ErrClassifierUnavailable
	}
	if cropType == "" {
		cropType = "unknown"
	}

	in := vision.Inspect(img)
	ranked, err := a.classifier.classify(in.Features)
	if err != nil {
		return types.ImageAnalysis{}, err
	}

	primary := ranked[0]
	confidence := fuseConfidence(primary.p, in)

	diseases := detectedDiseases(cropType, ranked, confidence, in.Indicators)

	a.logger.Debug("image analysed",
		"crop", cropType,
		"prediction", primary.class,
		"confidence", confidence,
		"indicators", len(in.Indicators),
		"resolution", in.Quality.Resolution,
	)

	return types.ImageAnalysis{
		Status:            "success",
		CropType:          cropType,
		Diseases:          diseases,
		Confidence:        confidence,
		Recommendations:   imageRecommendations(primary.class, confidence, in.Indicators),
		ImageQuality:      in.Quality,
		DiseaseIndicators: in.Indicators,
		SpotAnalysis:      in.Spots,
	}, nil
}

// detectedDiseases lists the primary prediction when its fused confidence
// reaches the floor, then up to two likely alternates.
func detectedDiseases(cropType string, ranked []ranking, confidence float64, indicators []string) []types.DetectedDisease {
	diseases := []types.DetectedDisease{}
	if len(ranked) == 0 {
		return diseases
	}
	if confidence >= primaryMinConfidence {
		diseases = append(diseases, types.DetectedDisease{
			Disease:          cropType + "_" + ranked[0].class,
			Confidence:       confidence,
			DetectionMethod:  "ML + Computer Vision",
			SymptomsDetected: indicators,
		})
	}
	alternates := 0
	for _, r := range ranked[1:] {
		if alternates == maxAlternates {
			break
		}
		if r.p > alternateMinProb {
			diseases = append(diseases, types.DetectedDisease{
				Disease:          cropType + "_" + r.class,
				Confidence:       r.p,
				DetectionMethod:  "ML Analysis",
				SymptomsDetected: []string{},
			})
			alternates++
		}
	}
	return diseases
}

// fuseConfidence boosts the classifier confidence by 0.1 per indicator,
// capped at 1, then scales it by 0.8 for a poor quality image.
func fuseConfidence(p float64, in vision.Inspection) float64 {
	c := p
	if n := len(in.Indicators); n > 0 {
		c = math.Min(1, c+indicatorBoost*float64(n))
	}
	if in.PoorQuality() {
		c *= poorQualityFactor
	}
	return c
}

func imageRecommendations(disease string, confidence float64, indicators []string) []string {
	var recs []string
	switch {
	case confidence > 0.7:
		recs = append(recs,
			"High confidence disease detection. Immediate action recommended.",
			fmt.Sprintf("Apply appropriate fungicide/bactericide treatment for %s.", disease),
			"Isolate affected plants to prevent spread.",
		)
	case confidence > 0.4:
		recs = append(recs,
			"Moderate confidence detection. Monitor closely and consider preventive treatment.",
			"Improve air circulation and reduce humidity around plants.",
		)
	default:
		recs = append(recs, "Low confidence detection. Continue monitoring and maintain good plant hygiene.")
	}

	for _, ind := range indicators {
		switch ind {
		case vision.IndicatorBrownSpots:
			recs = append(recs, "Brown spots detected - check for fungal diseases like blight or rust.")
		case vision.IndicatorYellowing:
			recs = append(recs, "Yellowing detected - could indicate nutrient deficiency or disease stress.")
		case vision.IndicatorDiscoloration:
			recs = append(recs, "Significant discoloration found - consider soil and water management.")
		}
	}

	return append(recs,
		"Ensure proper drainage and avoid overwatering.",
		"Remove and dispose of infected plant material properly.",
		"Consider consulting with local agricultural extension services.",
	)
}
