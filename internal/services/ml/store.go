package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	WeatherModelFile = "weather_classifier.json"
	ImageModelFile   = "image_classifier.json"

	modelFormatVersion = 1
)

type modelFile[T any] struct {
	Version   int       `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Seed      uint64    `json:"seed"`
	Model     T         `json:"model"`
}

func save[T any](path string, model T, seed uint64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	data, err := json.Marshal(modelFile[T]{
		Version:   modelFormatVersion,
		TrainedAt: time.Now().UTC(),
		Seed:      seed,
		Model:     model,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func load[T any](path string) (T, error) {
	var mf modelFile[T]
	data, err := os.ReadFile(path)
	if err != nil {
		return mf.Model, err
	}
	if err := json.Unmarshal(data, &mf); err != nil {
		return mf.Model, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if mf.Version != modelFormatVersion {
		return mf.Model, fmt.Errorf("%s: unsupported model version %d", filepath.Base(path), mf.Version)
	}
	return mf.Model, nil
}

// Models are the trained classifiers. Either may be nil when it could not be
// loaded; callers then get ErrClassifierUnavailable.
type Models struct {
	Weather *WeatherClassifier
	Image   *ImageClassifier
}

// Train fits both classifiers.
func Train(opts TrainOptions) (Models, error) {
	weather, err := TrainWeather(opts)
	if err != nil {
		return Models{}, err
	}
	img, err := TrainImage(opts)
	if err != nil {
		return Models{}, err
	}
	return Models{Weather: weather, Image: img}, nil
}

// Save writes both classifiers into dir.
func (m Models) Save(dir string, seed uint64) error {
	if m.Weather != nil {
		if err := save(filepath.Join(dir, WeatherModelFile), m.Weather, seed); err != nil {
			return err
		}
	}
	if m.Image != nil {
		if err := save(filepath.Join(dir, ImageModelFile), m.Image, seed); err != nil {
			return err
		}
	}
	return nil
}

// LoadOrTrain loads the classifiers from dir. A missing file is trained
// and saved when trainIfMissing is set, and otherwise left nil. A corrupt
// file is an error.
func LoadOrTrain(dir string, trainIfMissing bool, opts TrainOptions, logger *slog.Logger) (Models, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var models Models

	weatherPath := filepath.Join(dir, WeatherModelFile)
	weather, err := load[*WeatherClassifier](weatherPath)
	switch {
	case err == nil:
		models.Weather = weather
		logger.Info("loaded weather classifier", "path", weatherPath)
	case !errors.Is(err, fs.ErrNotExist):
		return Models{}, err
	case trainIfMissing:
		logger.Info("training weather classifier", "samples", opts.WeatherSamples, "seed", opts.Seed)
		if models.Weather, err = TrainWeather(opts); err != nil {
			return Models{}, err
		}
		if err := save(weatherPath, models.Weather, opts.Seed); err != nil {
			logger.Warn("failed to save weather classifier", "path", weatherPath, "error", err)
		}
	default:
		logger.Warn("weather classifier not found", "path", weatherPath)
	}

	imagePath := filepath.Join(dir, ImageModelFile)
	img, err := load[*ImageClassifier](imagePath)
	switch {
	case err == nil:
		models.Image = img
		logger.Info("loaded image classifier", "path", imagePath)
	case !errors.Is(err, fs.ErrNotExist):
		return Models{}, err
	case trainIfMissing:
		logger.Info("training image classifier", "images_per_class", opts.ImagesPerClass, "seed", opts.Seed)
		if models.Image, err = TrainImage(opts); err != nil {
			return Models{}, err
		}
		if err := save(imagePath, models.Image, opts.Seed); err != nil {
			logger.Warn("failed to save image classifier", "path", imagePath, "error", err)
		}
	default:
		logger.Warn("image classifier not found", "path", imagePath)
	}

	return models, nil
}

// Status reports "healthy" or "not_loaded" for each classifier.
func (m Models) Status() (weather, image string) {
	weather, image = "not_loaded", "not_loaded"
	if m.Weather != nil && m.Weather.Model != nil {
		weather = "healthy"
	}
	if m.Image != nil && m.Image.Model != nil {
		image = "healthy"
	}
	return weather, image
}
