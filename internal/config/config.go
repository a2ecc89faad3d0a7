// Package config loads service configuration from a YAML file with
// environment overrides.
//
// .env files are loaded first: ENV_FILE if set, otherwise .env.local then
// .env. Fields tagged `env:"KISAN_*"` are then overridden from the
// environment. A missing config file is not an error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yml"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Data     DataConfig     `yaml:"data"`
	Models   ModelsConfig   `yaml:"models"`
	Risk     RiskConfig     `yaml:"risk"`
	Image    ImageConfig    `yaml:"image"`
	Weather  WeatherConfig  `yaml:"weather"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"KISAN_SERVER_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"KISAN_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"KISAN_SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"KISAN_SERVER_SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowed_origins"  env:"KISAN_SERVER_ALLOWED_ORIGINS"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"KISAN_LOG_LEVEL"`
	Format string `yaml:"format" env:"KISAN_LOG_FORMAT"`
}

// DataConfig locates the data files. Empty table paths use the embedded
// disease catalog and condition models.
type DataConfig struct {
	DistrictsFile  string `yaml:"districts_file"  env:"KISAN_DISTRICTS_FILE"`
	DiseasesFile   string `yaml:"diseases_file"   env:"KISAN_DISEASES_FILE"`
	ConditionsFile string `yaml:"conditions_file" env:"KISAN_CONDITIONS_FILE"`
}

type ModelsConfig struct {
	Dir            string `yaml:"dir"              env:"KISAN_MODELS_DIR"`
	TrainIfMissing bool   `yaml:"train_if_missing" env:"KISAN_MODELS_TRAIN_IF_MISSING"`
	Seed           uint64 `yaml:"seed"             env:"KISAN_MODELS_SEED"`
	WeatherSamples int    `yaml:"weather_samples"  env:"KISAN_MODELS_WEATHER_SAMPLES"`
	ImagesPerClass int    `yaml:"images_per_class" env:"KISAN_MODELS_IMAGES_PER_CLASS"`
}

type RiskConfig struct {
	DefaultHorizonDays int `yaml:"default_horizon_days" env:"KISAN_RISK_DEFAULT_HORIZON_DAYS"`
}

type ImageConfig struct {
	MaxUploadBytes int64   `yaml:"max_upload_bytes" env:"KISAN_IMAGE_MAX_UPLOAD_BYTES"`
	RatePerSecond  float64 `yaml:"rate_per_second"  env:"KISAN_IMAGE_RATE_PER_SECOND"`
	Burst          int     `yaml:"burst"            env:"KISAN_IMAGE_BURST"`
}

type WeatherConfig struct {
	Enabled       bool          `yaml:"enabled"        env:"KISAN_WEATHER_ENABLED"`
	BaseURL       string        `yaml:"base_url"       env:"KISAN_WEATHER_BASE_URL"`
	Timeout       time.Duration `yaml:"timeout"        env:"KISAN_WEATHER_TIMEOUT"`
	CacheTTL      time.Duration `yaml:"cache_ttl"      env:"KISAN_WEATHER_CACHE_TTL"`
	WarmDistricts []string      `yaml:"warm_districts" env:"KISAN_WEATHER_WARM_DISTRICTS"`
}

type RedisConfig struct {
	Address  string `yaml:"address"  env:"KISAN_REDIS_ADDRESS"`
	Password string `yaml:"password" env:"KISAN_REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"KISAN_REDIS_DB"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"            env:"KISAN_DATABASE_URL"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"KISAN_DATABASE_MAX_OPEN_CONNS"`
}

// Path returns CONFIG_PATH or the default.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads path, applies defaults and environment overrides, then
// validates the result.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Data.DistrictsFile == "" {
		c.Data.DistrictsFile = "data/districts.json"
	}
	if c.Models.Dir == "" {
		c.Models.Dir = "models"
	}
	if c.Models.Seed == 0 {
		c.Models.Seed = 42
	}
	if c.Models.WeatherSamples == 0 {
		c.Models.WeatherSamples = 1000
	}
	if c.Models.ImagesPerClass == 0 {
		c.Models.ImagesPerClass = 40
	}
	if c.Risk.DefaultHorizonDays == 0 {
		c.Risk.DefaultHorizonDays = 14
	}
	if c.Image.MaxUploadBytes == 0 {
		c.Image.MaxUploadBytes = 10 << 20
	}
	if c.Image.RatePerSecond == 0 {
		c.Image.RatePerSecond = 5
	}
	if c.Image.Burst == 0 {
		c.Image.Burst = 10
	}
	if c.Weather.Timeout == 0 {
		c.Weather.Timeout = 10 * time.Second
	}
	if c.Weather.CacheTTL == 0 {
		c.Weather.CacheTTL = 30 * time.Minute
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
}
