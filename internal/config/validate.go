package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConfig = errors.New("invalid config")

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		add("log.format %q must be json or text", c.Log.Format)
	}
	if h := c.Risk.DefaultHorizonDays; h < 1 || h > 30 {
		add("risk.default_horizon_days %d must be within [1, 30]", h)
	}
	if c.Image.MaxUploadBytes < 0 {
		add("image.max_upload_bytes must not be negative")
	}
	if c.Image.RatePerSecond < 0 || c.Image.Burst < 0 {
		add("image.rate_per_second and image.burst must not be negative")
	}
	if c.Weather.CacheTTL < 0 {
		add("weather.cache_ttl must not be negative")
	}
	if c.Database.MaxOpenConns < 0 {
		add("database.max_open_conns must not be negative")
	}

	return errors.Join(errs...)
}
