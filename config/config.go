package config

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config drives `vidtool serve`. JPEGQuality, Label and LogLevel take effect
// on reload; the other fields are read once at startup.
type Config struct {
	// Source is a video file path or a capture device index.
	Source string `json:"source" yaml:"source"`
	Port   int    `json:"port" yaml:"port"`

	// Loop restarts file sources at the end.
	Loop bool `json:"loop" yaml:"loop"`

	// MaxFPS caps the MJPEG stream rate. Zero streams at the source rate.
	MaxFPS float64 `json:"max_fps" yaml:"max_fps"`

	JPEGQuality int `json:"jpeg_quality" yaml:"jpeg_quality"`

	// Label draws the frame index on streamed frames.
	Label bool `json:"label" yaml:"label"`

	LogLevel string `json:"log_level" yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		Port:        8080,
		Loop:        true,
		JPEGQuality: 80,
		LogLevel:    "info",
	}
}

func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.New("config: source is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("config: invalid port %d", c.Port)
	}
	if c.MaxFPS < 0 {
		return errors.Errorf("config: max_fps must not be negative, got %v", c.MaxFPS)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.Errorf("config: jpeg_quality must be within [1, 100], got %d", c.JPEGQuality)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "config")
	}
	return nil
}
