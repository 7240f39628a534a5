// Package config loads server settings from defaults, an optional YAML file
// and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfigFile = "IMAGE_FEATURES_CONFIG"
	EnvLogLevel   = "IMAGE_FEATURES_LOG_LEVEL"
	EnvBackend    = "IMAGE_FEATURES_BACKEND"
	EnvOutput     = "IMAGE_FEATURES_OUTPUT"
	EnvMaxDisplay = "IMAGE_FEATURES_MAX_DISPLAY"
	EnvCacheTTL   = "IMAGE_FEATURES_CACHE_TTL"
	EnvHighlight  = "IMAGE_FEATURES_HIGHLIGHT"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the server settings.
type Config struct {
	// LogLevel is "info" or "debug". Debug enables per-request logging.
	LogLevel string `yaml:"log_level"`

	// Backend names the feature backend used for SIFT and ORB.
	Backend string `yaml:"backend"`

	// OutputPath is where features_save writes the match composite.
	OutputPath string `yaml:"output_path"`

	// MaxDisplayMatches caps how many matches are drawn and listed.
	MaxDisplayMatches int `yaml:"max_display_matches"`

	// CacheTTL is how long decoded images stay cached.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// HighlightColor is the "#RRGGBB" colour Harris paints over corners.
	HighlightColor string `yaml:"highlight_color"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:          "info",
		Backend:           "native",
		OutputPath:        "matched_image.png",
		MaxDisplayMatches: 50,
		CacheTTL:          10 * time.Minute,
		HighlightColor:    "#FF0000",
	}
}

// Load builds the configuration from defaults, the YAML file named by
// IMAGE_FEATURES_CONFIG (if set) and the IMAGE_FEATURES_* variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads path over the defaults without consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.LogLevel = getEnv(EnvLogLevel, c.LogLevel)
	c.Backend = getEnv(EnvBackend, c.Backend)
	c.OutputPath = getEnv(EnvOutput, c.OutputPath)
	c.HighlightColor = getEnv(EnvHighlight, c.HighlightColor)

	if v := os.Getenv(EnvMaxDisplay); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvMaxDisplay, v, err)
		}
		c.MaxDisplayMatches = n
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvCacheTTL, v, err)
		}
		c.CacheTTL = d
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Validate checks value ranges and normalizes LogLevel to lower case.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "info", "debug":
	default:
		return fmt.Errorf("%w: log_level %q (want info or debug)", ErrInvalidConfig, c.LogLevel)
	}
	if c.Backend == "" {
		return fmt.Errorf("%w: backend is empty", ErrInvalidConfig)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("%w: output_path is empty", ErrInvalidConfig)
	}
	if c.MaxDisplayMatches <= 0 {
		return fmt.Errorf("%w: max_display_matches must be positive, got %d", ErrInvalidConfig, c.MaxDisplayMatches)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache_ttl must be positive, got %s", ErrInvalidConfig, c.CacheTTL)
	}
	if _, err := c.Highlight(); err != nil {
		return err
	}
	return nil
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

// Highlight parses HighlightColor.
func (c *Config) Highlight() (color.NRGBA, error) {
	parsed, err := colorful.Hex(c.HighlightColor)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: highlight_color %q: %v", ErrInvalidConfig, c.HighlightColor, err)
	}
	r, g, b := parsed.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
