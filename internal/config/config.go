// Package config manages the tracer daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables layered over built-in
// defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete tracerd configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Tracer   TracerConfig   `koanf:"tracer"`
	Scenario ScenarioConfig `koanf:"scenario"`
}

// HTTPConfig holds the driver's exported-operations HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address (e.g., ":8080").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// TracerConfig holds the graph's runtime caps, replacing the original
// implementation's compile-time MAX_STATE constant (spec.md §9).
type TracerConfig struct {
	// MaxStates is the hard cap on state count (0 = unbounded).
	MaxStates int `koanf:"max_states"`
	// MaxFinalStates is the hard cap on the final-state fast-lookup list
	// (0 = unbounded).
	MaxFinalStates int `koanf:"max_final_states"`
}

// ScenarioConfig points at the YAML scenario file describing the topology
// and seed events used to bootstrap the root state.
type ScenarioConfig struct {
	// Path is the filesystem path to the scenario file.
	Path string `koanf:"path"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracer: TracerConfig{
			MaxStates:      1_000_000,
			MaxFinalStates: 100,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for tracerd configuration.
// Variables are named TRACERD_<section>_<key>, e.g., TRACERD_HTTP_ADDR.
const envPrefix = "TRACERD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (TRACERD_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	TRACERD_HTTP_ADDR        -> http.addr
//	TRACERD_METRICS_ADDR     -> metrics.addr
//	TRACERD_METRICS_PATH     -> metrics.path
//	TRACERD_LOG_LEVEL        -> log.level
//	TRACERD_LOG_FORMAT       -> log.format
//	TRACERD_TRACER_MAX_STATES -> tracer.max_states
//	TRACERD_TRACER_MAX_FINAL_STATES -> tracer.max_final_states
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms TRACERD_TRACER_MAX_STATES -> tracer.max_states.
// Strips the TRACERD_ prefix, lowercases, and replaces only the first _
// (the section/key separator) with ., leaving any remaining underscores in
// the key itself intact so multi-word keys like max_states and
// max_final_states still match their koanf tags.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)

	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"http.addr":               defaults.HTTP.Addr,
		"metrics.addr":            defaults.Metrics.Addr,
		"metrics.path":            defaults.Metrics.Path,
		"log.level":               defaults.Log.Level,
		"log.format":              defaults.Log.Format,
		"tracer.max_states":       defaults.Tracer.MaxStates,
		"tracer.max_final_states": defaults.Tracer.MaxFinalStates,
		"scenario.path":           defaults.Scenario.Path,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyHTTPAddr indicates the HTTP listen address is empty.
	ErrEmptyHTTPAddr = errors.New("http.addr must not be empty")

	// ErrNegativeMaxStates indicates tracer.max_states is negative.
	ErrNegativeMaxStates = errors.New("tracer.max_states must be >= 0")

	// ErrNegativeMaxFinalStates indicates tracer.max_final_states is negative.
	ErrNegativeMaxFinalStates = errors.New("tracer.max_final_states must be >= 0")

	// ErrEmptyScenarioPath indicates no scenario file was configured.
	ErrEmptyScenarioPath = errors.New("scenario.path must not be empty")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.HTTP.Addr == "" {
		return ErrEmptyHTTPAddr
	}

	if cfg.Tracer.MaxStates < 0 {
		return ErrNegativeMaxStates
	}

	if cfg.Tracer.MaxFinalStates < 0 {
		return ErrNegativeMaxFinalStates
	}

	if cfg.Scenario.Path == "" {
		return ErrEmptyScenarioPath
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
