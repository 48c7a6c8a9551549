// Package config loads the velocity server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/internal/units"
)

// ErrDuplicateTrack is reported when two tracks share a name.
var ErrDuplicateTrack = errors.New("duplicate track name")

// ServerConfig contains listener addresses. HTTPAddr serves metrics, charts,
// the journal and replay streams; empty disables it.
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr" validate:"required,hostname_port"`
	HTTPAddr string `yaml:"http_addr" validate:"omitempty,hostname_port"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter" validate:"omitempty,oneof=stdout otlp otlpgrpc"`
	Endpoint    string  `yaml:"endpoint" validate:"omitempty,hostname_port"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// JournalConfig locates the SQLite query journal. An empty path disables
// journaling; relative paths resolve against the config file's directory.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// TrackConfig names one track file to serve.
type TrackConfig struct {
	Name       string `yaml:"name" validate:"required"`
	Path       string `yaml:"path" validate:"required"`
	MaxSamples int    `yaml:"max_samples" validate:"omitempty,gte=2"`
}

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server" validate:"required"`
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
	Journal JournalConfig `yaml:"journal"`
	Tracks  []TrackConfig `yaml:"tracks" validate:"required,min=1,dive"`
	// Units is the default speed unit for responses that do not ask for one.
	Units string `yaml:"units"`
}

// Default returns a configuration with every optional value filled in and no
// tracks.
func Default() Config {
	return Config{
		Server: ServerConfig{
			GRPCAddr: ":50061",
			HTTPAddr: ":9091",
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{
			ServiceName: "velocity-server",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
		Units: units.MPS,
	}
}

// Load reads and validates the YAML file at path. Values missing from the
// file keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	for i := range cfg.Tracks {
		if cfg.Tracks[i].MaxSamples == 0 {
			cfg.Tracks[i].MaxSamples = core.DefaultMaxSamples
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Units != "" && !units.IsValid(c.Units) {
		return fmt.Errorf("invalid config: units %q not one of %s", c.Units, units.ValidUnitsString())
	}
	seen := make(map[string]struct{}, len(c.Tracks))
	for _, tr := range c.Tracks {
		if _, dup := seen[tr.Name]; dup {
			return fmt.Errorf("invalid config: %w: %q", ErrDuplicateTrack, tr.Name)
		}
		seen[tr.Name] = struct{}{}
	}
	return nil
}
