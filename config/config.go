// Package config loads the map service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	HTTPAddr string `yaml:"http_addr" validate:"required"`
	GRPCAddr string `yaml:"grpc_addr" validate:"required"`

	// DataDir holds one directory of record snapshots per map.
	DataDir string `yaml:"data_dir" validate:"required"`
	Format  string `yaml:"format" validate:"oneof=zst nmap"`

	BucketSize     float64 `yaml:"bucket_size" validate:"gt=0,lte=100"`
	FocusThreshold float64 `yaml:"focus_threshold" validate:"gte=0,lte=100"`

	MaxSessions   int           `yaml:"max_sessions" validate:"min=1"`
	SessionTTL    time.Duration `yaml:"session_ttl" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:       ":8000",
		GRPCAddr:       ":50051",
		DataDir:        "data/maps",
		Format:         "zst",
		BucketSize:     1,
		FocusThreshold: 0.9,
		MaxSessions:    64,
		SessionTTL:     30 * time.Minute,
		SweepInterval:  5 * time.Minute,
		LogLevel:       "info",
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NADEMAP_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("NADEMAP_GRPC_ADDR"); v != "" {
		c.GRPCAddr = v
	}
	if v := os.Getenv("NADEMAP_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("NADEMAP_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
