// Package config loads engine configuration.
//
// Sources are layered, later ones winning:
//  1. built-in defaults
//  2. an optional YAML file (unknown keys are rejected)
//  3. a .env file, which only fills variables not already in the environment
//  4. LOYALTY_* environment variables
//
// Command-line flags are applied on top by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/store"
)

// EnvPrefix prefixes every environment variable the engine reads.
const EnvPrefix = "LOYALTY_"

// Config is the complete engine configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" envPrefix:"DB_"`
	Invitation InvitationConfig `yaml:"invitation" envPrefix:"INVITATION_"`
	Card       CardConfig       `yaml:"card" envPrefix:"CARD_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envPrefix:"OTEL_"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	DSN    string `yaml:"dsn" env:"DSN"`
}

// InvitationConfig controls invitation lifetimes.
type InvitationConfig struct {
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// CardConfig controls newly provisioned reward cards.
type CardConfig struct {
	Tier   string `yaml:"tier" env:"TIER"`
	NodeID int64  `yaml:"node_id" env:"NODE_ID"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// TelemetryConfig controls trace export. An empty endpoint disables export.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: string(store.DriverSQLite),
			DSN:    "loyalty.db",
		},
		Invitation: InvitationConfig{TTL: 7 * 24 * time.Hour},
		Card: CardConfig{
			Tier:   model.DefaultTier,
			NodeID: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{ServiceName: "loyalty"},
	}
}

// LoadOptions names the files Load reads.
type LoadOptions struct {
	// ConfigPath is a YAML file. Empty skips the file.
	ConfigPath string
	// EnvFile is a dotenv file. Empty tries ".env" and ignores its absence;
	// a named file must exist.
	EnvFile string
}

// Load builds a validated Config from defaults, files and the environment.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	if opts.ConfigPath != "" {
		if err := loadYAML(opts.ConfigPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := loadDotenv(opts.EnvFile); err != nil {
		return Config{}, err
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadDotenv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Validate checks that every field holds a usable value.
func (c Config) Validate() error {
	var problems []string

	if _, err := store.ParseDriver(c.Database.Driver); err != nil {
		problems = append(problems, err.Error())
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		problems = append(problems, "database dsn is required")
	}
	if c.Invitation.TTL <= 0 {
		problems = append(problems, fmt.Sprintf("invitation ttl must be positive, got %s", c.Invitation.TTL))
	}
	if strings.TrimSpace(c.Card.Tier) == "" {
		problems = append(problems, "card tier is required")
	}
	if c.Card.NodeID < 0 || c.Card.NodeID > 1023 {
		problems = append(problems, fmt.Sprintf("card node_id must be in 0..1023, got %d", c.Card.NodeID))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log format must be text or json, got %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}
