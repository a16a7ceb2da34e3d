// Package config loads the service configuration: defaults, then an optional
// TOML file, then environment variables. Command-line flags are applied last
// by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Panel    PanelConfig    `toml:"panel"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	DSN string `toml:"dsn"`
}

// PanelConfig tunes panel rendering and the save round trip.
type PanelConfig struct {
	ElementPrefix  string   `toml:"element_prefix"`
	SettleDelay    Duration `toml:"settle_delay"`
	Locale         string   `toml:"locale"`
	GatewayID      string   `toml:"gateway_id"`
	GatewayService string   `toml:"gateway_service"`
	// SchemaPath replaces the builtin panel definitions when set.
	SchemaPath string `toml:"schema_path"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Duration is a time.Duration written as "3s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{DSN: "file:bridgepanel.db?_pragma=busy_timeout(5000)"},
		Panel: PanelConfig{
			ElementPrefix:  "vbEzloBridge_",
			SettleDelay:    Duration{3 * time.Second},
			Locale:         "en",
			GatewayID:      "0",
			GatewayService: "urn:micasaverde-com:serviceId:HomeAutomationGateway1",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads path over the defaults and applies the environment. An empty
// path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		path = filepath.Clean(path)
		st, err := os.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("stat config: %w", err)
		case st.IsDir():
			return cfg, fmt.Errorf("config path is a directory: %s", path)
		default:
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Addr = ":" + v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is empty"))
	}
	if c.Panel.SettleDelay.Duration <= 0 {
		errs = append(errs, fmt.Errorf("panel.settle_delay must be positive, got %s", c.Panel.SettleDelay))
	}
	if strings.Contains(c.Panel.ElementPrefix, "-") {
		errs = append(errs, fmt.Errorf("panel.element_prefix %q must not contain '-'", c.Panel.ElementPrefix))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not json or console", c.Logging.Format))
	}
	return errors.Join(errs...)
}
