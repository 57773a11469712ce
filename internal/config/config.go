// Package config handles loading and parsing the application's configuration.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

const appName = "sharedvars"

// Config holds all configuration for the application.
type Config struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	Journal         string   `toml:"journal"`      // Audit journal path, empty disables it
	MetricsAddr     string   `toml:"metrics_addr"` // Address for /metrics and /healthz, empty disables it
	LogLevel        string   `toml:"log_level"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"` // Bounded wait before force-closing the listener
}

// Duration decodes TOML strings such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// New returns a new Config with default values.
func New() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            8720,
		LogLevel:        "info",
		ShutdownTimeout: Duration{5 * time.Second},
	}
}

// Load reads a configuration file from the given path and populates the Config struct.
func (c *Config) Load(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ShutdownTimeout.Duration < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative")
	}
	return nil
}

// Addr is the listen address for the variable server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultPath returns the config file location under the XDG config home,
// e.g. ~/.config/sharedvars/config.toml. An existing file in any XDG config
// directory takes precedence.
func DefaultPath() string {
	if p, err := xdg.SearchConfigFile(appName + "/config.toml"); err == nil {
		return p
	}
	return filepath.Join(xdg.ConfigHome, appName, "config.toml")
}
