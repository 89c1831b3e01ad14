// Package config handles configuration loading and validation for formrelay.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Datagram DatagramConfig `yaml:"datagram"`
	Storage  StorageConfig  `yaml:"storage"`
	Static   StaticConfig   `yaml:"static"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// HTTPConfig configures the HTTP front door.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	Port            int           `yaml:"port"`
	MaxBody         string        `yaml:"max_body"`         // human size, e.g. "64KiB"
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // grace period for in-flight requests
}

// DatagramConfig configures the UDP relay between the front door and the
// receiver.
type DatagramConfig struct {
	Addr         string        `yaml:"addr"`
	Port         int           `yaml:"port"`
	BufferSize   int           `yaml:"buffer_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// StorageConfig configures the record document.
type StorageConfig struct {
	Path string `yaml:"path"`
	// InPlace rewrites the document directly instead of via temp file and
	// rename. An interrupted write can then truncate the document.
	InPlace bool `yaml:"in_place"`
}

// StaticConfig configures static asset serving.
type StaticConfig struct {
	// Dir serves assets from disk. Empty uses the embedded assets.
	Dir      string  `yaml:"dir"`
	Routes   []Route `yaml:"routes"`
	NotFound string  `yaml:"not_found"`
}

// Route maps a literal request path to an asset file.
type Route struct {
	Path string `yaml:"path"`
	File string `yaml:"file"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultRoutes is the built-in static route table.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/", File: "index.html"},
		{Path: "/message.html", File: "message.html"},
		{Path: "/logo.png", File: "logo.png"},
		{Path: "/style.css", File: "style.css"},
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1",
			Port:            5000,
			MaxBody:         "64KiB",
			ShutdownTimeout: 5 * time.Second,
		},
		Datagram: DatagramConfig{
			Addr:         "127.0.0.1",
			Port:         3000,
			BufferSize:   1024,
			PollInterval: time.Second,
		},
		Storage: StorageConfig{
			Path: "storage/data.json",
		},
		Static: StaticConfig{
			Routes:   DefaultRoutes(),
			NotFound: "error.html",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// Overrides are command line values that take precedence over the config
// file. Zero values are ignored.
type Overrides struct {
	HTTPAddr     string
	HTTPPort     int
	DatagramAddr string
	DatagramPort int
	StoragePath  string
}

// Read reads configuration from the given path and applies overrides. If
// configPath is empty or doesn't exist, returns defaults with overrides. The
// result is not validated; call Validate before acting on it.
func Read(configPath string, o Overrides) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyOverrides(o)
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyOverrides(o Overrides) {
	if o.HTTPAddr != "" {
		c.HTTP.Addr = o.HTTPAddr
	}
	if o.HTTPPort != 0 {
		c.HTTP.Port = o.HTTPPort
	}
	if o.DatagramAddr != "" {
		c.Datagram.Addr = o.DatagramAddr
	}
	if o.DatagramPort != 0 {
		c.Datagram.Port = o.DatagramPort
	}
	if o.StoragePath != "" {
		c.Storage.Path = o.StoragePath
	}
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.HTTP.MaxBody == "" {
		c.HTTP.MaxBody = defaults.HTTP.MaxBody
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = defaults.HTTP.ShutdownTimeout
	}
	if c.Datagram.BufferSize == 0 {
		c.Datagram.BufferSize = defaults.Datagram.BufferSize
	}
	if c.Datagram.PollInterval == 0 {
		c.Datagram.PollInterval = defaults.Datagram.PollInterval
	}
	if len(c.Static.Routes) == 0 {
		c.Static.Routes = defaults.Static.Routes
	}
	if c.Static.NotFound == "" {
		c.Static.NotFound = defaults.Static.NotFound
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaults.Metrics.Path
	}
}

// HTTPAddress returns the HTTP listen address as "host:port".
func (c *Config) HTTPAddress() string {
	return net.JoinHostPort(c.HTTP.Addr, strconv.Itoa(c.HTTP.Port))
}

// DatagramAddress returns the receiver address as "host:port".
func (c *Config) DatagramAddress() string {
	return net.JoinHostPort(c.Datagram.Addr, strconv.Itoa(c.Datagram.Port))
}

// MaxBodyBytes returns the parsed HTTP body limit.
func (c *Config) MaxBodyBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.HTTP.MaxBody)
	if err != nil {
		return 0, fmt.Errorf("parse max_body: %w", err)
	}
	return int64(n), nil
}
