// Package config loads the agent and CLI settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the file.
const (
	EnvBridgeAddress  = "HUE_TOYS_BRIDGE_ADDRESS"
	EnvBridgeUsername = "HUE_TOYS_BRIDGE_USERNAME"
	EnvLogLevel       = "HUE_TOYS_LOG_LEVEL"
)

// BridgeConfig - connection to the Hue bridge
type BridgeConfig struct {
	Address        string        `yaml:"address"`
	Username       string        `yaml:"username"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Retries        int           `yaml:"retries"`
	RetryWait      time.Duration `yaml:"retry_wait"`
}

// PipelineConfig - pacing of interactive updates
type PipelineConfig struct {
	MinInterval    time.Duration `yaml:"min_interval"`
	TransitionTime int           `yaml:"transition_time"`
	QueueSize      int           `yaml:"queue_size"`
}

// RestoreConfig - capture and restore of light states
type RestoreConfig struct {
	Retries        int           `yaml:"retries"`
	RetryWait      time.Duration `yaml:"retry_wait"`
	TransitionTime int           `yaml:"transition_time"`
	IncludeDefault bool          `yaml:"include_default"`
	// AfterPattern puts lights back once a pattern script ends.
	AfterPattern bool `yaml:"after_pattern"`
}

// MonitorConfig - restoring lights after a power loss
type MonitorConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Schedule   string `yaml:"schedule"`
	Individual bool   `yaml:"individual"`
	Lights     []int  `yaml:"lights,omitempty"`
}

// ServerConfig - HTTP and websocket server
type ServerConfig struct {
	Port           string   `yaml:"port"`
	WebFilesDir    string   `yaml:"web_files_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MQTTConfig - MQTT and Home Assistant discovery
type MQTTConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Broker             string `yaml:"broker"` // tcp://IP:PORT
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	ClientID           string `yaml:"client_id"`
	TopicPrefix        string `yaml:"topic_prefix"`
	HADiscoveryEnabled bool   `yaml:"ha_discovery_enabled"`
	HADiscoveryPrefix  string `yaml:"ha_discovery_prefix"`
}

// LogConfig - logging output
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config - top level structure
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Restore  RestoreConfig  `yaml:"restore"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Server   ServerConfig   `yaml:"server"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Log      LogConfig      `yaml:"log"`

	// File system settings
	PatternsDir   string `yaml:"patterns_dir"`
	SchedulesFile string `yaml:"schedules_file"`
}

// Default returns the configuration used when no file exists. Values for
// which zero is meaningful (retry counts, transition times) are only set
// here, so a file can still set them to zero.
func Default() *Config {
	cfg := &Config{
		Bridge:  BridgeConfig{Retries: 30},
		Restore: RestoreConfig{Retries: 5, TransitionTime: 4},
	}
	cfg.setDefaults()
	return cfg
}

// Load reads the file, decodes YAML over the defaults, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("[Config] %s not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode yaml '%s': %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.sanitize()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file '%s': %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBridgeAddress); v != "" {
		c.Bridge.Address = v
	}
	if v := os.Getenv(EnvBridgeUsername); v != "" {
		c.Bridge.Username = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) sanitize() {
	c.Bridge.Address = strings.TrimSpace(c.Bridge.Address)
	c.Bridge.Username = strings.TrimSpace(c.Bridge.Username)
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	c.Server.WebFilesDir = strings.TrimSpace(c.Server.WebFilesDir)
	c.Monitor.Schedule = strings.TrimSpace(c.Monitor.Schedule)
	c.PatternsDir = strings.TrimSpace(c.PatternsDir)
	c.SchedulesFile = strings.TrimSpace(c.SchedulesFile)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

func (c *Config) setDefaults() {
	// Bridge Defaults
	if c.Bridge.RequestTimeout == 0 {
		c.Bridge.RequestTimeout = 5 * time.Second
	}
	if c.Bridge.RetryWait == 0 {
		c.Bridge.RetryWait = time.Second
	}

	// Pipeline Defaults
	if c.Pipeline.MinInterval == 0 {
		c.Pipeline.MinInterval = 300 * time.Millisecond
	}

	// Restore Defaults
	if c.Restore.RetryWait == 0 {
		c.Restore.RetryWait = time.Second
	}

	// Monitor Defaults
	if c.Monitor.Schedule == "" {
		c.Monitor.Schedule = "@every 10s"
	}

	// Server Defaults
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WebFilesDir == "" {
		c.Server.WebFilesDir = "./web"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:8080"}
	}

	// File Defaults
	if c.PatternsDir == "" {
		c.PatternsDir = "patterns"
	}
	if c.SchedulesFile == "" {
		c.SchedulesFile = "schedules.json"
	}

	// MQTT Defaults
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "hue-toys"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "hue-toys"
	}
	if c.MQTT.HADiscoveryPrefix == "" {
		c.MQTT.HADiscoveryPrefix = "homeassistant"
	}

	// Log Defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Bridge.Retries >= 0, "'bridge.retries' must not be negative")
	check(c.Bridge.RetryWait >= 0, "'bridge.retry_wait' must not be negative")
	check(c.Bridge.RequestTimeout > 0, "'bridge.request_timeout' must be positive")
	check(c.Pipeline.MinInterval > 0, "'pipeline.min_interval' must be positive")
	check(c.Pipeline.TransitionTime >= 0, "'pipeline.transition_time' must not be negative")
	check(c.Pipeline.QueueSize >= 0, "'pipeline.queue_size' must not be negative")
	check(c.Restore.Retries >= 0, "'restore.retries' must not be negative")
	check(c.Restore.RetryWait >= 0, "'restore.retry_wait' must not be negative")
	check(c.Restore.TransitionTime >= 0, "'restore.transition_time' must not be negative")

	_, err := log.ParseLevel(c.Log.Level)
	check(err == nil, "'log.level' %q is not a log level", c.Log.Level)
	check(c.Log.Format == "text" || c.Log.Format == "json", "'log.format' must be text or json, got %q", c.Log.Format)

	return errors.Join(errs...)
}
