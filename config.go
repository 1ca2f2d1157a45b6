package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"gocheckin/authz"
	"gocheckin/device"
	"gocheckin/indicator"
	"gocheckin/mqtt"
	"gocheckin/reader"
)

// Config is the main configuration structure for gocheckin.
type Config struct {
	// Serial link to the SL500 reader
	Device device.Config `yaml:"device"`

	// Card reader configuration
	Reader reader.Config `yaml:"reader"`

	// Auxiliary feedback sinks
	Indicator indicator.Config `yaml:"indicator"`

	// Authorization endpoint HTTP settings; the URL itself comes from the
	// license file
	Authz authz.Config `yaml:"authz"`

	// MQTT event publishing
	MQTT mqtt.Config `yaml:"mqtt"`

	// General settings
	ClientID    string `yaml:"client_id"`
	LicenseFile string `yaml:"license_file"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // "text" or "json"
}

// loadConfig reads path. A missing file is not an error when it is the
// default path; the terminal then runs on defaults.
func loadConfig(path string, required bool) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case os.IsNotExist(err) && !required:
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Device.Port == "" && (c.Reader.Type == "" || c.Reader.Type == "sl500") {
		c.Device.Port = "/dev/ttyUSB0"
	}
	if c.Device.Baud == 0 {
		c.Device.Baud = 19200
	}
	if c.Device.FastBaud == 0 {
		c.Device.FastBaud = 115200
	}
	if c.Device.Timeout == 0 {
		c.Device.Timeout = time.Second
	}
	if c.Authz.Timeout == 0 {
		c.Authz.Timeout = 10 * time.Second
	}
	if c.LicenseFile == "" {
		c.LicenseFile = "license/RFIDLicense.txt"
	}
	if c.ClientID == "" {
		if host, err := os.Hostname(); err == nil {
			c.ClientID = host
		} else {
			c.ClientID = "gocheckin"
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
