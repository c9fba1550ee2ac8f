// Package config defines the runtime configuration shared by every devicectl binary.
//
// Precedence order (highest wins):
//  1. command line flags (flags.go)
//  2. DEVICECTL_* environment variables (env.go)
//  3. the YAML config file
//  4. Default()
package config

import (
	"dancavallaro.com/devicectl/pkg/capture"
	"dancavallaro.com/devicectl/pkg/commands"
	"dancavallaro.com/devicectl/pkg/dispatch"
	"dancavallaro.com/devicectl/pkg/serialport"
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"time"
)

type Config struct {
	Serial      SerialConfig   `yaml:"serial"`
	Dispatch    DispatchConfig `yaml:"dispatch"`
	Capture     CaptureConfig  `yaml:"capture"`
	Modes       []ModeConfig   `yaml:"modes"`
	DefaultMode string         `yaml:"default_mode"`
	MQTT        MQTTConfig     `yaml:"mqtt"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

// SerialConfig is the port commands are sent to.
type SerialConfig struct {
	Port    string        `yaml:"port"`
	Baud    int           `yaml:"baud"`
	Timeout time.Duration `yaml:"timeout"`
}

type DispatchConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay"`
	DrainDelay  time.Duration `yaml:"drain_delay"`
	StrictStop  bool          `yaml:"strict_stop"`
}

// CaptureConfig is the port device output is read from. It may be the same device
// as Serial.Port, in which case capture and dispatch take turns.
type CaptureConfig struct {
	Port         string        `yaml:"port"`
	Baud         int           `yaml:"baud"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LogDir       string        `yaml:"log_dir"`
	FilePrefix   string        `yaml:"file_prefix"`
	Console      bool          `yaml:"console"`
}

type ModeConfig struct {
	ID    string `yaml:"id"`
	Start string `yaml:"start"`
	Stop  string `yaml:"stop"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	DeviceID    string `yaml:"device_id"`
}

func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

type MetricsConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Region    string        `yaml:"region"`
	Namespace string        `yaml:"namespace"`
	Dimension string        `yaml:"dimension"`
	Interval  time.Duration `yaml:"interval"`
}

func Default() *Config {
	cfg := &Config{
		Serial: SerialConfig{
			Port:    "/dev/ttyUSB0",
			Baud:    serialport.DefaultBaud,
			Timeout: dispatch.DefaultTimeout,
		},
		Dispatch: DispatchConfig{
			SettleDelay: dispatch.DefaultSettleDelay,
			DrainDelay:  dispatch.DefaultDrainDelay,
		},
		Capture: CaptureConfig{
			Port:         "/dev/ttyS0",
			Baud:         serialport.DefaultBaud,
			ReadTimeout:  capture.DefaultReadTimeout,
			PollInterval: capture.DefaultPollInterval,
			LogDir:       capture.DefaultLogDir,
			FilePrefix:   capture.DefaultFilePrefix,
		},
		DefaultMode: commands.DefaultModeID,
		MQTT: MQTTConfig{
			TopicPrefix: "device",
			DeviceID:    "xirgo",
		},
		Metrics: MetricsConfig{
			Region:    "us-east-1",
			Namespace: "Devicectl",
			Dimension: "Device",
			Interval:  time.Minute,
		},
	}
	for _, m := range commands.DefaultModes() {
		cfg.Modes = append(cfg.Modes, ModeConfig{ID: m.ID, Start: m.Start, Stop: m.Stop})
	}
	return cfg
}

// Load reads a YAML file over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: %s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	return msg + ": " + e.Message
}

func (c *Config) Validate() error {
	switch {
	case c.Serial.Port == "":
		return &ConfigError{Field: "serial.port", Message: "is required"}
	case c.Serial.Baud <= 0:
		return &ConfigError{Field: "serial.baud", Value: c.Serial.Baud, Message: "must be positive"}
	case c.Serial.Timeout <= 0:
		return &ConfigError{Field: "serial.timeout", Value: c.Serial.Timeout, Message: "must be positive"}
	case c.Dispatch.SettleDelay < 0:
		return &ConfigError{Field: "dispatch.settle_delay", Value: c.Dispatch.SettleDelay, Message: "must not be negative"}
	case c.Dispatch.DrainDelay < 0:
		return &ConfigError{Field: "dispatch.drain_delay", Value: c.Dispatch.DrainDelay, Message: "must not be negative"}
	case c.Capture.Baud <= 0:
		return &ConfigError{Field: "capture.baud", Value: c.Capture.Baud, Message: "must be positive"}
	case c.Capture.PollInterval <= 0:
		return &ConfigError{Field: "capture.poll_interval", Value: c.Capture.PollInterval, Message: "must be positive"}
	case c.Metrics.Enabled && c.Metrics.Namespace == "":
		return &ConfigError{Field: "metrics.namespace", Message: "is required when metrics are enabled"}
	case c.Metrics.Enabled && c.Metrics.Interval <= 0:
		return &ConfigError{Field: "metrics.interval", Value: c.Metrics.Interval, Message: "must be positive when metrics are enabled"}
	}

	table, err := c.Table()
	if err != nil {
		return &ConfigError{Field: "modes", Message: err.Error()}
	}
	if _, err := table.Lookup(c.DefaultMode); err != nil {
		var notFound *commands.NotFoundError
		if errors.As(err, &notFound) {
			return &ConfigError{Field: "default_mode", Value: c.DefaultMode, Message: "is not in the mode table"}
		}
		return err
	}
	return nil
}

func (c *Config) Table() (*commands.Table, error) {
	modes := make([]commands.Mode, len(c.Modes))
	for i, m := range c.Modes {
		modes[i] = commands.Mode{ID: m.ID, Start: m.Start, Stop: m.Stop}
	}
	return commands.NewTable(modes...)
}

func (c *Config) ForDispatch() dispatch.Config {
	return dispatch.Config{
		Port:        c.Serial.Port,
		Baud:        c.Serial.Baud,
		Timeout:     c.Serial.Timeout,
		SettleDelay: c.Dispatch.SettleDelay,
		DrainDelay:  c.Dispatch.DrainDelay,
	}
}

func (c *Config) ForCapture() capture.Config {
	return capture.Config{
		Port:         c.Capture.Port,
		Baud:         c.Capture.Baud,
		ReadTimeout:  c.Capture.ReadTimeout,
		PollInterval: c.Capture.PollInterval,
	}
}

// SharedPort reports whether capture and dispatch use the same device and therefore
// have to take turns holding it open.
func (c *Config) SharedPort() bool {
	return c.Capture.Port == c.Serial.Port
}
