package config

import (
	"errors"
	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.SettleDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Dispatch.DrainDelay)
	assert.Equal(t, "Xirgo_GPS", cfg.DefaultMode)
	assert.Len(t, cfg.Modes, 3)
	assert.False(t, cfg.SharedPort())
	assert.False(t, cfg.MQTT.Enabled())
}

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "devicectl.yml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud, "unset fields keep their defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.Serial.Timeout)
	assert.Equal(t, time.Second, cfg.Dispatch.SettleDelay)
	assert.True(t, cfg.Dispatch.StrictStop)
	assert.True(t, cfg.SharedPort())
	assert.Equal(t, "/var/log/xirgo", cfg.Capture.LogDir)
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, "bench-1", cfg.MQTT.DeviceID)

	table, err := cfg.Table()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, table.IDs())
	mode, err := table.Lookup("A")
	require.NoError(t, err)
	assert.Equal(t, "!xs\r\n", mode.Start)

	d := cfg.ForDispatch()
	assert.Equal(t, "/dev/ttyACM0", d.Port)
	assert.Equal(t, 50*time.Millisecond, d.DrainDelay)
	c := cfg.ForCapture()
	assert.Equal(t, 10*time.Millisecond, c.PollInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("serial: [oops"), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse")
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		field  string
	}{
		"no port":       {func(c *Config) { c.Serial.Port = "" }, "serial.port"},
		"zero baud":     {func(c *Config) { c.Serial.Baud = 0 }, "serial.baud"},
		"zero timeout":  {func(c *Config) { c.Serial.Timeout = 0 }, "serial.timeout"},
		"neg settle":    {func(c *Config) { c.Dispatch.SettleDelay = -1 }, "dispatch.settle_delay"},
		"neg drain":     {func(c *Config) { c.Dispatch.DrainDelay = -1 }, "dispatch.drain_delay"},
		"capture baud":  {func(c *Config) { c.Capture.Baud = 0 }, "capture.baud"},
		"poll interval": {func(c *Config) { c.Capture.PollInterval = 0 }, "capture.poll_interval"},
		"no namespace": {func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Namespace = ""
		}, "metrics.namespace"},
		"no interval": {func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Interval = 0
		}, "metrics.interval"},
		"bad command":  {func(c *Config) { c.Modes[0].Start = "!yde" }, "modes"},
		"no modes":     {func(c *Config) { c.Modes = nil }, "modes"},
		"unknown mode": {func(c *Config) { c.DefaultMode = "Xirgo_CAN" }, "default_mode"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			var cfgErr *ConfigError
			require.True(t, errors.As(cfg.Validate(), &cfgErr))
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Field: "serial.baud", Value: 0, Message: "must be positive"}
	assert.Equal(t, "config: serial.baud=0: must be positive", err.Error())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DEVICECTL_PORT", "/dev/ttyUSB3")
	t.Setenv("DEVICECTL_BAUD", "9600")
	t.Setenv("DEVICECTL_STRICT_STOP", "yes")
	t.Setenv("DEVICECTL_CAPTURE_PORT", "/dev/ttyUSB3")
	t.Setenv("DEVICECTL_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("DEVICECTL_METRICS", "1")
	t.Setenv("DEVICECTL_CAPTURE_BAUD", "not-a-number")

	cfg := Default()
	LoadFromEnv(cfg)
	assert.Equal(t, "/dev/ttyUSB3", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.Equal(t, 115200, cfg.Capture.Baud)
	assert.True(t, cfg.Dispatch.StrictStop)
	assert.True(t, cfg.SharedPort())
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestFlagsOverrideEnvAndFile(t *testing.T) {
	t.Setenv("DEVICECTL_PORT", "/dev/from-env")
	t.Setenv("DEVICECTL_DEFAULT_MODE", "A")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"-c", filepath.Join("testdata", "devicectl.yml"),
		"--port", "/dev/from-flag",
		"--baud", "57600",
	}))

	cfg, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "/dev/from-flag", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.Baud)
	assert.Equal(t, 57600, cfg.Capture.Baud)
	assert.Equal(t, "A", cfg.DefaultMode, "env beats the file")
	assert.Equal(t, "/dev/ttyACM0", cfg.Capture.Port, "file beats defaults")
}

func TestFlagsLoadValidates(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--mode", "nope"}))

	_, err := f.Load()
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "default_mode", cfgErr.Field)
}
