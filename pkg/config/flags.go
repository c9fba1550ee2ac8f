package config

import (
	flag "github.com/spf13/pflag"
)

// Flags are the options every binary shares. Only flags given explicitly on the
// command line override the file and the environment.
type Flags struct {
	fs *flag.FlagSet

	path         string
	port         string
	baud         int
	capturePort  string
	logDir       string
	mode         string
	strictStop   bool
	mqttBroker   string
	mqttUsername string
	mqttPassword string
	deviceID     string
	metrics      bool
	region       string
}

func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.path, "config", "c", "", "YAML config file")
	fs.StringVarP(&f.port, "port", "p", "", "serial device commands are sent to")
	fs.IntVarP(&f.baud, "baud", "b", 0, "baud rate for the command port")
	fs.StringVar(&f.capturePort, "capture-port", "", "serial device to capture from")
	fs.StringVar(&f.logDir, "log-dir", "", "directory for capture log files")
	fs.StringVarP(&f.mode, "mode", "m", "", "mode selected at startup")
	fs.BoolVar(&f.strictStop, "strict-stop", false, "stay running when a stop command fails to send")
	fs.StringVar(&f.mqttBroker, "mqtt-address", "", "address:port of MQTT broker (disabled if empty)")
	fs.StringVar(&f.mqttUsername, "mqtt-username", "", "MQTT username")
	fs.StringVar(&f.mqttPassword, "mqtt-password", "", "MQTT password")
	fs.StringVar(&f.deviceID, "device-id", "", "device name used in MQTT topics and metrics")
	fs.BoolVar(&f.metrics, "metrics", false, "publish CloudWatch metrics")
	fs.StringVar(&f.region, "region", "", "CloudWatch region to use")
	return f
}

// Load builds the effective configuration after the flag set has been parsed.
func (f *Flags) Load() (*Config, error) {
	cfg, err := Load(f.path)
	if err != nil {
		return nil, err
	}
	LoadFromEnv(cfg)
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *Flags) apply(cfg *Config) {
	changed := f.fs.Changed
	if changed("port") {
		cfg.Serial.Port = f.port
	}
	if changed("baud") {
		cfg.Serial.Baud = f.baud
		cfg.Capture.Baud = f.baud
	}
	if changed("capture-port") {
		cfg.Capture.Port = f.capturePort
	}
	if changed("log-dir") {
		cfg.Capture.LogDir = f.logDir
	}
	if changed("mode") {
		cfg.DefaultMode = f.mode
	}
	if changed("strict-stop") {
		cfg.Dispatch.StrictStop = f.strictStop
	}
	if changed("mqtt-address") {
		cfg.MQTT.Broker = f.mqttBroker
	}
	if changed("mqtt-username") {
		cfg.MQTT.Username = f.mqttUsername
	}
	if changed("mqtt-password") {
		cfg.MQTT.Password = f.mqttPassword
	}
	if changed("device-id") {
		cfg.MQTT.DeviceID = f.deviceID
	}
	if changed("metrics") {
		cfg.Metrics.Enabled = f.metrics
	}
	if changed("region") {
		cfg.Metrics.Region = f.region
	}
}
