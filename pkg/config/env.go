package config

import (
	"os"
	"strconv"
	"strings"
)

// LoadFromEnv overlays DEVICECTL_* variables onto cfg. Only non-empty variables
// override. Booleans accept "1", "true" and "yes".
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("DEVICECTL_PORT"); v != "" {
		cfg.Serial.Port = v
	}
	if v := envInt("DEVICECTL_BAUD"); v > 0 {
		cfg.Serial.Baud = v
	}
	if v := os.Getenv("DEVICECTL_DEFAULT_MODE"); v != "" {
		cfg.DefaultMode = v
	}
	if envBool("DEVICECTL_STRICT_STOP") {
		cfg.Dispatch.StrictStop = true
	}

	// capture
	if v := os.Getenv("DEVICECTL_CAPTURE_PORT"); v != "" {
		cfg.Capture.Port = v
	}
	if v := envInt("DEVICECTL_CAPTURE_BAUD"); v > 0 {
		cfg.Capture.Baud = v
	}
	if v := os.Getenv("DEVICECTL_LOG_DIR"); v != "" {
		cfg.Capture.LogDir = v
	}

	// mqtt
	if v := os.Getenv("DEVICECTL_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("DEVICECTL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("DEVICECTL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("DEVICECTL_DEVICE_ID"); v != "" {
		cfg.MQTT.DeviceID = v
	}

	// metrics
	if envBool("DEVICECTL_METRICS") {
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("DEVICECTL_METRICS_REGION"); v != "" {
		cfg.Metrics.Region = v
	}
	if v := os.Getenv("DEVICECTL_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}
