package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProbeConfig holds configuration for the probe binary, a simulated
// analyzer device that publishes readings over MQTT.
type ProbeConfig struct {
	Probe   ProbeSettings `yaml:"probe"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Buffer  BufferConfig  `yaml:"buffer"`
	Logging LoggingConfig `yaml:"logging"`
}

// ProbeSettings contains probe-specific settings.
type ProbeSettings struct {
	SensorID        string        `yaml:"sensor_id"`
	ThingID         string        `yaml:"thing_id"`
	PublishInterval time.Duration `yaml:"publish_interval"`
}

// BufferConfig contains settings for the reading buffer used while the
// broker is unreachable.
type BufferConfig struct {
	Size       int  `yaml:"size"`
	DropOldest bool `yaml:"drop_oldest"`
}

// LoadProbeConfig loads probe configuration from a YAML file.
func LoadProbeConfig(path string) (*ProbeConfig, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config ProbeConfig
	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	config.OverrideFromEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// ApplyDefaults sets default values for any unset fields.
func (pc *ProbeConfig) ApplyDefaults() {
	if pc.Probe.PublishInterval == 0 {
		pc.Probe.PublishInterval = 30 * time.Second
	}
	if pc.MQTT.ClientID == "" {
		pc.MQTT.ClientID = "buffet-probe-" + pc.Probe.SensorID
	}
	if pc.MQTT.QoS == 0 {
		pc.MQTT.QoS = 1
	}
	if pc.MQTT.TopicPrefix == "" {
		pc.MQTT.TopicPrefix = "buffet"
	}
	if pc.MQTT.Timeout == 0 {
		pc.MQTT.Timeout = 10 * time.Second
	}
	if pc.Buffer.Size == 0 {
		pc.Buffer.Size = 1000
		pc.Buffer.DropOldest = true
	}
	if pc.Logging.Level == "" {
		pc.Logging.Level = "info"
	}
	if pc.Logging.Format == "" {
		pc.Logging.Format = "json"
	}
}

// OverrideFromEnv overrides config values from environment variables.
func (pc *ProbeConfig) OverrideFromEnv() {
	if v := os.Getenv("PROBE_SENSOR_ID"); v != "" {
		pc.Probe.SensorID = v
	}
	if v := os.Getenv("PROBE_THING_ID"); v != "" {
		pc.Probe.ThingID = v
	}
	if v := os.Getenv("MQTT_BROKER_URL"); v != "" {
		pc.MQTT.BrokerURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		pc.Logging.Level = v
	}
}

// Validate checks if the configuration is valid.
func (pc *ProbeConfig) Validate() error {
	if pc.Probe.SensorID == "" {
		return fmt.Errorf("probe sensor id is required")
	}
	if pc.Probe.ThingID == "" {
		return fmt.Errorf("probe thing id is required")
	}
	if pc.MQTT.BrokerURL == "" {
		return fmt.Errorf("MQTT broker URL is required")
	}
	if pc.Probe.PublishInterval < 1*time.Second {
		return fmt.Errorf("publish interval must be at least 1 second")
	}
	if pc.Buffer.Size < 10 || pc.Buffer.Size > 100000 {
		return fmt.Errorf("buffer size must be between 10 and 100000")
	}
	return nil
}
