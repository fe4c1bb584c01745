package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the coordinator server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Actuator ActuatorConfig `yaml:"actuator"`
	Vision   VisionConfig   `yaml:"vision"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP exposition settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// StorageConfig contains the SQLite document store settings.
type StorageConfig struct {
	Path          string        `yaml:"path"`
	BatchSize     int           `yaml:"batch_size"`
	FlushPeriod   time.Duration `yaml:"flush_period"`
	ChannelSize   int           `yaml:"channel_size"`
	RetentionDays int           `yaml:"retention_days"`
	CleanupPeriod time.Duration `yaml:"cleanup_period"`
}

// MQTTConfig contains broker settings for the MQTT exposition surface.
type MQTTConfig struct {
	BrokerURL   string        `yaml:"broker_url"`
	ClientID    string        `yaml:"client_id"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	QoS         int           `yaml:"qos"`
	TopicPrefix string        `yaml:"topic_prefix"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SensorConfig locates the external sensor endpoint polled on
// currentSensorData reads.
type SensorConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ActuatorConfig locates the buffet actuator and the remote closeBuffet
// action invoked by the verdict pipeline.
type ActuatorConfig struct {
	BaseURL        string        `yaml:"base_url"`
	CloseActionURL string        `yaml:"close_action_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

// VisionConfig contains the vision-verdict service settings. The API
// key comes from the environment, never from the YAML file.
type VisionConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"-"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file. A .env file next to the
// process, if present, is loaded first so credentials can live outside
// the config file.
func Load(path string) (*Config, error) {
	// Missing .env is fine; env vars may be set by the environment.
	_ = godotenv.Load()

	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config Config
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
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 60 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./data/buffet-monitor.db"
	}
	if c.Storage.BatchSize == 0 {
		c.Storage.BatchSize = 100
	}
	if c.Storage.FlushPeriod == 0 {
		c.Storage.FlushPeriod = 5 * time.Second
	}
	if c.Storage.ChannelSize == 0 {
		c.Storage.ChannelSize = 1000
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = 30
	}
	if c.Storage.CleanupPeriod == 0 {
		c.Storage.CleanupPeriod = 1 * time.Hour
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "buffet-monitor-server"
	}
	if c.MQTT.QoS == 0 {
		c.MQTT.QoS = 1
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "buffet"
	}
	if c.MQTT.Timeout == 0 {
		c.MQTT.Timeout = 10 * time.Second
	}
	if c.Sensor.Timeout == 0 {
		c.Sensor.Timeout = 10 * time.Second
	}
	if c.Actuator.Timeout == 0 {
		c.Actuator.Timeout = 10 * time.Second
	}
	if c.Vision.BaseURL == "" {
		c.Vision.BaseURL = "https://api.openai.com/v1"
	}
	if c.Vision.Model == "" {
		c.Vision.Model = "gpt-4o"
	}
	if c.Vision.Timeout == 0 {
		c.Vision.Timeout = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// OverrideFromEnv overrides config values from environment variables.
// Only set variables take effect.
func (c *Config) OverrideFromEnv() {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("MQTT_BROKER_URL"); v != "" {
		c.MQTT.BrokerURL = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("SENSOR_BASE_URL"); v != "" {
		c.Sensor.BaseURL = v
	}
	if v := os.Getenv("ACTUATOR_BASE_URL"); v != "" {
		c.Actuator.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Vision.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Sensor.BaseURL == "" {
		return fmt.Errorf("sensor base URL is required")
	}
	if c.Actuator.BaseURL == "" {
		return fmt.Errorf("actuator base URL is required")
	}
	if !strings.HasPrefix(c.Vision.BaseURL, "http://") && !strings.HasPrefix(c.Vision.BaseURL, "https://") {
		return fmt.Errorf("vision base URL must be http or https")
	}
	if c.Storage.BatchSize < 1 {
		return fmt.Errorf("storage batch size must be at least 1")
	}
	if c.Storage.RetentionDays < 1 {
		return fmt.Errorf("retention days must be at least 1")
	}
	return nil
}

// String returns a safe string representation (hides credentials).
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: %+v, Storage: %+v, MQTT: [Broker=%s, ClientID=%s, User=%s], Sensor: %+v, Actuator: %+v, Vision: [URL=%s, Model=%s, Key=%s], Logging: %+v}",
		c.Server,
		c.Storage,
		c.MQTT.BrokerURL,
		c.MQTT.ClientID,
		c.MQTT.Username,
		c.Sensor,
		c.Actuator,
		c.Vision.BaseURL,
		c.Vision.Model,
		maskToken(c.Vision.APIKey),
		c.Logging,
	)
}

// maskToken masks all but first 4 characters of a token.
func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
