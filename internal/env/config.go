package env

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidInterval = errors.New("SENSOR_INTERVAL must be between 1 and 65535")
)

type Config struct {
	SensorIP   string `env:"SENSOR_IP,default=127.0.0.1" yaml:"sensor_ip"`
	SensorPort int    `env:"SENSOR_PORT,default=2000" yaml:"sensor_port"`

	// Interval in milliseconds requested from the sensor on startup
	Interval uint16 `env:"SENSOR_INTERVAL,default=1000" yaml:"interval"`

	PollInterval time.Duration `env:"SENSOR_POLL_INTERVAL,default=100ms" yaml:"poll_interval"`
	DialTimeout  time.Duration `env:"SENSOR_DIAL_TIMEOUT,default=5s" yaml:"dial_timeout"`
	Reconnect    bool          `env:"SENSOR_RECONNECT,default=true" yaml:"reconnect"`

	// MQTTBroker is e.g. tcp://localhost:1883. Leave empty to disable MQTT.
	MQTTBroker      string `env:"SENSOR_MQTT_BROKER" yaml:"mqtt_broker"`
	MQTTClientID    string `env:"SENSOR_MQTT_CLIENT_ID,default=imubridge" yaml:"mqtt_client_id"`
	MQTTTopicPrefix string `env:"SENSOR_MQTT_TOPIC_PREFIX,default=/sensor" yaml:"mqtt_topic_prefix"`

	HTTPAddr  string `env:"SENSOR_HTTP_ADDR,default=0.0.0.0:7362" yaml:"http_addr"`
	DebugHTTP bool   `env:"SENSOR_DEBUG_HTTP" yaml:"debug_http"`

	LogLevel string `env:"SENSOR_LOG_LEVEL,default=info" yaml:"log_level"`
}

// Endpoint is the host:port of the sensor.
func (c *Config) Endpoint() string {
	return net.JoinHostPort(c.SensorIP, strconv.Itoa(c.SensorPort))
}

func (c *Config) Validate() error {
	if c.Interval == 0 {
		return ErrInvalidInterval
	}

	if c.SensorPort <= 0 || c.SensorPort > 65535 {
		return fmt.Errorf("SENSOR_PORT %d is out of range", c.SensorPort)
	}

	return nil
}

// LoadConfig reads .env.local (when present) and the environment. When
// paramsFile is not empty the keys it sets take precedence.
func LoadConfig(ctx context.Context, paramsFile string) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("Failed to load .env.local: %w", err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	if paramsFile != "" {
		if err := loadParams(paramsFile, &config); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// loadParams overlays the keys present in a YAML parameters file.
func loadParams(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Failed to read parameters file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("Failed to parse parameters file %s: %w", path, err)
	}

	return nil
}
