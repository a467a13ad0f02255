// internal/conf/conf.go

// Package conf loads the configuration shared by the serialterm,
// serialbridge and serialmqtt commands: the connection settings, logging,
// and the per-daemon sections.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	serialhelper "github.com/rusminto/serial.helper"
	"github.com/rusminto/serial.helper/internal/logutil"
	"github.com/rusminto/serial.helper/parser"
)

// Config is the root of the file/environment configuration.
type Config struct {
	Serial  SerialSettings `mapstructure:"serial"`
	Logging logutil.Config `mapstructure:"logging"`
	Bridge  BridgeSettings `mapstructure:"bridge"`
	MQTT    MQTTSettings   `mapstructure:"mqtt"`
}

// SerialSettings carries the connection options under their configuration
// names. Unlike the library Config, the booleans here are positive; the
// defaults keep autoreconnect and autoopen on.
type SerialSettings struct {
	Port              string         `mapstructure:"port"`
	Baud              int            `mapstructure:"baud"`
	AutoReconnect     bool           `mapstructure:"autoreconnect"`
	ReconnectInterval time.Duration  `mapstructure:"reconnect_interval"`
	AutoOpen          bool           `mapstructure:"autoopen"`
	Debug             string         `mapstructure:"debug"`
	Parser            ParserSettings `mapstructure:"parser"`
	SoftReset         bool           `mapstructure:"soft_reset"`
	RequestTimeout    time.Duration  `mapstructure:"request_timeout"`
}

// ParserSettings selects and parameterizes the framing strategy.
type ParserSettings struct {
	Type      string        `mapstructure:"type"`
	Delimiter string        `mapstructure:"delimiter"`
	Interval  time.Duration `mapstructure:"interval"`
	Length    int           `mapstructure:"length"`
}

// BridgeSettings configures the serialbridge daemon.
type BridgeSettings struct {
	Listen          string        `mapstructure:"listen"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MQTTSettings configures the serialmqtt gateway.
type MQTTSettings struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	QoS            int           `mapstructure:"qos"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Load reads the configuration. When path is empty the default locations
// are searched and a missing file just leaves the defaults in place; an
// explicit path must exist. Environment variables override with the
// SERIALHELPER_ prefix, e.g. SERIALHELPER_SERIAL_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SERIALHELPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("serialhelper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/serialhelper")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults mirrors the documented option defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.autoreconnect", true)
	v.SetDefault("serial.reconnect_interval", "3s")
	v.SetDefault("serial.autoopen", true)
	v.SetDefault("serial.debug", "off")
	v.SetDefault("serial.parser.type", "line")
	v.SetDefault("serial.parser.delimiter", "\n")
	v.SetDefault("serial.parser.interval", "30ms")
	v.SetDefault("serial.parser.length", 1)
	v.SetDefault("serial.soft_reset", false)
	v.SetDefault("serial.request_timeout", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("bridge.listen", ":8084")
	v.SetDefault("bridge.allowed_origins", []string{"*"})
	v.SetDefault("bridge.shutdown_timeout", "10s")

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "serialmqtt")
	v.SetDefault("mqtt.topic_prefix", "serialhelper")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.keep_alive", "30s")
	v.SetDefault("mqtt.connect_timeout", "5s")
}

// validate rejects settings no command could run with.
func validate(cfg *Config) error {
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", cfg.Serial.Baud)
	}
	if cfg.Serial.ReconnectInterval < 0 {
		return fmt.Errorf("serial.reconnect_interval must not be negative")
	}
	if _, err := parser.ParseType(cfg.Serial.Parser.Type); err != nil {
		return fmt.Errorf("serial.parser.type: %w", err)
	}
	if _, err := serialhelper.ParseDebugLevel(cfg.Serial.Debug); err != nil {
		return fmt.Errorf("serial.debug: %w", err)
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}
	return nil
}

// Connection translates the serial section into a library Config. The
// positive autoreconnect/autoopen keys map onto the library's inverted
// zero-value flags here.
func (c *Config) Connection(logger *zap.Logger) (serialhelper.Config, error) {
	ptype, err := parser.ParseType(c.Serial.Parser.Type)
	if err != nil {
		return serialhelper.Config{}, err
	}
	debug, err := serialhelper.ParseDebugLevel(c.Serial.Debug)
	if err != nil {
		return serialhelper.Config{}, err
	}

	return serialhelper.Config{
		Port:              c.Serial.Port,
		Baud:              c.Serial.Baud,
		NoAutoReconnect:   !c.Serial.AutoReconnect,
		ReconnectInterval: c.Serial.ReconnectInterval,
		NoAutoOpen:        !c.Serial.AutoOpen,
		Debug:             debug,
		Parser: parser.Config{
			Type:      ptype,
			Delimiter: c.Serial.Parser.Delimiter,
			Interval:  c.Serial.Parser.Interval,
			Length:    c.Serial.Parser.Length,
		},
		SoftReset:      c.Serial.SoftReset,
		RequestTimeout: c.Serial.RequestTimeout,
		Logger:         logger,
	}, nil
}
