package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config contains all configuration for the viewer
type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Viewer  ViewerConfig  `mapstructure:"viewer" yaml:"viewer"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "json" or "console"
	Debug  bool   `mapstructure:"debug" yaml:"debug"`
}

// ViewerConfig contains the VNC connection configuration
type ViewerConfig struct {
	// Endpoint is a ws://, wss://, vnc:// URL or bare host:port
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// Shared requests shared access instead of kicking other clients
	Shared bool `mapstructure:"shared" yaml:"shared"`

	// ReconnectDelay between attempts after transport failure; 0 disables
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	MaxReconnects  int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`

	TLS TLSConfig `mapstructure:"tls" yaml:"tls"`
}

// TLSConfig contains TLS settings for native VNC connections
type TLSConfig struct {
	Enabled            bool `mapstructure:"enabled" yaml:"enabled"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// MetricsConfig contains the operational HTTP server settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// Load reads configuration from an optional YAML file and VNC_VIEWER_*
// environment variables. Environment variables override file values
// (e.g. VNC_VIEWER_VIEWER_PASSWORD overrides viewer.password).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("viewer.shared", true)
	v.SetDefault("viewer.reconnect_delay", 3*time.Second)
	v.SetDefault("viewer.max_reconnects", 0)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9091")

	v.SetEnvPrefix("VNC_VIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return &cfg, nil
}

// ConfigureZerolog applies the log configuration globally
func (c *LogConfig) ConfigureZerolog() {
	level := zerolog.InfoLevel
	if c.Debug {
		level = zerolog.DebugLevel
	} else {
		switch strings.ToLower(c.Level) {
		case "trace":
			level = zerolog.TraceLevel
		case "debug":
			level = zerolog.DebugLevel
		case "info":
			level = zerolog.InfoLevel
		case "warn", "warning":
			level = zerolog.WarnLevel
		case "error":
			level = zerolog.ErrorLevel
		case "fatal":
			level = zerolog.FatalLevel
		case "panic":
			level = zerolog.PanicLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	if strings.ToLower(c.Format) == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
