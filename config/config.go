// Package config loads the service configuration from the environment.
package config

import (
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Prefix is the environment prefix of every setting, e.g.
// FRAGMENT_WINDOW_HTTP_ADDR.
const Prefix = "fragment_window"

// Bus names accepted by Config.Bus.
const (
	BusLocal = "local"
	BusRedis = "redis"
)

// Config is the service configuration.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	Env      string `envconfig:"ENV" default:"dev"`

	Log   Log
	Redis Redis

	// Bus selects where session events are published: local or redis.
	Bus string `envconfig:"BUS" default:"local"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

// Log configures the service logger. Its settings are read from
// FRAGMENT_WINDOW_LOG_*.
type Log struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"text"`
}

// Redis configures the redis event bus. Its settings are read from
// FRAGMENT_WINDOW_REDIS_*.
type Redis struct {
	Addr          string `envconfig:"ADDR" default:"127.0.0.1:6379"`
	DB            int    `envconfig:"DB"`
	Password      string `envconfig:"PASSWORD"`
	ChannelPrefix string `envconfig:"CHANNEL_PREFIX" default:"fragment-window"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "processing environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Bus) {
	case BusLocal, BusRedis:
	default:
		return errors.Errorf("unknown bus %q", c.Bus)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log level")
	}
	return nil
}

// Logger builds the logger described by l.
func (l Log) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	logger := logrus.New()
	logger.Out = os.Stderr
	logger.Level = level
	if strings.ToLower(l.Format) == "json" {
		logger.Formatter = &logrus.JSONFormatter{}
	}
	return logger, nil
}
