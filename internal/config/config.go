package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	QueueInline = "inline"
	QueueRedis  = "redis"
)

// service config, loaded from environment variables
type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	AppEnv string `env:"APP_ENV" envDefault:"production"`

	MongoURI string `env:"MONGO_URI"`
	MongoDB  string `env:"MONGO_DB" envDefault:"peerprep"`

	RedisAddr string `env:"REDIS_ADDR"`

	PrincipalDSN        string `env:"PRINCIPAL_DB_DSN"`
	PrincipalSQLitePath string `env:"PRINCIPAL_SQLITE_PATH" envDefault:"principals.db"`

	JWTSecret string `env:"JWT_SECRET"`

	ChatAPIKey    string `env:"CHAT_API_KEY"`
	ChatAPISecret string `env:"CHAT_API_SECRET"`
	ChatBaseURL   string `env:"CHAT_BASE_URL" envDefault:"https://chat.stream-io-api.com"`
	VideoBaseURL  string `env:"VIDEO_BASE_URL" envDefault:"https://video.stream-io-api.com"`

	BcryptCost           int  `env:"BCRYPT_COST" envDefault:"10"`
	AccessCodeFailClosed bool `env:"ACCESS_CODE_FAIL_CLOSED" envDefault:"false"`

	ChannelQueue      string   `env:"CHANNEL_QUEUE" envDefault:"inline"`
	ReconcileSchedule string   `env:"RECONCILE_SCHEDULE" envDefault:"@every 5m"`
	CORSOrigins       []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

// LoadConfig parses the environment and validates the result.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.ChannelQueue = strings.ToLower(strings.TrimSpace(cfg.ChannelQueue))
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ChatEnabled reports whether chat provider credentials are configured.
func (c *Config) ChatEnabled() bool {
	return c.ChatAPIKey != "" && c.ChatAPISecret != ""
}

func validateConfig(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch cfg.ChannelQueue {
	case QueueInline:
	case QueueRedis:
		if cfg.RedisAddr == "" {
			return errors.New("CHANNEL_QUEUE=redis requires REDIS_ADDR")
		}
	default:
		return errors.New("unsupported CHANNEL_QUEUE: " + cfg.ChannelQueue + ". Currently supported: inline, redis")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.BcryptCost)
	}
	return nil
}
