package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN    string `env:"DATABASE_DSN,required=true"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBMaxIdleConns int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	RedisURL       string `env:"REDIS_URL,required=true"`
	GatewayURL     string `env:"GATEWAY_URL,required=true"`
	GatewayAPIKey  string `env:"GATEWAY_API_KEY"`
	GatewaySession string `env:"GATEWAY_SESSION,default=default"`
	SelfNumber     string `env:"SELF_NUMBER"`
	APIPort        int    `env:"API_PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	EventsChannel  string `env:"EVENTS_CHANNEL,default=serverwpp:events"`
	PacingMinMs    int    `env:"PACING_MIN_MS,default=1000"`
	PacingMaxMs    int    `env:"PACING_MAX_MS,default=4000"`
	AutoReplyText  string `env:"AUTO_REPLY_TEXT"`
	ForwardNumber  string `env:"FORWARD_NUMBER"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PacingMinMs < 0 || c.PacingMaxMs < c.PacingMinMs {
		return fmt.Errorf("invalid pacing window: min=%d max=%d", c.PacingMinMs, c.PacingMaxMs)
	}
	if c.DBMaxOpenConns < 1 || c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		return fmt.Errorf("invalid db pool: open=%d idle=%d", c.DBMaxOpenConns, c.DBMaxIdleConns)
	}
	return nil
}
