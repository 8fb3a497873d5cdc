package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

type Config struct {
	Port           string        `env:"PORT" envDefault:"8000"`
	Storage        string        `env:"STORAGE" envDefault:"mysql"`
	MySQLDSN       string        `env:"MYSQL_DSN"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	JWTSecret      string        `env:"JWT_SECRET,required"`
	JWTTTL         time.Duration `env:"JWT_TTL" envDefault:"1h"`
	CORSOrigins    []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	AdminAddresses []string      `env:"ADMIN_ADDRESSES" envSeparator:","`
	RateLimit      int           `env:"RATE_LIMIT" envDefault:"30"`
	RateWindow     time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
	TLSCert        string        `env:"TLS_CERT"`
	TLSKey         string        `env:"TLS_KEY"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`
	FrontendURL    string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	DiscordToken   string        `env:"DISCORD_TOKEN"`
	DiscordChannel string        `env:"DISCORD_CHANNEL_ID"`
}

// Load reads optional .env files and then the environment. Variables that
// are already set are not overridden by a file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Storage {
	case StorageMySQL:
		if strings.TrimSpace(c.MySQLDSN) == "" {
			return errors.New("MYSQL_DSN is not set")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("TLS_CERT and TLS_KEY must be set together")
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return errors.New("RATE_LIMIT and RATE_WINDOW must be positive")
	}
	return nil
}

// IsAdmin reports whether addr may trigger proposal execution.
func (c Config) IsAdmin(addr string) bool {
	for _, a := range c.AdminAddresses {
		if strings.TrimSpace(a) == addr {
			return true
		}
	}
	return false
}

// Settings is the part of the settings table that can override env values.
type Settings interface {
	GetSetting(name string) string
}

// ApplySettings replaces env values with non-empty DB settings.
func (c *Config) ApplySettings(s Settings) {
	if v := s.GetSetting("discord_token"); v != "" {
		c.DiscordToken = v
	}
	if v := s.GetSetting("discord_channel_id"); v != "" {
		c.DiscordChannel = v
	}
	if v := s.GetSetting("frontend_url"); v != "" {
		c.FrontendURL = v
	}
}
