package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config/config.yaml"

type HTTP struct {
	Addr           string        `yaml:"addr" env:"HTTP_ADDR"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins" env:"HTTP_ALLOWED_ORIGINS" envSeparator:","`
}

// GRPC serves grpc.health.v1; empty addr disables the listener.
type GRPC struct {
	Addr string `yaml:"addr" env:"GRPC_ADDR"`
}

type Logging struct {
	Env       string `yaml:"env" env:"APP_ENV"` // dev|stage|prod
	Service   string `yaml:"service"`
	Version   string `yaml:"version"`
	Backend   string `yaml:"backend" env:"LOG_BACKEND"` // std|zap
	Level     string `yaml:"level" env:"LOG_LEVEL"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"`
	Debug     bool   `yaml:"debug"`
}

type Postgres struct {
	DSN               string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
}

func (p Postgres) Validate() error {
	if p.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	return nil
}

// Backend holds the managed backend endpoint and credentials.
type Backend struct {
	URL            string        `yaml:"url" env:"BACKEND_URL"`
	AnonKey        string        `yaml:"anonKey" env:"BACKEND_ANON_KEY"`
	ServiceRoleKey string        `yaml:"serviceRoleKey" env:"BACKEND_SERVICE_ROLE_KEY"`
	JWTSecret      string        `yaml:"jwtSecret" env:"BACKEND_JWT_SECRET"`
	SessionCookie  string        `yaml:"sessionCookie"`
	Timeout        time.Duration `yaml:"timeout"`
	ClockSkew      time.Duration `yaml:"clockSkew"`
}

func (b Backend) Validate() error {
	if b.JWTSecret == "" && (b.URL == "" || b.AnonKey == "") {
		return errors.New("backend.jwtSecret or backend.url+backend.anonKey is required")
	}
	if b.ClockSkew < 0 || b.ClockSkew > time.Minute {
		return errors.New("backend.clockSkew must be in [0..1m]")
	}
	return nil
}

// Redis enables cross-instance realtime fan-out when URL is set.
type Redis struct {
	URL     string `yaml:"url" env:"REDIS_URL"`
	Channel string `yaml:"channel"`
}

type Realtime struct {
	PingEvery    time.Duration `yaml:"pingEvery"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	SendBuffer   int           `yaml:"sendBuffer"`
}

type Chat struct {
	MaxMessageLength int `yaml:"maxMessageLength"`
	DefaultPageSize  int `yaml:"defaultPageSize"`
	MaxPageSize      int `yaml:"maxPageSize"`
	SearchLimit      int `yaml:"searchLimit"`
}

type I18n struct {
	DefaultLocale string `yaml:"defaultLocale"`
	Cookie        string `yaml:"cookie"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Backend  Backend  `yaml:"backend"`
	Redis    Redis    `yaml:"redis"`
	Realtime Realtime `yaml:"realtime"`
	Chat     Chat     `yaml:"chat"`
	I18n     I18n     `yaml:"i18n"`
}

// LoadConfig reads .env (if present), the YAML file from CONFIG_PATH (or the given
// path) and then applies environment overrides.
func LoadConfig(path ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	filename := os.Getenv("CONFIG_PATH")
	explicit := filename != ""
	if len(path) > 0 && strings.TrimSpace(path[0]) != "" {
		filename, explicit = path[0], true
	}
	if filename == "" {
		filename = defaultPath
	}

	var cfg Config
	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if err := c.Postgres.Validate(); err != nil {
		return err
	}
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if c.Chat.DefaultPageSize > c.Chat.MaxPageSize {
		return errors.New("chat.defaultPageSize must be <= chat.maxPageSize")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 15*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 30*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)
	c.HTTP.RequestTimeout = durationOr(c.HTTP.RequestTimeout, 30*time.Second)

	if c.Logging.Service == "" {
		c.Logging.Service = "messaging"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}

	if c.Postgres.ApplicationName == "" {
		c.Postgres.ApplicationName = c.Logging.Service
	}

	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	c.Backend.Timeout = durationOr(c.Backend.Timeout, 5*time.Second)
	if c.Backend.SessionCookie == "" {
		c.Backend.SessionCookie = "sb-access-token"
	}

	if c.Redis.Channel == "" {
		c.Redis.Channel = "conversations:events"
	}

	c.Realtime.PingEvery = durationOr(c.Realtime.PingEvery, 15*time.Second)
	c.Realtime.WriteTimeout = durationOr(c.Realtime.WriteTimeout, 5*time.Second)
	if c.Realtime.SendBuffer <= 0 {
		c.Realtime.SendBuffer = 64
	}

	if c.Chat.MaxMessageLength <= 0 {
		c.Chat.MaxMessageLength = 4000
	}
	if c.Chat.DefaultPageSize <= 0 {
		c.Chat.DefaultPageSize = 50
	}
	if c.Chat.MaxPageSize <= 0 {
		c.Chat.MaxPageSize = 200
	}
	if c.Chat.SearchLimit <= 0 {
		c.Chat.SearchLimit = 10
	}

	if c.I18n.DefaultLocale == "" {
		c.I18n.DefaultLocale = "fr"
	}
	if c.I18n.Cookie == "" {
		c.I18n.Cookie = "language"
	}
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
