package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/xxxsen/common/logger"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	MailSMTP = "smtp"
	MailAPI  = "api"
	MailLog  = "log"

	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

type Config struct {
	Env         string           `json:"env"`
	Port        int              `json:"port"`
	ClientURL   string           `json:"client_url"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Session     SessionConfig    `json:"session"`
	Store       StoreConfig      `json:"store"`
	Mail        MailConfig       `json:"mail"`
	RateLimit   RateLimitConfig  `json:"rate_limit"`
	Cleanup     CleanupConfig    `json:"cleanup"`
}

type SessionConfig struct {
	Secret     string `json:"secret"`
	TTLHours   int    `json:"ttl_hours"`
	CookieName string `json:"cookie_name"`
	Domain     string `json:"domain"`
}

type StoreConfig struct {
	Type     string         `json:"type"`
	Mongo    MongoConfig    `json:"mongo"`
	Postgres PostgresConfig `json:"postgres"`
}

type MongoConfig struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

type PostgresConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type MailConfig struct {
	Type       string `json:"type"`
	FromEmail  string `json:"from_email"`
	FromName   string `json:"from_name"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	APIBaseURL string `json:"api_base_url"`
	APIToken   string `json:"api_token"`
	TimeoutSec int    `json:"timeout_sec"`
}

type RateLimitConfig struct {
	Type          string `json:"type"`
	Requests      int    `json:"requests"`
	WindowSeconds int    `json:"window_seconds"`
	CacheSize     int    `json:"cache_size"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
}

type CleanupConfig struct {
	Cron string `json:"cron"`
}

// envOverrides are read after the file so deployments can keep secrets and
// connection strings out of it.
type envOverrides struct {
	Env         string `envconfig:"APP_ENV"`
	Port        int    `envconfig:"PORT"`
	ClientURL   string `envconfig:"CLIENT_URL"`
	JWTSecret   string `envconfig:"JWT_SECRET"`
	MongoURI    string `envconfig:"MONGO_URI"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	MailToken   string `envconfig:"MAILTRAP_TOKEN"`
	MailAPIURL  string `envconfig:"MAILTRAP_ENDPOINT"`
	RedisAddr   string `envconfig:"REDIS_ADDR"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("read env: %w", err)
	}
	if env.Env != "" {
		cfg.Env = env.Env
	}
	if env.Port != 0 {
		cfg.Port = env.Port
	}
	if env.ClientURL != "" {
		cfg.ClientURL = env.ClientURL
	}
	if env.JWTSecret != "" {
		cfg.Session.Secret = env.JWTSecret
	}
	if env.MongoURI != "" {
		cfg.Store.Mongo.URI = env.MongoURI
	}
	if env.DatabaseURL != "" {
		cfg.Store.Postgres.DSN = env.DatabaseURL
	}
	if env.MailToken != "" {
		cfg.Mail.APIToken = env.MailToken
	}
	if env.MailAPIURL != "" {
		cfg.Mail.APIBaseURL = env.MailAPIURL
	}
	if env.RedisAddr != "" {
		cfg.RateLimit.RedisAddr = env.RedisAddr
	}
	return nil
}

func (cfg *Config) normalize() error {
	if cfg.Env == "" {
		cfg.Env = EnvDevelopment
	}
	if cfg.Port == 0 {
		cfg.Port = 5000
	}
	if cfg.Session.Secret == "" {
		return fmt.Errorf("session.secret is required")
	}
	if cfg.Session.TTLHours == 0 {
		cfg.Session.TTLHours = 7 * 24
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "token"
	}
	if cfg.ClientURL == "" {
		cfg.ClientURL = "http://localhost:5173"
	}
	cfg.ClientURL = strings.TrimRight(cfg.ClientURL, "/")
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.ClientURL}
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreMongo
	}
	switch cfg.Store.Type {
	case StoreMongo:
		if cfg.Store.Mongo.URI == "" {
			return fmt.Errorf("store.mongo.uri is required for mongo store")
		}
		if cfg.Store.Mongo.Database == "" {
			cfg.Store.Mongo.Database = "auth"
		}
		if cfg.Store.Mongo.Collection == "" {
			cfg.Store.Mongo.Collection = "users"
		}
	case StorePostgres:
		pg := cfg.Store.Postgres
		if pg.DSN == "" && pg.Host == "" {
			return fmt.Errorf("store.postgres dsn or host is required for postgres store")
		}
		if cfg.Store.Postgres.Port == 0 {
			cfg.Store.Postgres.Port = 5432
		}
	case StoreMemory:
		if cfg.Env == EnvProduction {
			return fmt.Errorf("store.type memory is not allowed in production")
		}
	default:
		return fmt.Errorf("store.type must be mongo, postgres or memory")
	}

	if cfg.Mail.Type == "" {
		cfg.Mail.Type = MailLog
	}
	if cfg.Mail.TimeoutSec == 0 {
		cfg.Mail.TimeoutSec = 10
	}
	if cfg.Mail.FromEmail == "" {
		cfg.Mail.FromEmail = "no-reply@localhost"
	}
	switch cfg.Mail.Type {
	case MailSMTP:
		if cfg.Mail.Host == "" || cfg.Mail.Port == 0 {
			return fmt.Errorf("mail host/port are required for smtp mail")
		}
	case MailAPI:
		if cfg.Mail.APIToken == "" {
			return fmt.Errorf("mail.api_token is required for api mail")
		}
		if cfg.Mail.APIBaseURL == "" {
			cfg.Mail.APIBaseURL = "https://send.api.mailtrap.io"
		}
	case MailLog:
	default:
		return fmt.Errorf("mail.type must be smtp, api or log")
	}

	if cfg.RateLimit.Type == "" {
		cfg.RateLimit.Type = LimiterMemory
	}
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 10
	}
	if cfg.RateLimit.WindowSeconds == 0 {
		cfg.RateLimit.WindowSeconds = 60
	}
	if cfg.RateLimit.CacheSize == 0 {
		cfg.RateLimit.CacheSize = 10000
	}
	switch cfg.RateLimit.Type {
	case LimiterMemory:
	case LimiterRedis:
		if cfg.RateLimit.RedisAddr == "" {
			return fmt.Errorf("rate_limit.redis_addr is required for redis limiter")
		}
	default:
		return fmt.Errorf("rate_limit.type must be memory or redis")
	}

	if cfg.Cleanup.Cron == "" {
		cfg.Cleanup.Cron = "*/30 * * * *"
	}
	return nil
}

func (cfg *Config) IsProduction() bool {
	return cfg != nil && cfg.Env == EnvProduction
}
