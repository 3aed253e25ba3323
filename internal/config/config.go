// Package config loads service settings from an optional YAML file, a .env file
// and GYMDESK_* environment variables, in increasing order of precedence.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when GYMDESK_CONFIG is unset.
const DefaultPath = "gymdesk.yaml"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Remote    RemoteConfig    `yaml:"remote"`
	Store     StoreConfig     `yaml:"store"`
	Email     EmailConfig     `yaml:"email"`
	Auth      AuthConfig      `yaml:"auth"`
	Reminders RemindersConfig `yaml:"reminders"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	Env         string   `yaml:"env"`
	CORSOrigins []string `yaml:"cors_origins"`
	// CSRFKey is 64 hex characters.
	CSRFKey   string `yaml:"csrf_key"`
	RateLimit int    `yaml:"rate_limit"` // requests per second per IP; 0 disables
}

// IsProduction reports env == "production".
func (c ServerConfig) IsProduction() bool { return c.Env == "production" }

type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Token          string `yaml:"token"`
	// Client credentials; when ClientID is set the service token is fetched from TokenURL.
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

// Timeout returns the per-call timeout.
func (c RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type StoreConfig struct {
	Driver      string `yaml:"driver"` // sqlite or redis
	SQLitePath  string `yaml:"sqlite_path"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type EmailConfig struct {
	Provider     string `yaml:"provider"` // resend, ses or noop
	ResendKey    string `yaml:"resend_key"`
	SESRegion    string `yaml:"ses_region"`
	SESAccessKey string `yaml:"ses_access_key"`
	SESSecretKey string `yaml:"ses_secret_key"`
	From         string `yaml:"from"`
	ReplyTo      string `yaml:"reply_to"`
	GymName      string `yaml:"gym_name"`
	FrontendURL  string `yaml:"frontend_url"`
}

type AuthConfig struct {
	// JWTSecret enables bearer authentication when non-empty.
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// Enabled reports whether requests must carry a verified token.
func (c AuthConfig) Enabled() bool { return c.JWTSecret != "" }

type RemindersConfig struct {
	Enabled       bool     `yaml:"enabled"`
	IntervalHours int      `yaml:"interval_hours"`
	Types         []string `yaml:"types"`
}

// Interval returns the scheduler period.
func (c RemindersConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

type TracingConfig struct {
	Stdout bool `yaml:"stdout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8080",
			Env:         "development",
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   10,
		},
		Remote: RemoteConfig{
			BaseURL:        "http://localhost:8000/api/members/api",
			TimeoutSeconds: 10,
		},
		Store: StoreConfig{
			Driver:      "sqlite",
			SQLitePath:  "gymdesk.db",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "gymdesk:",
		},
		Email: EmailConfig{
			Provider:    "noop",
			SESRegion:   "us-east-1",
			From:        "Gym <noreply@example.com>",
			GymName:     "Our Gym",
			FrontendURL: "http://localhost:3000",
		},
		Reminders: RemindersConfig{
			Enabled:       true,
			IntervalHours: 24,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads .env (if present), then the YAML file at path (missing is fine),
// then applies GYMDESK_* overrides and validates the result.
// An empty path means GYMDESK_CONFIG or DefaultPath.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = envOrDefault("GYMDESK_CONFIG", DefaultPath)
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = envOrDefault("GYMDESK_ADDR", cfg.Server.Addr)
	cfg.Server.Env = envOrDefault("GYMDESK_ENV", cfg.Server.Env)
	if v := os.Getenv("GYMDESK_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	cfg.Server.CSRFKey = envOrDefault("GYMDESK_CSRF_KEY", cfg.Server.CSRFKey)
	cfg.Server.RateLimit = envIntOrDefault("GYMDESK_RATE_LIMIT", cfg.Server.RateLimit)

	cfg.Remote.BaseURL = envOrDefault("GYMDESK_REMOTE_URL", cfg.Remote.BaseURL)
	cfg.Remote.TimeoutSeconds = envIntOrDefault("GYMDESK_REMOTE_TIMEOUT_SECONDS", cfg.Remote.TimeoutSeconds)
	cfg.Remote.Token = envOrDefault("GYMDESK_REMOTE_TOKEN", cfg.Remote.Token)
	cfg.Remote.ClientID = envOrDefault("GYMDESK_REMOTE_CLIENT_ID", cfg.Remote.ClientID)
	cfg.Remote.ClientSecret = envOrDefault("GYMDESK_REMOTE_CLIENT_SECRET", cfg.Remote.ClientSecret)
	cfg.Remote.TokenURL = envOrDefault("GYMDESK_REMOTE_TOKEN_URL", cfg.Remote.TokenURL)

	cfg.Store.Driver = envOrDefault("GYMDESK_STORE", cfg.Store.Driver)
	cfg.Store.SQLitePath = envOrDefault("GYMDESK_SQLITE_PATH", cfg.Store.SQLitePath)
	cfg.Store.RedisAddr = envOrDefault("GYMDESK_REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisDB = envIntOrDefault("GYMDESK_REDIS_DB", cfg.Store.RedisDB)

	cfg.Email.Provider = envOrDefault("GYMDESK_EMAIL_PROVIDER", cfg.Email.Provider)
	cfg.Email.ResendKey = envOrDefault("GYMDESK_RESEND_KEY", cfg.Email.ResendKey)
	cfg.Email.SESRegion = envOrDefault("GYMDESK_SES_REGION", cfg.Email.SESRegion)
	cfg.Email.SESAccessKey = envOrDefault("GYMDESK_SES_ACCESS_KEY", cfg.Email.SESAccessKey)
	cfg.Email.SESSecretKey = envOrDefault("GYMDESK_SES_SECRET_KEY", cfg.Email.SESSecretKey)
	cfg.Email.From = envOrDefault("GYMDESK_EMAIL_FROM", cfg.Email.From)
	cfg.Email.ReplyTo = envOrDefault("GYMDESK_REPLY_TO", cfg.Email.ReplyTo)
	cfg.Email.GymName = envOrDefault("GYMDESK_GYM_NAME", cfg.Email.GymName)
	cfg.Email.FrontendURL = envOrDefault("GYMDESK_FRONTEND_URL", cfg.Email.FrontendURL)

	cfg.Auth.JWTSecret = envOrDefault("GYMDESK_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = envOrDefault("GYMDESK_JWT_ISSUER", cfg.Auth.Issuer)

	cfg.Reminders.Enabled = envBoolOrDefault("GYMDESK_REMINDERS_ENABLED", cfg.Reminders.Enabled)
	cfg.Reminders.IntervalHours = envIntOrDefault("GYMDESK_REMINDERS_INTERVAL_HOURS", cfg.Reminders.IntervalHours)

	cfg.Tracing.Stdout = envBoolOrDefault("GYMDESK_TRACE_STDOUT", cfg.Tracing.Stdout)

	cfg.Log.Level = envOrDefault("GYMDESK_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOrDefault("GYMDESK_LOG_FORMAT", cfg.Log.Format)
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	switch c.Email.Provider {
	case "noop":
	case "resend":
		if c.Email.ResendKey == "" {
			errs = append(errs, errors.New("email.resend_key is required for the resend provider"))
		}
	case "ses":
		if c.Email.SESRegion == "" {
			errs = append(errs, errors.New("email.ses_region is required for the ses provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("email.provider: unknown provider %q", c.Email.Provider))
	}
	if c.Server.CSRFKey != "" {
		if key, err := hex.DecodeString(c.Server.CSRFKey); err != nil || len(key) != 32 {
			errs = append(errs, errors.New("server.csrf_key must be 64 hex characters (32 bytes)"))
		}
	} else if c.Server.IsProduction() {
		errs = append(errs, errors.New("server.csrf_key is required in production"))
	}
	if c.Remote.ClientID != "" && c.Remote.TokenURL == "" {
		errs = append(errs, errors.New("remote.token_url is required with remote.client_id"))
	}
	if c.Remote.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("remote.timeout_seconds must be positive"))
	}
	return errors.Join(errs...)
}

// CSRFKeyBytes decodes the CSRF key, or returns nil when unset.
// PRE: Validate passed
func (c ServerConfig) CSRFKeyBytes() []byte {
	if c.CSRFKey == "" {
		return nil
	}
	key, _ := hex.DecodeString(c.CSRFKey)
	return key
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envBoolOrDefault(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
