package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseURL string `mapstructure:"DATABASE_URL" validate:"required,url|uri"`

	// Empty RedisAddr disables the background queue; sends run inline.
	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	JWTSecret      string        `mapstructure:"JWT_SECRET" validate:"required,min=16"`
	AccessTokenTTL time.Duration `mapstructure:"ACCESS_TOKEN_TTL" validate:"required"`

	EmailProvider string `mapstructure:"EMAIL_PROVIDER" validate:"required,oneof=sendgrid mailgun aws_ses"`
	EmailSender   string `mapstructure:"EMAIL_SENDER" validate:"required,email"`

	SendGridAPIKey  string `mapstructure:"SENDGRID_API_KEY"`
	SendGridBaseURL string `mapstructure:"SENDGRID_BASE_URL" validate:"required,url"`

	MailgunAPIKey  string `mapstructure:"MAILGUN_API_KEY"`
	MailgunDomain  string `mapstructure:"MAILGUN_DOMAIN"`
	MailgunBaseURL string `mapstructure:"MAILGUN_BASE_URL" validate:"required,url"`

	AWSRegion          string `mapstructure:"AWS_REGION" validate:"required"`
	SESEndpoint        string `mapstructure:"AWS_SES_ENDPOINT" validate:"omitempty,url"`
	AWSAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`

	StorageProvider string `mapstructure:"STORAGE_PROVIDER" validate:"required,oneof=local"`
	UploadDir       string `mapstructure:"UPLOAD_DIR" validate:"required"`
	MaxUploadBytes  int64  `mapstructure:"MAX_UPLOAD_BYTES" validate:"gte=1"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS" validate:"dive,required"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS" validate:"gt=0"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST" validate:"gte=1"`

	UserCacheSize int           `mapstructure:"USER_CACHE_SIZE" validate:"gte=1"`
	UserCacheTTL  time.Duration `mapstructure:"USER_CACHE_TTL" validate:"required"`
}

// QueueEnabled reports whether a redis-backed task queue is configured.
func (c *Config) QueueEnabled() bool { return c.RedisAddr != "" }

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var keys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DATABASE_URL",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"ASYNQ_CONCURRENCY",
	"GOMAXPROCS",
	"JWT_SECRET",
	"ACCESS_TOKEN_TTL",
	"EMAIL_PROVIDER",
	"EMAIL_SENDER",
	"SENDGRID_API_KEY",
	"SENDGRID_BASE_URL",
	"MAILGUN_API_KEY",
	"MAILGUN_DOMAIN",
	"MAILGUN_BASE_URL",
	"AWS_REGION",
	"AWS_SES_ENDPOINT",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"STORAGE_PROVIDER",
	"UPLOAD_DIR",
	"MAX_UPLOAD_BYTES",
	"CORS_ORIGINS",
	"RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
	"USER_CACHE_SIZE",
	"USER_CACHE_TTL",
}

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	// Defaults
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("ACCESS_TOKEN_TTL", "168h")
	v.SetDefault("EMAIL_PROVIDER", "sendgrid")
	v.SetDefault("EMAIL_SENDER", "noreply@rfp-studio.local")
	v.SetDefault("SENDGRID_BASE_URL", "https://api.sendgrid.com")
	v.SetDefault("MAILGUN_BASE_URL", "https://api.mailgun.net")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("STORAGE_PROVIDER", "local")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MAX_UPLOAD_BYTES", 20<<20)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:8000")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("USER_CACHE_SIZE", 1024)
	v.SetDefault("USER_CACHE_TTL", "1m")

	// Optional config file
	_ = v.ReadInConfig()

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Parse duration types that may come as string
	durations := map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
		"ACCESS_TOKEN_TTL": &c.AccessTokenTTL,
		"USER_CACHE_TTL":   &c.UserCacheTTL,
	}
	for key, dst := range durations {
		s := v.GetString(key)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	c.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}
