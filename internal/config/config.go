package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

// Notification modes.
const (
	NotifyInline = "inline"
	NotifyAMQP   = "amqp"
	NotifyOff    = "off"
)

type Config struct {
	Port         string   `mapstructure:"PORT"`
	Env          string   `mapstructure:"ENV"`
	StoreBackend string   `mapstructure:"STORE_BACKEND"`
	DatabaseURL  string   `mapstructure:"DATABASE_URL"`
	DBMaxConns   int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns   int32    `mapstructure:"DB_MIN_CONNS"`
	SupabaseURL  string   `mapstructure:"SUPABASE_URL"`
	SupabaseKey  string   `mapstructure:"SUPABASE_SERVICE_KEY"`
	AuthIssuer   string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL  string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins  []string `mapstructure:"CORS_ORIGINS"`

	NotifyMode   string `mapstructure:"NOTIFY_MODE"`
	NotifyBuffer int    `mapstructure:"NOTIFY_BUFFER"`
	AMQPURL      string `mapstructure:"AMQP_URL"`
	NotifyQueue  string `mapstructure:"NOTIFY_QUEUE"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	SMSAPIURL    string `mapstructure:"SMS_API_URL"`
	SMSAPIKey    string `mapstructure:"SMS_API_KEY"`
	SMSSecretKey string `mapstructure:"SMS_SECRET_KEY"`
	SMSSender    string `mapstructure:"SMS_SENDER"`

	StaffCacheSize int `mapstructure:"STAFF_CACHE_SIZE"`

	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
}

var envKeys = []string{
	"PORT", "ENV", "STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SUPABASE_URL", "SUPABASE_SERVICE_KEY",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "CORS_ORIGINS",
	"NOTIFY_MODE", "NOTIFY_BUFFER", "AMQP_URL", "NOTIFY_QUEUE",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
	"SMS_API_URL", "SMS_API_KEY", "SMS_SECRET_KEY", "SMS_SENDER",
	"STAFF_CACHE_SIZE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("NOTIFY_MODE", NotifyInline)
	v.SetDefault("NOTIFY_BUFFER", 256)
	v.SetDefault("NOTIFY_QUEUE", "clinic.notifications")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMS_SENDER", "CLINIC")
	v.SetDefault("STAFF_CACHE_SIZE", 512)
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.NotifyMode = strings.ToLower(strings.TrimSpace(cfg.NotifyMode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); all requests get admin access.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks the backend, notification and auth settings for
// consistency.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when STORE_BACKEND is %q", BackendSupabase)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendSupabase, c.StoreBackend)
	}

	switch c.NotifyMode {
	case NotifyInline, NotifyOff:
	case NotifyAMQP:
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required when NOTIFY_MODE is %q", NotifyAMQP)
		}
	default:
		return fmt.Errorf("NOTIFY_MODE must be %q, %q or %q, got %q", NotifyInline, NotifyAMQP, NotifyOff, c.NotifyMode)
	}

	if !c.IsDev() && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_ISSUER must be set outside development (current ENV=%q)", c.Env)
	}
	return nil
}
