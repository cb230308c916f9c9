package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Push     PushConfig
	Geocode  GeocodeConfig
	Dispatch DispatchConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// AuthConfig holds bearer-token verification settings. The token subject is
// the user id; admin access is granted by the is_admin claim.
type AuthConfig struct {
	JWTSecret string `mapstructure:"AUTH_JWT_SECRET"`
}

// PushConfig holds Firebase Cloud Messaging credentials. When the credentials
// file is empty the engine runs with push notifications disabled.
type PushConfig struct {
	CredentialsFile string `mapstructure:"FCM_CREDENTIALS_FILE"`
}

// GeocodeConfig holds Nominatim geocoding settings.
type GeocodeConfig struct {
	BaseURL   string        `mapstructure:"GEOCODE_BASE_URL"`
	UserAgent string        `mapstructure:"GEOCODE_USER_AGENT"`
	Timeout   time.Duration `mapstructure:"GEOCODE_TIMEOUT"`
	CacheTTL  time.Duration `mapstructure:"GEOCODE_CACHE_TTL"`
}

// DispatchConfig holds the tunables of the dispatch core.
type DispatchConfig struct {
	// OfferTTL is how long a provider has to respond to an offer.
	OfferTTL time.Duration `mapstructure:"DISPATCH_OFFER_TTL"`
	// TopN is the number of providers offered a booking in parallel.
	TopN int `mapstructure:"DISPATCH_TOP_N"`
	// MaxDistanceKm is the distance bonus budget: full bonus at 0 km,
	// zero bonus at this distance and beyond.
	MaxDistanceKm float64 `mapstructure:"DISPATCH_MAX_DISTANCE_KM"`
	// LocationlessFullBonus grants the full distance bonus to providers
	// without coordinates when the booking has them. Matches the legacy
	// behavior; turn off to stop location-less providers from outranking
	// nearby ones.
	LocationlessFullBonus bool `mapstructure:"DISPATCH_LOCATIONLESS_FULL_BONUS"`
	// SweepBatchSize caps the rows a reconciliation sweep touches per tick.
	SweepBatchSize int `mapstructure:"DISPATCH_SWEEP_BATCH_SIZE"`
	// SweepSchedule and ScheduledSweepSchedule are cron specs for the
	// minute-cadence sweeps and the hourly scheduled-booking sweep.
	SweepSchedule          string `mapstructure:"DISPATCH_SWEEP_SCHEDULE"`
	ScheduledSweepSchedule string `mapstructure:"DISPATCH_SCHEDULED_SWEEP_SCHEDULE"`
	// ScheduledWindow is how far ahead sweep D looks for dated bookings.
	ScheduledWindow time.Duration `mapstructure:"DISPATCH_SCHEDULED_WINDOW"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// ── Defaults ────────────────────────────────────────
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "5s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "quickserve")
	viper.SetDefault("POSTGRES_PASSWORD", "quickserve_secret")
	viper.SetDefault("POSTGRES_DB", "quickserve_db")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 50)
	viper.SetDefault("POSTGRES_MIN_CONNS", 10)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 100)

	viper.SetDefault("AUTH_JWT_SECRET", "")

	viper.SetDefault("FCM_CREDENTIALS_FILE", "")

	viper.SetDefault("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org")
	viper.SetDefault("GEOCODE_USER_AGENT", "QuickServe/1.0 (dev@quickserve.localhost)")
	viper.SetDefault("GEOCODE_TIMEOUT", "10s")
	viper.SetDefault("GEOCODE_CACHE_TTL", "24h")

	viper.SetDefault("DISPATCH_OFFER_TTL", "5m")
	viper.SetDefault("DISPATCH_TOP_N", 3)
	viper.SetDefault("DISPATCH_MAX_DISTANCE_KM", 20.0)
	viper.SetDefault("DISPATCH_LOCATIONLESS_FULL_BONUS", true)
	viper.SetDefault("DISPATCH_SWEEP_BATCH_SIZE", 200)
	viper.SetDefault("DISPATCH_SWEEP_SCHEDULE", "@every 1m")
	viper.SetDefault("DISPATCH_SCHEDULED_SWEEP_SCHEDULE", "@every 1h")
	viper.SetDefault("DISPATCH_SCHEDULED_WINDOW", "24h")

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by docker-compose env_file are used instead.
	_ = viper.ReadInConfig()

	cfg := &Config{}

	// ── Server ──────────────────────────────────────────
	cfg.Server = ServerConfig{
		Host:         viper.GetString("SERVER_HOST"),
		Port:         viper.GetInt("SERVER_PORT"),
		ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
	}

	// ── Postgres ────────────────────────────────────────
	cfg.Postgres = PostgresConfig{
		Host:     viper.GetString("POSTGRES_HOST"),
		Port:     viper.GetInt("POSTGRES_PORT"),
		User:     viper.GetString("POSTGRES_USER"),
		Password: viper.GetString("POSTGRES_PASSWORD"),
		DBName:   viper.GetString("POSTGRES_DB"),
		SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		MaxConns: viper.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: viper.GetInt32("POSTGRES_MIN_CONNS"),
	}

	// ── Redis ───────────────────────────────────────────
	cfg.Redis = RedisConfig{
		Host:     viper.GetString("REDIS_HOST"),
		Port:     viper.GetInt("REDIS_PORT"),
		Password: viper.GetString("REDIS_PASSWORD"),
		DB:       viper.GetInt("REDIS_DB"),
		PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
	}

	// ── Auth / Push / Geocode ───────────────────────────
	cfg.Auth = AuthConfig{
		JWTSecret: viper.GetString("AUTH_JWT_SECRET"),
	}
	cfg.Push = PushConfig{
		CredentialsFile: viper.GetString("FCM_CREDENTIALS_FILE"),
	}
	cfg.Geocode = GeocodeConfig{
		BaseURL:   viper.GetString("GEOCODE_BASE_URL"),
		UserAgent: viper.GetString("GEOCODE_USER_AGENT"),
		Timeout:   viper.GetDuration("GEOCODE_TIMEOUT"),
		CacheTTL:  viper.GetDuration("GEOCODE_CACHE_TTL"),
	}

	// ── Dispatch ────────────────────────────────────────
	cfg.Dispatch = DispatchConfig{
		OfferTTL:               viper.GetDuration("DISPATCH_OFFER_TTL"),
		TopN:                   viper.GetInt("DISPATCH_TOP_N"),
		MaxDistanceKm:          viper.GetFloat64("DISPATCH_MAX_DISTANCE_KM"),
		LocationlessFullBonus:  viper.GetBool("DISPATCH_LOCATIONLESS_FULL_BONUS"),
		SweepBatchSize:         viper.GetInt("DISPATCH_SWEEP_BATCH_SIZE"),
		SweepSchedule:          viper.GetString("DISPATCH_SWEEP_SCHEDULE"),
		ScheduledSweepSchedule: viper.GetString("DISPATCH_SCHEDULED_SWEEP_SCHEDULE"),
		ScheduledWindow:        viper.GetDuration("DISPATCH_SCHEDULED_WINDOW"),
	}

	return cfg, nil
}
