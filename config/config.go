/*
config.go - Runtime configuration

PURPOSE:
  Collects every setting of the server from, in order of precedence:
  command-line flags bound by cmd/server, process environment, an optional
  .env file and built-in defaults.

LOADING:
  NewViper reads the .env file through godotenv (existing environment
  variables win, a missing file is fine), registers defaults and enables
  AutomaticEnv. FromViper copies the values into a Config and validates it.

KEYS:
  HTTP_ADDR             listen address                     (:8080)
  DATABASE_DRIVER       sqlite | postgres | memory         (sqlite)
  DATABASE_URL          sqlite path or postgres DSN        (timetracking.db)
  REDIS_ADDR            empty selects the in-process cache
  REDIS_PASSWORD, REDIS_DB
  JWT_SECRET            HS256 signing secret               (required)
  JWT_ISSUER            token issuer                       (time-tracking)
  JWT_TTL               lifetime of issued tokens          (24h)
  TIME_ZONE             IANA zone days are bucketed in     (UTC)
  LOG_LEVEL, LOG_FORMAT logrus level, text | json          (info, text)
  CORS_ALLOWED_ORIGINS  comma separated list               (*)
  STATS_USER_TTL        per-user statistics cache TTL      (1h)
  STATS_TEAM_TTL        team statistics cache TTL          (24h)
  STATS_REFRESH_INTERVAL team statistics refresh period; 0 disables (1h)
  SHUTDOWN_TIMEOUT      graceful shutdown budget           (30s)

SEE ALSO:
  - cmd/server/main.go: flag bindings
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all server settings.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	Stats    StatsConfig

	TimeZone string
	// Location is TimeZone resolved by Validate.
	Location *time.Location
}

type HTTPConfig struct {
	Addr               string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis cache is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type StatsConfig struct {
	UserTTL         time.Duration
	TeamTTL         time.Duration
	RefreshInterval time.Duration
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads .env from the working directory and the environment.
func Load() (*Config, error) {
	return FromViper(NewViper(".env"))
}

// NewViper prepares a viper instance with defaults and environment lookup.
// envFile may be empty or missing.
func NewViper(envFile string) *viper.Viper {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).WithField("file", envFile).Warn("ignoring unreadable env file")
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")

	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_URL", "timetracking.db")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "time-tracking")
	v.SetDefault("JWT_TTL", "24h")

	v.SetDefault("TIME_ZONE", "UTC")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("STATS_USER_TTL", "1h")
	v.SetDefault("STATS_TEAM_TTL", "24h")
	v.SetDefault("STATS_REFRESH_INTERVAL", "1h")
}

// FromViper builds and validates a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := Bind(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bind copies viper values into a Config without validating it.
func Bind(v *viper.Viper) *Config {
	cfg := &Config{}
	bindConfig(v, cfg)
	return cfg
}

func bindConfig(v *viper.Viper, cfg *Config) {
	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")
	cfg.HTTP.CORSAllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))
	cfg.HTTP.ShutdownTimeout = v.GetDuration("SHUTDOWN_TIMEOUT")

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_DRIVER")))
	cfg.Database.URL = v.GetString("DATABASE_URL")

	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.Issuer = v.GetString("JWT_ISSUER")
	cfg.JWT.TTL = v.GetDuration("JWT_TTL")

	cfg.TimeZone = v.GetString("TIME_ZONE")

	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = strings.ToLower(v.GetString("LOG_FORMAT"))

	cfg.Stats.UserTTL = v.GetDuration("STATS_USER_TTL")
	cfg.Stats.TeamTTL = v.GetDuration("STATS_TEAM_TTL")
	cfg.Stats.RefreshInterval = v.GetDuration("STATS_REFRESH_INTERVAL")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the settings and resolves Location.
func (c *Config) Validate() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWT.TTL)
	}
	return nil
}

// ValidateStorage checks what offline commands need: database, time zone
// and logging. Token settings are ignored.
func (c *Config) ValidateStorage() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", c.Database.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q (want sqlite, postgres or memory)", c.Database.Driver)
	}

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	c.Location = loc

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid LOG_FORMAT %q (want text or json)", c.Log.Format)
	}
	return nil
}

// =============================================================================
// LOGGER
// =============================================================================

// NewLogger builds the root logger from the log settings.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(level)
	}
	if c.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
