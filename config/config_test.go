package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetForTest clears key for the duration of the test and restores it after.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestFromViper_Defaults(t *testing.T) {
	// GIVEN: Only the secret is provided
	for _, key := range []string{"HTTP_ADDR", "DATABASE_DRIVER", "DATABASE_URL", "REDIS_ADDR", "TIME_ZONE", "JWT_TTL", "LOG_LEVEL", "LOG_FORMAT", "CORS_ALLOWED_ORIGINS", "STATS_USER_TTL", "STATS_TEAM_TTL", "SHUTDOWN_TIMEOUT"} {
		unsetForTest(t, key)
	}
	t.Setenv("JWT_SECRET", "s3cret")

	// WHEN: Loading
	cfg, err := FromViper(NewViper(""))

	// THEN: Defaults apply
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "timetracking.db", cfg.Database.URL)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSAllowedOrigins)
	assert.Equal(t, time.Hour, cfg.Stats.UserTTL)
	assert.Equal(t, 24*time.Hour, cfg.Stats.TeamTTL)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
}

func TestFromViper_EnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/tt")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("TIME_ZONE", "Europe/Warsaw")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("STATS_USER_TTL", "5m")

	cfg, err := FromViper(NewViper(""))

	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "Europe/Warsaw", cfg.Location.String())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.HTTP.CORSAllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Stats.UserTTL)
}

func TestNewViper_ReadsEnvFileWithoutOverridingEnvironment(t *testing.T) {
	// GIVEN: A .env file defining two keys, one of which is already set
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_ISSUER=from-file\nLOG_LEVEL=debug\n"), 0o600))
	unsetForTest(t, "JWT_ISSUER")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("JWT_SECRET", "s3cret")

	// WHEN: Loading with the file
	cfg, err := FromViper(NewViper(path))

	// THEN: The file fills gaps, the environment wins
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWT.Issuer)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestNewViper_MissingEnvFileIsFine(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := FromViper(NewViper(filepath.Join(t.TempDir(), "absent.env")))

	require.NoError(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Driver: DriverSQLite, URL: ":memory:"},
			JWT:      JWTConfig{Secret: "s", TTL: time.Hour},
			Log:      LogConfig{Level: "info", Format: "text"},
			TimeZone: "UTC",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"sqlite without path", func(c *Config) { c.Database.URL = "" }},
		{"bad time zone", func(c *Config) { c.TimeZone = "Mars/Olympus" }},
		{"empty secret", func(c *Config) { c.JWT.Secret = "" }},
		{"zero token ttl", func(c *Config) { c.JWT.TTL = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("memory driver needs no url", func(t *testing.T) {
		cfg := valid()
		cfg.Database = DatabaseConfig{Driver: DriverMemory}
		assert.NoError(t, cfg.Validate())
	})
}

func TestNewLogger(t *testing.T) {
	cfg := Config{Log: LogConfig{Level: "debug", Format: "json"}}

	log := cfg.NewLogger()

	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestValidateStorage_IgnoresTokenSettings(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{Driver: DriverMemory},
		Log:      LogConfig{Level: "info", Format: "text"},
		TimeZone: "UTC",
	}

	assert.NoError(t, cfg.ValidateStorage())
	assert.Error(t, cfg.Validate())
}
