package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "cases", cfg.Database.Database)
				assert.False(t, cfg.Redis.Enabled())
			},
		},
		{
			name: "event defaults",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5*time.Second, cfg.Events.CaptureCacheTTL)
				assert.Equal(t, 500, cfg.Events.BufferSize)
				assert.Equal(t, 50, cfg.Events.DefaultLimit)
				assert.Equal(t, 200, cfg.Events.MaxLimit)
				assert.Equal(t, 5*time.Second, cfg.Events.HookTimeout)
				assert.True(t, cfg.Events.SchemaInit)
			},
		},
		{
			name: "event overrides",
			envVars: map[string]string{
				"CAPTURE_CACHE_TTL":   "30s",
				"EVENT_BUFFER_SIZE":   "20",
				"EVENT_DEFAULT_LIMIT": "10",
				"EVENT_MAX_LIMIT":     "100",
				"EVENT_SCHEMA_INIT":   "false",
				"EVENT_CAPTURED_BY":   "portal-api",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30*time.Second, cfg.Events.CaptureCacheTTL)
				assert.Equal(t, 20, cfg.Events.BufferSize)
				assert.Equal(t, 10, cfg.Events.DefaultLimit)
				assert.Equal(t, 100, cfg.Events.MaxLimit)
				assert.False(t, cfg.Events.SchemaInit)
				assert.Equal(t, "portal-api", cfg.Events.CapturedBy)
			},
		},
		{
			name: "redis notification channel",
			envVars: map[string]string{
				"REDIS_ADDR":          "redis:6379",
				"REDIS_DB":            "2",
				"REDIS_EVENT_CHANNEL": "events",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Redis.Enabled())
				assert.Equal(t, "redis:6379", cfg.Redis.Addr)
				assert.Equal(t, 2, cfg.Redis.DB)
				assert.Equal(t, "events", cfg.Redis.Channel)
			},
		},
		{
			name: "database url takes precedence",
			envVars: map[string]string{
				"DATABASE_URL": "postgres://u:p@db.internal:6543/cases?sslmode=require",
				"DB_HOST":      "ignored",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Database.Host)
				assert.Equal(t, "postgres://u:p@db.internal:6543/cases?sslmode=require", cfg.Database.DSN())
				assert.Equal(t, "host=db.internal port=6543 database=cases", cfg.Database.LogString())
			},
		},
		{
			name: "cors origins list",
			envVars: map[string]string{
				"CORS_ALLOWED_ORIGINS": "https://a.example.org, ,https://b.example.org",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, cfg.Server.AllowedOrigins)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "production with cognito",
			envVars: map[string]string{
				"ENVIRONMENT":          "production",
				"COGNITO_USER_POOL_ID": "us-east-1_xxxxx",
				"COGNITO_CLIENT_ID":    "client123",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.Equal(t, "us-east-1_xxxxx", cfg.Cognito.UserPoolID)
			},
		},
		{
			name: "production without cognito config",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
			},
			wantErr: true,
		},
		{
			name: "default limit above max",
			envVars: map[string]string{
				"EVENT_DEFAULT_LIMIT": "300",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Host:     "localhost",
			User:     "user",
			Database: "db",
		},
		Events: EventsConfig{
			CaptureCacheTTL: 5 * time.Second,
			BufferSize:      500,
			DefaultLimit:    50,
			MaxLimit:        200,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "valid development config", mutate: func(*Config) {}},
		{
			name:   "missing database host",
			mutate: func(c *Config) { c.Database.Host = "" },
			errMsg: "database configuration required",
		},
		{
			name:   "missing database user",
			mutate: func(c *Config) { c.Database.User = "" },
			errMsg: "database user is required",
		},
		{
			name:   "zero cache ttl",
			mutate: func(c *Config) { c.Events.CaptureCacheTTL = 0 },
			errMsg: "capture cache TTL",
		},
		{
			name:   "empty buffer",
			mutate: func(c *Config) { c.Events.BufferSize = 0 },
			errMsg: "buffer size",
		},
		{
			name:   "missing log level",
			mutate: func(c *Config) { c.Observability.LogLevel = "" },
			errMsg: "log level is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Environment(t *testing.T) {
	tests := []struct {
		environment string
		production  bool
		development bool
	}{
		{"production", true, false},
		{"prod", true, false},
		{"development", false, true},
		{"dev", false, true},
		{"staging", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.production, cfg.IsProduction())
			assert.Equal(t, tt.development, cfg.IsDevelopment())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, cfg.DSN())
	assert.NotContains(t, cfg.LogString(), "testpass")
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestGetEnvHelpers(t *testing.T) {
	os.Clearenv()
	t.Setenv("TEST_INT", "not-a-number")
	t.Setenv("TEST_BOOL", "yes please")
	t.Setenv("TEST_DURATION", "250ms")

	assert.Equal(t, 10, getEnvAsInt("TEST_INT", 10))
	assert.True(t, getEnvAsBool("TEST_BOOL", true))
	assert.Equal(t, 250*time.Millisecond, getEnvAsDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvAsDuration("TEST_MISSING", time.Second))
	assert.Equal(t, []string{"x"}, getEnvAsList("TEST_MISSING", []string{"x"}))
}
