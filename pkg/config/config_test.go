package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okrio/okrio/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)

	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, "postgres", cfg.Database.Driver)

	assert.True(t, cfg.Policy.CacheEnabled)
	assert.Equal(t, 4096, cfg.Policy.CacheSize)
	assert.Equal(t, time.Minute, cfg.Policy.CacheTTL)
	assert.True(t, cfg.Policy.WatchRoles)

	assert.Equal(t, time.Duration(0), cfg.Workflow.HistoryRetention)
	assert.Equal(t, "@hourly", cfg.Workflow.RetentionSchedule)

	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("OKRIO_PORT", "8888")
	t.Setenv("OKRIO_DATABASE_URL", "postgres://localhost/okrio")
	t.Setenv("OKRIO_DATABASE_DRIVER", "sqlite3")
	t.Setenv("OKRIO_ROLES_FILE", "/etc/okrio/roles.yaml")
	t.Setenv("OKRIO_DECISION_CACHE_SIZE", "128")
	t.Setenv("OKRIO_HISTORY_RETENTION", "720h")
	t.Setenv("OKRIO_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/okrio", cfg.Database.URL)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "/etc/okrio/roles.yaml", cfg.Policy.RolesFile)
	assert.Equal(t, 128, cfg.Policy.CacheSize)
	assert.Equal(t, 720*time.Hour, cfg.Workflow.HistoryRetention)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("OKRIO_DECISION_CACHE_SIZE", "not-a-number")
	t.Setenv("OKRIO_READ_TIMEOUT", "not-a-duration")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 4096, cfg.Policy.CacheSize)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "port collision",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "bad driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "invalid database driver",
		},
		{
			name:    "zero cache size with cache enabled",
			mutate:  func(c *Config) { c.Policy.CacheSize = 0 },
			wantErr: "cache size must be positive",
		},
		{
			name: "retention without schedule",
			mutate: func(c *Config) {
				c.Workflow.HistoryRetention = time.Hour
				c.Workflow.RetentionSchedule = ""
			},
			wantErr: "retention schedule is required",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Workflow.HistoryRetention = -time.Hour },
			wantErr: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestResolverHelpers(t *testing.T) {
	t.Setenv("OKRIO_TEST_STRING", "value")
	t.Setenv("OKRIO_TEST_BOOL", "1")
	t.Setenv("OKRIO_TEST_INT", "42")
	t.Setenv("OKRIO_TEST_DURATION", "90s")

	res := &resolver{file: map[string]string{"OKRIO_TEST_FILE_ONLY": "from-file"}}

	assert.Equal(t, "value", res.get("OKRIO_TEST_STRING", "default"))
	assert.Equal(t, "default", res.get("OKRIO_TEST_UNSET", "default"))
	assert.Equal(t, "from-file", res.get("OKRIO_TEST_FILE_ONLY", "default"))
	assert.True(t, res.getBool("OKRIO_TEST_BOOL", false))
	assert.False(t, res.getBool("OKRIO_TEST_UNSET", false))
	assert.Equal(t, 42, res.getInt("OKRIO_TEST_INT", 0))
	assert.Equal(t, 90*time.Second, res.getDuration("OKRIO_TEST_DURATION", time.Second))
}

func TestLoadConfig_SettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "okrio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"OKRIO_PORT: \"8181\"\nOKRIO_LOG_LEVEL: warn\nOKRIO_DECISION_CACHE_SIZE: \"64\"\n",
	), 0o644))
	t.Setenv("OKRIO_CONFIG_FILE", path)

	// Environment wins over the file.
	t.Setenv("OKRIO_LOG_LEVEL", "error")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, 64, cfg.Policy.CacheSize)
	assert.Equal(t, observability.ErrorLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_SettingsFileMissing(t *testing.T) {
	t.Setenv("OKRIO_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}
