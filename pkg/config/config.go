package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okrio/okrio/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Policy engine configuration
	Policy PolicyConfig

	// Workflow configuration
	Workflow WorkflowConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds persistence settings. An empty URL runs the service
// purely in memory.
type DatabaseConfig struct {
	URL          string
	Driver       string
	MaxOpenConns int
	MaxIdleConns int
}

// PolicyConfig holds policy engine settings
type PolicyConfig struct {
	// RolesFile points at a YAML role catalogue. Empty means the built-in
	// catalogue is used.
	RolesFile string
	// WatchRoles reloads the catalogue when the file changes.
	WatchRoles bool

	// Decision cache
	CacheEnabled bool
	CacheSize    int
	CacheTTL     time.Duration
}

// WorkflowConfig holds workflow engine settings
type WorkflowConfig struct {
	// HistoryRetention bounds how long history entries are kept in the
	// database. Zero disables pruning.
	HistoryRetention time.Duration
	// RetentionSchedule is a cron expression for the prune job.
	RetentionSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// resolver looks up settings with environment taking precedence over an
// optional flat YAML settings file.
type resolver struct {
	file map[string]string
}

// LoadConfig loads configuration from environment variables, optionally
// layered over a YAML settings file named by OKRIO_CONFIG_FILE. The file maps
// setting names to values using the same keys as the environment; environment
// variables win.
func LoadConfig() (*Config, error) {
	res := &resolver{}
	if path := os.Getenv("OKRIO_CONFIG_FILE"); path != "" {
		fileValues, err := loadSettingsFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		res.file = fileValues
	}

	cfg := &Config{
		Server:        res.loadServerConfig(),
		Database:      res.loadDatabaseConfig(),
		Policy:        res.loadPolicyConfig(),
		Workflow:      res.loadWorkflowConfig(),
		Observability: res.loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadSettingsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (r *resolver) loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            r.get("OKRIO_HOST", "0.0.0.0"),
		Port:            r.get("OKRIO_PORT", "8080"),
		ReadTimeout:     r.getDuration("OKRIO_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    r.getDuration("OKRIO_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     r.getDuration("OKRIO_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: r.getDuration("OKRIO_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      r.get("OKRIO_HEALTH_PORT", "9090"),
	}
}

func (r *resolver) loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          r.get("OKRIO_DATABASE_URL", ""),
		Driver:       r.get("OKRIO_DATABASE_DRIVER", "postgres"),
		MaxOpenConns: r.getInt("OKRIO_DATABASE_MAX_OPEN_CONNS", 10),
		MaxIdleConns: r.getInt("OKRIO_DATABASE_MAX_IDLE_CONNS", 5),
	}
}

func (r *resolver) loadPolicyConfig() PolicyConfig {
	return PolicyConfig{
		RolesFile:    r.get("OKRIO_ROLES_FILE", ""),
		WatchRoles:   r.getBool("OKRIO_ROLES_WATCH", true),
		CacheEnabled: r.getBool("OKRIO_DECISION_CACHE_ENABLED", true),
		CacheSize:    r.getInt("OKRIO_DECISION_CACHE_SIZE", 4096),
		CacheTTL:     r.getDuration("OKRIO_DECISION_CACHE_TTL", time.Minute),
	}
}

func (r *resolver) loadWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		HistoryRetention:  r.getDuration("OKRIO_HISTORY_RETENTION", 0),
		RetentionSchedule: r.get("OKRIO_RETENTION_SCHEDULE", "@hourly"),
	}
}

func (r *resolver) loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLevel(r.get("OKRIO_LOG_LEVEL", "info")),
		MetricsEnabled: r.getBool("OKRIO_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}

	if c.Policy.CacheEnabled && c.Policy.CacheSize <= 0 {
		return fmt.Errorf("decision cache size must be positive")
	}

	if c.Workflow.HistoryRetention < 0 {
		return fmt.Errorf("history retention must not be negative")
	}
	if c.Workflow.HistoryRetention > 0 && c.Workflow.RetentionSchedule == "" {
		return fmt.Errorf("retention schedule is required when history retention is set")
	}

	return nil
}

// get returns a setting value or a default
func (r *resolver) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := r.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

// getBool returns a boolean setting or a default
func (r *resolver) getBool(key string, defaultValue bool) bool {
	if value := r.get(key, ""); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getInt returns an integer setting or a default
func (r *resolver) getInt(key string, defaultValue int) int {
	if value := r.get(key, ""); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getDuration returns a duration setting or a default
func (r *resolver) getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := r.get(key, ""); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
