// Package config provides application configuration management from environment variables.
//
// All settings have sensible defaults; an unconfigured service runs fully in
// memory with the built-in role catalogue. OKRIO_CONFIG_FILE may point at a
// flat YAML file holding the same keys; environment variables take precedence.
//
// Server settings:
//
//	OKRIO_HOST="0.0.0.0"
//	OKRIO_PORT="8080"
//	OKRIO_HEALTH_PORT="9090"
//	OKRIO_READ_TIMEOUT="15s"
//	OKRIO_WRITE_TIMEOUT="15s"
//
// Database settings (empty URL disables persistence):
//
//	OKRIO_DATABASE_URL="postgres://localhost/okrio?sslmode=disable"
//	OKRIO_DATABASE_DRIVER="postgres"  # postgres, sqlite3
//	OKRIO_DATABASE_MAX_OPEN_CONNS="10"
//
// Policy settings:
//
//	OKRIO_ROLES_FILE="/etc/okrio/roles.yaml"
//	OKRIO_ROLES_WATCH="true"
//	OKRIO_DECISION_CACHE_ENABLED="true"
//	OKRIO_DECISION_CACHE_SIZE="4096"
//	OKRIO_DECISION_CACHE_TTL="1m"
//
// Workflow settings:
//
//	OKRIO_HISTORY_RETENTION="720h"  # zero disables pruning
//	OKRIO_RETENTION_SCHEDULE="@hourly"
//
// Observability settings:
//
//	OKRIO_LOG_LEVEL="info"  # debug, info, warn, error
//	OKRIO_METRICS_ENABLED="true"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
