package store

import (
	"context"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all store migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create role_assignments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_assignments (
					user_id TEXT NOT NULL,
					role_name TEXT NOT NULL,
					granted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, role_name)
				);

				CREATE INDEX IF NOT EXISTS idx_role_assignments_user_id ON role_assignments(user_id);
			`,
		},
		{
			Version:     2,
			Description: "Create object_role_grants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS object_role_grants (
					user_id TEXT NOT NULL,
					object_id TEXT NOT NULL,
					role TEXT NOT NULL,
					granted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, object_id, role)
				);

				CREATE INDEX IF NOT EXISTS idx_object_role_grants_object_id ON object_role_grants(object_id);
			`,
		},
		{
			Version:     3,
			Description: "Create workflow_instances table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workflow_instances (
					id TEXT PRIMARY KEY,
					objective_id TEXT NOT NULL,
					owner_id TEXT NOT NULL,
					tenant_id TEXT NOT NULL,
					workspace_ids TEXT NOT NULL,
					state TEXT NOT NULL,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_workflow_instances_objective_id ON workflow_instances(objective_id);
			`,
		},
		{
			Version:     4,
			Description: "Create workflow_history table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workflow_history (
					workflow_id TEXT NOT NULL,
					seq INTEGER NOT NULL,
					occurred_at TIMESTAMP NOT NULL,
					action TEXT NOT NULL,
					actor_id TEXT NOT NULL,
					resulting_state TEXT NOT NULL,
					comment TEXT NOT NULL DEFAULT '',
					PRIMARY KEY (workflow_id, seq)
				);

				CREATE INDEX IF NOT EXISTS idx_workflow_history_occurred_at ON workflow_history(occurred_at);
			`,
		},
	}
}

// Migrate executes all pending migrations
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS okrio_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT version FROM okrio_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}
		if err := s.applyMigration(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) applyMigration(ctx context.Context, migration Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO okrio_migrations (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	return nil
}
