package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okrio/okrio/pkg/policy"
	"github.com/okrio/okrio/pkg/workflow"
)

// Store persists engine state to a SQL database
type Store struct {
	db *sql.DB
}

// New creates a store on top of an open database handle
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

// Assignment is a persisted user-to-role binding
type Assignment struct {
	UserID   string
	RoleName string
}

// ObjectGrant is a persisted object-scoped role grant
type ObjectGrant struct {
	UserID   string
	ObjectID string
	Role     policy.ObjectRole
}

// SaveAssignment records a role assignment. Saving an existing pair is a no-op.
func (s *Store) SaveAssignment(ctx context.Context, userID, roleName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO role_assignments (user_id, role_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_name) DO NOTHING
	`, userID, roleName)
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

// DeleteAssignment removes a role assignment
func (s *Store) DeleteAssignment(ctx context.Context, userID, roleName string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM role_assignments WHERE user_id = $1 AND role_name = $2
	`, userID, roleName)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return nil
}

// ListAssignments returns all persisted role assignments
func (s *Store) ListAssignments(ctx context.Context) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, role_name FROM role_assignments ORDER BY user_id, role_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.UserID, &a.RoleName); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// SaveObjectGrant records an object-scoped role grant
func (s *Store) SaveObjectGrant(ctx context.Context, userID, objectID string, role policy.ObjectRole) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO object_role_grants (user_id, object_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, object_id, role) DO NOTHING
	`, userID, objectID, string(role))
	if err != nil {
		return fmt.Errorf("failed to save object grant: %w", err)
	}
	return nil
}

// DeleteObjectGrant removes an object-scoped role grant
func (s *Store) DeleteObjectGrant(ctx context.Context, userID, objectID string, role policy.ObjectRole) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM object_role_grants WHERE user_id = $1 AND object_id = $2 AND role = $3
	`, userID, objectID, string(role))
	if err != nil {
		return fmt.Errorf("failed to delete object grant: %w", err)
	}
	return nil
}

// ListObjectGrants returns all persisted object-scoped role grants
func (s *Store) ListObjectGrants(ctx context.Context) ([]ObjectGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, object_id, role FROM object_role_grants ORDER BY user_id, object_id, role
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list object grants: %w", err)
	}
	defer rows.Close()

	var grants []ObjectGrant
	for rows.Next() {
		var g ObjectGrant
		var role string
		if err := rows.Scan(&g.UserID, &g.ObjectID, &role); err != nil {
			return nil, fmt.Errorf("failed to scan object grant: %w", err)
		}
		g.Role = policy.ObjectRole(role)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// SaveInstance upserts a workflow instance and rewrites its history in one
// transaction. History rows carry a sequence number so replay preserves order.
func (s *Store) SaveInstance(ctx context.Context, instance *workflow.Instance) error {
	workspaceIDs, err := json.Marshal(instance.WorkspaceIDs)
	if err != nil {
		return fmt.Errorf("failed to encode workspace ids: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_instances (id, objective_id, owner_id, tenant_id, workspace_ids, state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			objective_id = EXCLUDED.objective_id,
			owner_id = EXCLUDED.owner_id,
			tenant_id = EXCLUDED.tenant_id,
			workspace_ids = EXCLUDED.workspace_ids,
			state = EXCLUDED.state,
			updated_at = CURRENT_TIMESTAMP
	`, instance.ID, instance.ObjectiveID, instance.OwnerID, instance.TenantID, string(workspaceIDs), string(instance.State))
	if err != nil {
		return fmt.Errorf("failed to upsert instance: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_history WHERE workflow_id = $1`, instance.ID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	for seq, entry := range instance.History {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_history (workflow_id, seq, occurred_at, action, actor_id, resulting_state, comment)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, instance.ID, seq, entry.Timestamp, entry.Action, entry.ActorID, string(entry.ResultingState), entry.Comment)
		if err != nil {
			return fmt.Errorf("failed to insert history entry %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit instance: %w", err)
	}
	return nil
}

// ListInstances loads all persisted workflow instances with their history
func (s *Store) ListInstances(ctx context.Context) ([]*workflow.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, objective_id, owner_id, tenant_id, workspace_ids, state
		FROM workflow_instances ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*workflow.Instance
	byID := make(map[string]*workflow.Instance)
	for rows.Next() {
		var instance workflow.Instance
		var workspaceIDs, state string
		if err := rows.Scan(&instance.ID, &instance.ObjectiveID, &instance.OwnerID, &instance.TenantID, &workspaceIDs, &state); err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		if err := json.Unmarshal([]byte(workspaceIDs), &instance.WorkspaceIDs); err != nil {
			return nil, fmt.Errorf("failed to decode workspace ids for %s: %w", instance.ID, err)
		}
		instance.State = workflow.State(state)
		instances = append(instances, &instance)
		byID[instance.ID] = &instance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read instances: %w", err)
	}

	historyRows, err := s.db.QueryContext(ctx, `
		SELECT workflow_id, occurred_at, action, actor_id, resulting_state, comment
		FROM workflow_history ORDER BY workflow_id, seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer historyRows.Close()

	for historyRows.Next() {
		var workflowID, action, actorID, resultingState, comment string
		var occurredAt time.Time
		if err := historyRows.Scan(&workflowID, &occurredAt, &action, &actorID, &resultingState, &comment); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		instance, ok := byID[workflowID]
		if !ok {
			continue
		}
		instance.History = append(instance.History, workflow.HistoryEntry{
			Timestamp:      occurredAt,
			Action:         action,
			ActorID:        actorID,
			ResultingState: workflow.State(resultingState),
			Comment:        comment,
		})
	}
	return instances, historyRows.Err()
}

// PruneHistory deletes non-creation history entries older than the cutoff.
// The first entry of each workflow is kept so provenance survives pruning.
func (s *Store) PruneHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM workflow_history WHERE occurred_at < $1 AND seq > 0
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned rows: %w", err)
	}
	return pruned, nil
}
