package workflow

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okrio/okrio/pkg/policy"
)

// newTestEngine returns a workflow engine backed by a policy engine that
// grants "admin" every lifecycle permission.
func newTestEngine(t *testing.T) (*Engine, *policy.Engine) {
	t.Helper()
	policyEngine := policy.NewEngine()
	policy.RegisterDefaults(policyEngine)
	engine := NewEngine(policyEngine)
	return engine, policyEngine
}

func adminContext(t *testing.T, policyEngine *policy.Engine, userID string) policy.AccessContext {
	t.Helper()
	require.NoError(t, policyEngine.AssignRole(userID, policy.RoleGlobalAdmin))
	return policy.AccessContext{UserID: userID, TenantID: "t1"}
}

func TestEngine_CreateInstance(t *testing.T) {
	engine, _ := newTestEngine(t)

	instance := engine.CreateInstance("obj-1", "u1", "t1", []string{"ws-1"})
	assert.NotEmpty(t, instance.ID)
	assert.Equal(t, StateDraft, instance.State)
	assert.Equal(t, "obj-1", instance.ObjectiveID)

	require.Len(t, instance.History, 1)
	entry := instance.History[0]
	assert.Equal(t, policy.PermWorkflowCreate, entry.Action)
	assert.Equal(t, "u1", entry.ActorID)
	assert.Equal(t, StateDraft, entry.ResultingState)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestEngine_GetInstance_NotFound(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.GetInstance("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_ListInstances_SortedByID(t *testing.T) {
	engine, _ := newTestEngine(t)
	ids := []string{"c", "a", "b"}
	next := 0
	engine.newID = func() string { id := ids[next]; next++; return id }

	for range ids {
		engine.CreateInstance("obj", "u1", "t1", nil)
	}

	instances := engine.ListInstances()
	require.Len(t, instances, 3)
	assert.Equal(t, "a", instances[0].ID)
	assert.Equal(t, "b", instances[1].ID)
	assert.Equal(t, "c", instances[2].ID)
}

func TestEngine_Advance_FullLifecycle(t *testing.T) {
	engine, policyEngine := newTestEngine(t)
	actor := adminContext(t, policyEngine, "u1")
	instance := engine.CreateInstance("obj-1", "u1", "t1", []string{"ws-1"})

	steps := []struct {
		action string
		want   State
	}{
		{policy.PermWorkflowSubmit, StateReview},
		{policy.PermWorkflowReview, StateManagerApproval},
		{policy.PermWorkflowApprove, StateActive},
		{policy.PermWorkflowReopen, StateReturned},
		{policy.PermWorkflowSubmit, StateReview},
	}

	for _, step := range steps {
		updated, err := engine.Advance(instance.ID, step.action, actor, "", nil)
		require.NoError(t, err, "action %s", step.action)
		assert.Equal(t, step.want, updated.State)
	}

	final, err := engine.GetInstance(instance.ID)
	require.NoError(t, err)
	// Creation entry plus one entry per applied transition.
	assert.Len(t, final.History, len(steps)+1)
}

func TestEngine_Advance_ReturnPaths(t *testing.T) {
	engine, policyEngine := newTestEngine(t)
	actor := adminContext(t, policyEngine, "u1")
	instance := engine.CreateInstance("obj-1", "u1", "t1", nil)

	_, err := engine.Advance(instance.ID, policy.PermWorkflowSubmit, actor, "", nil)
	require.NoError(t, err)

	returned, err := engine.Advance(instance.ID, policy.PermWorkflowReturn, actor, "needs work", nil)
	require.NoError(t, err)
	assert.Equal(t, StateDraft, returned.State)

	_, err = engine.Advance(instance.ID, policy.PermWorkflowSubmit, actor, "", nil)
	require.NoError(t, err)
	_, err = engine.Advance(instance.ID, policy.PermWorkflowReview, actor, "", nil)
	require.NoError(t, err)

	backToReview, err := engine.Advance(instance.ID, policy.PermWorkflowReturn, actor, "", nil)
	require.NoError(t, err)
	assert.Equal(t, StateReview, backToReview.State)
}

func TestEngine_Advance_InvalidTransition(t *testing.T) {
	engine, policyEngine := newTestEngine(t)
	actor := adminContext(t, policyEngine, "u1")
	instance := engine.CreateInstance("obj-1", "u1", "t1", nil)

	invalid := []string{
		policy.PermWorkflowApprove,
		policy.PermWorkflowReview,
		policy.PermWorkflowReturn,
		policy.PermWorkflowReopen,
	}
	for _, action := range invalid {
		_, err := engine.Advance(instance.ID, action, actor, "", nil)
		var transitionErr *InvalidTransitionError
		require.ErrorAs(t, err, &transitionErr, "action %s from draft", action)
		assert.Equal(t, StateDraft, transitionErr.State)
		assert.Equal(t, action, transitionErr.Action)
	}

	// Nothing was applied.
	unchanged, err := engine.GetInstance(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDraft, unchanged.State)
	assert.Len(t, unchanged.History, 1)
}

func TestEngine_Advance_PermissionDeniedLeavesInstanceUntouched(t *testing.T) {
	engine, _ := newTestEngine(t)
	instance := engine.CreateInstance("obj-1", "u1", "t1", nil)

	// Actor has no roles and no object grants.
	actor := policy.AccessContext{UserID: "nobody", TenantID: "t1"}
	_, err := engine.Advance(instance.ID, policy.PermWorkflowSubmit, actor, "", nil)

	var deniedErr *PermissionDeniedError
	require.ErrorAs(t, err, &deniedErr)
	assert.Equal(t, policy.PermWorkflowSubmit, deniedErr.Action)
	assert.Equal(t, "nobody", deniedErr.UserID)
	assert.Empty(t, deniedErr.Permissions)

	unchanged, getErr := engine.GetInstance(instance.ID)
	require.NoError(t, getErr)
	assert.Equal(t, StateDraft, unchanged.State)
	assert.Len(t, unchanged.History, 1)
}

func TestEngine_Advance_UnknownWorkflow(t *testing.T) {
	engine, policyEngine := newTestEngine(t)
	actor := adminContext(t, policyEngine, "u1")

	_, err := engine.Advance("missing", policy.PermWorkflowSubmit, actor, "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, engine.ListInstances())
}

func TestEngine_Advance_AppendsExactlyOneHistoryEntry(t *testing.T) {
	engine, policyEngine := newTestEngine(t)
	actor := adminContext(t, policyEngine, "approver-1")
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return fixed }

	instance := engine.CreateInstance("obj-1", "u1", "t1", nil)
	updated, err := engine.Advance(instance.ID, policy.PermWorkflowSubmit, actor, "ready", nil)
	require.NoError(t, err)

	require.Len(t, updated.History, 2)
	entry := updated.History[1]
	assert.Equal(t, policy.PermWorkflowSubmit, entry.Action)
	assert.Equal(t, "approver-1", entry.ActorID)
	assert.Equal(t, StateReview, entry.ResultingState)
	assert.Equal(t, "ready", entry.Comment)
	assert.Equal(t, fixed, entry.Timestamp)
}

func TestEngine_Advance_ManagerApprovalScenario(t *testing.T) {
	policyEngine := policy.NewEngine()
	policy.RegisterDefaults(policyEngine)
	engine := NewEngine(policyEngine)

	// u1 manages u2 and holds the manager role; the objective belongs to u2.
	require.NoError(t, policyEngine.AssignRole("u1", policy.RoleManager))
	require.NoError(t, policyEngine.AssignRole("u2", policy.RoleGlobalAdmin))
	manager := policy.AccessContext{UserID: "u1", TenantID: "t1", ManagerOf: []string{"u2"}}
	owner := policy.AccessContext{UserID: "u2", TenantID: "t1"}

	instance := engine.CreateInstance("obj-1", "u2", "t1", []string{"ws-1"})
	_, err := engine.Advance(instance.ID, policy.PermWorkflowSubmit, owner, "", nil)
	require.NoError(t, err)
	_, err = engine.Advance(instance.ID, policy.PermWorkflowReview, owner, "", nil)
	require.NoError(t, err)

	approved, err := engine.Advance(instance.ID, policy.PermWorkflowApprove, manager, "lgtm", nil)
	require.NoError(t, err)
	assert.Equal(t, StateActive, approved.State)

	// A manager of someone else is denied for this resource.
	stranger := policy.AccessContext{UserID: "u3", TenantID: "t1", ManagerOf: []string{"u9"}}
	require.NoError(t, policyEngine.AssignRole("u3", policy.RoleManager))
	_, err = engine.Advance(instance.ID, policy.PermWorkflowReopen, stranger, "", nil)
	var deniedErr *PermissionDeniedError
	assert.ErrorAs(t, err, &deniedErr)
}

func TestEngine_Advance_ObjectRoleOverride(t *testing.T) {
	policyEngine := policy.NewEngine()
	policyEngine.ConfigureObjectRolePermissions(policy.ObjectRoleEditor, []string{policy.PermWorkflowSubmit})
	engine := NewEngine(policyEngine)

	instance := engine.CreateInstance("obj-1", "u1", "t1", nil)
	policyEngine.GrantObjectRole("u2", "obj-1", policy.ObjectRoleEditor)

	actor := policy.AccessContext{UserID: "u2", TenantID: "t1"}

	// Stored grant applies when object roles are omitted.
	updated, err := engine.Advance(instance.ID, policy.PermWorkflowSubmit, actor, "", nil)
	require.NoError(t, err)
	assert.Equal(t, StateReview, updated.State)

	// An explicit empty override suppresses the stored grant.
	_, err = engine.Advance(instance.ID, policy.PermWorkflowReturn, actor, "", []policy.ObjectRole{})
	var deniedErr *PermissionDeniedError
	assert.ErrorAs(t, err, &deniedErr)
}

func TestEngine_Restore(t *testing.T) {
	engine, policyEngine := newTestEngine(t)
	actor := adminContext(t, policyEngine, "u1")

	engine.Restore(&Instance{
		ID:          "wf-1",
		ObjectiveID: "obj-1",
		OwnerID:     "u1",
		TenantID:    "t1",
		State:       StateReview,
		History: []HistoryEntry{
			{Action: policy.PermWorkflowCreate, ActorID: "u1", ResultingState: StateDraft},
			{Action: policy.PermWorkflowSubmit, ActorID: "u1", ResultingState: StateReview},
		},
	})

	updated, err := engine.Advance("wf-1", policy.PermWorkflowReview, actor, "", nil)
	require.NoError(t, err)
	assert.Equal(t, StateManagerApproval, updated.State)
	assert.Len(t, updated.History, 3)
}

func TestEngine_CloneIsolation(t *testing.T) {
	engine, _ := newTestEngine(t)
	instance := engine.CreateInstance("obj-1", "u1", "t1", []string{"ws-1"})

	// Mutating the returned copy must not affect engine state.
	instance.State = StateActive
	instance.History = append(instance.History, HistoryEntry{Action: "tamper"})
	instance.WorkspaceIDs[0] = "tampered"

	fresh, err := engine.GetInstance(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDraft, fresh.State)
	assert.Len(t, fresh.History, 1)
	assert.Equal(t, []string{"ws-1"}, fresh.WorkspaceIDs)
}

func TestEngine_Advance_ConcurrentCallsSerialize(t *testing.T) {
	engine, policyEngine := newTestEngine(t)
	actor := adminContext(t, policyEngine, "u1")

	const workers = 16
	instance := engine.CreateInstance("obj-1", "u1", "t1", nil)

	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Advance(instance.ID, policy.PermWorkflowSubmit, actor, "", nil); err == nil {
				successes <- struct{}{}
			} else {
				var transitionErr *InvalidTransitionError
				if !errors.As(err, &transitionErr) {
					panic(fmt.Sprintf("unexpected error: %v", err))
				}
			}
		}()
	}
	wg.Wait()
	close(successes)

	// Exactly one submit can apply from draft; the rest must observe REVIEW
	// and fail the table lookup.
	assert.Len(t, successes, 1)

	final, err := engine.GetInstance(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, StateReview, final.State)
	assert.Len(t, final.History, 2)
}
