package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okrio/okrio/pkg/policy"
	"github.com/okrio/okrio/pkg/workflow"
)

type fakeInstanceStore struct {
	saved []*workflow.Instance
	err   error
}

func (f *fakeInstanceStore) SaveInstance(_ context.Context, instance *workflow.Instance) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, instance)
	return nil
}

func newWorkflowRouter(t *testing.T, instances InstanceStore) (*mux.Router, *workflow.Engine, *policy.Engine) {
	t.Helper()
	policyEngine := policy.NewEngine()
	policy.RegisterDefaults(policyEngine)
	engine := workflow.NewEngine(policyEngine)

	router := mux.NewRouter()
	NewWorkflowHandlers(engine, instances, nil, newTestLogger()).RegisterRoutes(router)
	return router, engine, policyEngine
}

func createTestInstance(t *testing.T, router *mux.Router) workflow.Instance {
	t.Helper()
	w := postJSON(t, router, "/api/v1/workflow/instances", CreateInstanceRequest{
		ObjectiveID:  "obj-1",
		OwnerID:      "u1",
		TenantID:     "t1",
		WorkspaceIDs: []string{"ws-1"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var instance workflow.Instance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &instance))
	return instance
}

func TestCreateInstance_API(t *testing.T) {
	store := &fakeInstanceStore{}
	router, _, _ := newWorkflowRouter(t, store)

	instance := createTestInstance(t, router)

	assert.NotEmpty(t, instance.ID)
	assert.Equal(t, workflow.StateDraft, instance.State)
	require.Len(t, instance.History, 1)
	assert.Equal(t, "Workflow created", instance.History[0].Comment)

	// Write-through persistence saw the new instance.
	require.Len(t, store.saved, 1)
	assert.Equal(t, instance.ID, store.saved[0].ID)
}

func TestCreateInstance_Validation(t *testing.T) {
	router, _, _ := newWorkflowRouter(t, nil)

	w := postJSON(t, router, "/api/v1/workflow/instances", CreateInstanceRequest{OwnerID: "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "objective_id is required")
}

func TestGetInstance_API(t *testing.T) {
	router, _, _ := newWorkflowRouter(t, nil)
	instance := createTestInstance(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/workflow/instances/"+instance.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got workflow.Instance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, instance.ID, got.ID)
}

func TestGetInstance_NotFound(t *testing.T) {
	router, _, _ := newWorkflowRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/workflow/instances/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "workflow not found")
}

func TestListInstances_API(t *testing.T) {
	router, _, _ := newWorkflowRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/workflow/instances", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp InstancesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Instances)
	assert.Empty(t, resp.Instances)

	createTestInstance(t, router)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/workflow/instances", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Instances, 1)
}

func TestApplyAction_Applied(t *testing.T) {
	store := &fakeInstanceStore{}
	router, _, policyEngine := newWorkflowRouter(t, store)
	require.NoError(t, policyEngine.AssignRole("u1", policy.RoleGlobalAdmin))

	instance := createTestInstance(t, router)

	w := postJSON(t, router, "/api/v1/workflow/instances/"+instance.ID+"/actions", ActionRequest{
		Action:  policy.PermWorkflowSubmit,
		Context: policy.AccessContext{UserID: "u1", TenantID: "t1"},
		Comment: "ready for review",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var got workflow.Instance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, workflow.StateReview, got.State)
	require.Len(t, got.History, 2)
	assert.Equal(t, "ready for review", got.History[1].Comment)

	// Creation plus the applied action were persisted.
	assert.Len(t, store.saved, 2)
}

func TestApplyAction_Denied(t *testing.T) {
	router, _, _ := newWorkflowRouter(t, nil)
	instance := createTestInstance(t, router)

	w := postJSON(t, router, "/api/v1/workflow/instances/"+instance.ID+"/actions", ActionRequest{
		Action:  policy.PermWorkflowSubmit,
		Context: policy.AccessContext{UserID: "nobody", TenantID: "t1"},
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not permitted")
}

func TestApplyAction_InvalidTransition(t *testing.T) {
	router, _, policyEngine := newWorkflowRouter(t, nil)
	require.NoError(t, policyEngine.AssignRole("u1", policy.RoleGlobalAdmin))
	instance := createTestInstance(t, router)

	w := postJSON(t, router, "/api/v1/workflow/instances/"+instance.ID+"/actions", ActionRequest{
		Action:  policy.PermWorkflowApprove,
		Context: policy.AccessContext{UserID: "u1", TenantID: "t1"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not valid from state")
}

func TestApplyAction_NotFound(t *testing.T) {
	router, _, policyEngine := newWorkflowRouter(t, nil)
	require.NoError(t, policyEngine.AssignRole("u1", policy.RoleGlobalAdmin))

	w := postJSON(t, router, "/api/v1/workflow/instances/missing/actions", ActionRequest{
		Action:  policy.PermWorkflowSubmit,
		Context: policy.AccessContext{UserID: "u1", TenantID: "t1"},
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApplyAction_BadBody(t *testing.T) {
	router, _, _ := newWorkflowRouter(t, nil)
	instance := createTestInstance(t, router)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/workflow/instances/"+instance.ID+"/actions", bytes.NewReader([]byte("{bad")))
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/api/v1/workflow/instances/"+instance.ID+"/actions", ActionRequest{
		Context: policy.AccessContext{UserID: "u1"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "action is required")
}

func TestApplyAction_PersistFailure(t *testing.T) {
	store := &fakeInstanceStore{err: assert.AnError}
	router, _, _ := newWorkflowRouter(t, store)

	w := postJSON(t, router, "/api/v1/workflow/instances", CreateInstanceRequest{
		ObjectiveID: "obj-1",
		OwnerID:     "u1",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
