package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_NoDatabase(t *testing.T) {
	checker := NewHealthChecker(nil)

	status := checker.Check(context.Background())

	assert.Equal(t, StatusHealthy, status.Status)
	assert.Empty(t, status.Dependencies)
}

func TestHealthChecker_DatabaseHealthy(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	checker := NewHealthChecker(db)
	status := checker.Check(context.Background())

	assert.Equal(t, StatusHealthy, status.Status)
	require.Contains(t, status.Dependencies, "database")
	assert.Equal(t, StatusHealthy, status.Dependencies["database"].Status)
}

func TestHealthChecker_DatabaseUnhealthy(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	checker := NewHealthChecker(db)
	status := checker.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.NotEmpty(t, status.Dependencies["database"].Message)
}

func TestHealthRoutes(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	serveMux := http.NewServeMux()
	RegisterHealthRoutes(serveMux, NewHealthChecker(db))

	w := httptest.NewRecorder()
	serveMux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	serveMux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StatusHealthy, status.Status)
}

func TestHealthRoutes_Unready(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	serveMux := http.NewServeMux()
	RegisterHealthRoutes(serveMux, NewHealthChecker(db))

	w := httptest.NewRecorder()
	serveMux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
