package awx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGetProjectID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/projects/", r.URL.Path)
		assert.Equal(t, "Test project", r.URL.Query().Get("name"))
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		assert.Equal(t, "scm-inventory", r.Header.Get("User-Agent"))
		writeJSON(t, w, map[string]interface{}{
			"count":   1,
			"results": []map[string]interface{}{{"id": 42, "name": "Test project"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", Credentials{Token: "s3cret"}, true)
	id, err := c.GetProjectID(context.Background(), "Test project")
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestGetProjectID_SeveralMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{
			"count":   2,
			"results": []map[string]interface{}{{"id": 5}, {"id": 6}},
		})
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL, Credentials{}, true).GetProjectID(context.Background(), "dup")
	require.NoError(t, err)
	assert.Equal(t, 5, id)
}

func TestGetProjectID_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "password", pass)
		writeJSON(t, w, map[string]interface{}{"results": []map[string]interface{}{{"id": 7}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Credentials{Username: "admin", Password: "password"}, true)
	id, err := c.GetProjectID(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 7, id)
}

func TestGetProjectID_BareObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{"id": 9, "name": "p"})
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL, Credentials{}, true).GetProjectID(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 9, id)
}

func TestGetProjectID_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{"count": 0, "results": []interface{}{}})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, Credentials{}, true).GetProjectID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetProjectID_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Authentication credentials were not provided."}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, Credentials{}, true).GetProjectID(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestGetProjectID_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, Credentials{}, true).GetProjectID(context.Background(), "p")
	assert.Error(t, err)
}

func TestGetProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/projects/42/", r.URL.Path)
		writeJSON(t, w, map[string]interface{}{
			"id":         42,
			"local_path": "_42__test_project",
			"status":     "running",
			"related":    map[string]interface{}{"current_update": "/api/v2/project_updates/3/"},
			"summary_fields": map[string]interface{}{
				"current_update": map[string]interface{}{"id": 3, "status": "running"},
				"last_update":    map[string]interface{}{"id": 2, "status": "successful"},
			},
		})
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL, Credentials{}, true).GetProject(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "_42__test_project", p.LocalPath)
	assert.Equal(t, "running", p.Status)
	assert.True(t, p.Updating())
	require.NotNil(t, p.Summary)
	assert.Equal(t, &UpdateSummary{ID: 2, Status: "successful"}, p.Summary.LastUpdate)
}

// projectServer serves /api/v2/projects/<id>/ and reports an update in
// flight for the first busyChecks requests.
func projectServer(t *testing.T, busyChecks int32, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		related := map[string]interface{}{}
		if busyChecks < 0 || n <= busyChecks {
			related["current_update"] = "/api/v2/project_updates/1/"
		}
		writeJSON(t, w, map[string]interface{}{"id": 1, "local_path": "p", "related": related})
	}))
}

func TestWaitForProjectUpdate_Completed(t *testing.T) {
	var calls int32
	srv := projectServer(t, 2, &calls)
	defer srv.Close()

	res, err := NewClient(srv.URL, Credentials{}, true).
		WaitForProjectUpdate(context.Background(), 1, 120, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, SyncCompleted, res.State)
	assert.Equal(t, 3, res.Checks)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestWaitForProjectUpdate_BudgetExhausted(t *testing.T) {
	var calls int32
	srv := projectServer(t, -1, &calls)
	defer srv.Close()

	res, err := NewClient(srv.URL, Credentials{}, true).
		WaitForProjectUpdate(context.Background(), 1, 120, time.Microsecond)
	require.NoError(t, err)
	assert.Equal(t, SyncInProgress, res.State)
	assert.Equal(t, 120, res.Checks)
	assert.EqualValues(t, 120, atomic.LoadInt32(&calls))
}

func TestWaitForProjectUpdate_LookupFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, Credentials{}, true).
		WaitForProjectUpdate(context.Background(), 1, 120, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, SyncLookupFailed, res.State)
	assert.Equal(t, 1, res.Checks)
	assert.Error(t, res.Err)
}

func TestWaitForProjectUpdate_Cancelled(t *testing.T) {
	var calls int32
	srv := projectServer(t, -1, &calls)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, Credentials{}, true).
		WaitForProjectUpdate(ctx, 1, 120, time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSyncStateString(t *testing.T) {
	assert.Equal(t, "completed", SyncCompleted.String())
	assert.Equal(t, "in progress", SyncInProgress.String())
	assert.Equal(t, "lookup failed", SyncLookupFailed.String())
}
