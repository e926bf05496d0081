package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stafflink/dirsync/internal/directory"
	"github.com/stafflink/dirsync/internal/models"
	memorystore "github.com/stafflink/dirsync/internal/store/memory"
	"github.com/stafflink/dirsync/internal/reconcile"
)

type apiFixture struct {
	tenants *memorystore.TenantStore
	locks   *memorystore.LockStore
	dir     *directory.Static
	srv     *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		tenants: memorystore.NewTenantStore(),
		locks:   memorystore.NewLockStore(),
		dir:     directory.NewStatic(),
	}
	runs := memorystore.NewSyncRunStore()
	orch := reconcile.NewOrchestrator(
		f.tenants,
		memorystore.NewEmployeeStore(),
		runs,
		f.locks,
		f.dir,
		reconcile.OrchestratorConfig{},
	)

	f.srv = httptest.NewServer(NewServer(orch, runs, Config{}).Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *apiFixture) addTenant(t *testing.T, domain string) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{
		Name:          "Acme",
		PrimaryDomain: domain,
		SyncEnabled:   true,
		Active:        true,
	}
	require.NoError(t, f.tenants.Create(context.Background(), tenant))
	return tenant
}

func doJSON(t *testing.T, method, url string, out any) int {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestServer_SyncTenant(t *testing.T) {
	f := newAPIFixture(t)
	tenant := f.addTenant(t, "acme.com")
	f.dir.SetUsers("acme.com", []models.RemoteUser{
		{ID: "g-1", PrimaryEmail: "jane.doe@acme.com"},
	})

	var run models.SyncRun
	code := doJSON(t, http.MethodPost, f.srv.URL+"/v1/tenants/"+tenant.TenantID.String()+"/sync", &run)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, models.RunCompleted, run.Status)
	require.Equal(t, 1, run.Counters.Created)
}

func TestServer_SyncTenantErrors(t *testing.T) {
	f := newAPIFixture(t)
	tenant := f.addTenant(t, "acme.com")

	t.Run("invalid id", func(t *testing.T) {
		code := doJSON(t, http.MethodPost, f.srv.URL+"/v1/tenants/not-a-uuid/sync", nil)
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		code := doJSON(t, http.MethodPost, f.srv.URL+"/v1/tenants/"+uuid.Must(uuid.NewV7()).String()+"/sync", nil)
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("sync in progress", func(t *testing.T) {
		require.NoError(t, f.locks.Acquire(context.Background(), tenant.TenantID, "other", time.Minute))
		defer func() {
			require.NoError(t, f.locks.Release(context.Background(), tenant.TenantID, "other"))
		}()

		var body map[string]string
		code := doJSON(t, http.MethodPost, f.srv.URL+"/v1/tenants/"+tenant.TenantID.String()+"/sync", &body)
		require.Equal(t, http.StatusConflict, code)
		require.Contains(t, body["message"], "in progress")
	})
}

func TestServer_Status(t *testing.T) {
	f := newAPIFixture(t)
	f.addTenant(t, "acme.com")

	var status reconcile.Status
	code := doJSON(t, http.MethodGet, f.srv.URL+"/v1/sync/status", &status)
	require.Equal(t, http.StatusOK, code)
	require.False(t, status.Running)
	require.Len(t, status.Tenants, 1)
	require.Equal(t, "acme.com", status.Tenants[0].PrimaryDomain)
}

func TestServer_RunHistory(t *testing.T) {
	f := newAPIFixture(t)
	tenant := f.addTenant(t, "acme.com")
	f.dir.SetUsers("acme.com", []models.RemoteUser{
		{ID: "g-1", PrimaryEmail: "jane.doe@acme.com"},
	})

	var run models.SyncRun
	code := doJSON(t, http.MethodPost, f.srv.URL+"/v1/tenants/"+tenant.TenantID.String()+"/sync", &run)
	require.Equal(t, http.StatusOK, code)

	t.Run("list runs", func(t *testing.T) {
		var body struct {
			Runs []models.SyncRun `json:"runs"`
		}
		code := doJSON(t, http.MethodGet, f.srv.URL+"/v1/tenants/"+tenant.TenantID.String()+"/runs", &body)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, body.Runs, 1)
		require.Equal(t, run.RunID, body.Runs[0].RunID)
	})

	t.Run("get run", func(t *testing.T) {
		var got models.SyncRun
		code := doJSON(t, http.MethodGet, f.srv.URL+"/v1/runs/"+run.RunID.String(), &got)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, run.RunID, got.RunID)
	})

	t.Run("unknown run", func(t *testing.T) {
		code := doJSON(t, http.MethodGet, f.srv.URL+"/v1/runs/"+uuid.Must(uuid.NewV7()).String(), nil)
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("bad limit", func(t *testing.T) {
		code := doJSON(t, http.MethodGet, f.srv.URL+"/v1/tenants/"+tenant.TenantID.String()+"/runs?limit=0", nil)
		require.Equal(t, http.StatusBadRequest, code)
	})
}

func TestServer_Health(t *testing.T) {
	f := newAPIFixture(t)

	var body map[string]string
	code := doJSON(t, http.MethodGet, f.srv.URL+"/healthz", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])
}
