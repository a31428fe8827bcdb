package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/org/fleetadmin/internal/audit"
	"github.com/org/fleetadmin/internal/backup"
	"github.com/org/fleetadmin/internal/credential"
	"github.com/org/fleetadmin/internal/crypto"
	"github.com/org/fleetadmin/internal/records"
	"github.com/org/fleetadmin/internal/session"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSeedHandle   = "root_admin"
	testSeedPassword = "Admin_123?"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := storage.NewMemoryStore()
	key, err := crypto.GenerateRootKey()
	require.NoError(t, err)
	codec, err := crypto.NewCodec(key)
	require.NoError(t, err)

	creds := credential.NewService(store, codec)
	recorder := audit.NewRecorder(store, codec, audit.DefaultThreshold, audit.DefaultWindow)
	backups := backup.NewManager(store)
	codes := backup.NewCodeIssuer(store, backups, recorder)
	travellers := records.NewTravellerService(store, codec)
	scooters := records.NewScooterService(store)

	cfg := session.Config{
		SeedHandle:    testSeedHandle,
		SeedPassword:  testSeedPassword,
		SeedFirstName: "Root",
		SeedLastName:  "Admin",
	}
	mgr := session.NewManager(store, creds, recorder, backups, codes, travellers, scooters, cfg)
	require.NoError(t, mgr.Bootstrap(context.Background(), cfg))

	srv := NewServer(mgr, Config{})
	ts := httptest.NewServer(srv.BuildRouter())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Session-Token", token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func loginToken(t *testing.T, ts *httptest.Server, handle, password string) string {
	t.Helper()
	resp, body := doJSON(t, ts, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"handle": handle, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, ts, http.MethodGet, "/v1/sys/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodGet, "/v1/scooters", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, "/v1/scooters", "fas_bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSearchAndProfileOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	root := loginToken(t, ts, testSeedHandle, testSeedPassword)

	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/scooters", root, map[string]any{
		"brand": "Segway", "model": "Ninebot E2", "serial_number": "SN0001AB90",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/scooters", root, map[string]any{
		"brand": "NIU", "model": "KQi3", "serial_number": "SN0002CD34",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodGet, "/v1/scooters?q=niu", root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hits, _ := body["scooters"].([]any)
	assert.Len(t, hits, 1)

	resp, _ = doJSON(t, ts, http.MethodGet, "/v1/scooters?q=x", root, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/travellers", root, map[string]any{
		"first_name": "Tessa", "last_name": "Rider", "email": "tessa@example.org",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, ts, http.MethodGet, "/v1/travellers?q=tessa", root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	matches, _ := body["travellers"].([]any)
	require.Len(t, matches, 1)

	// Profile update: an engineer may edit only their own names.
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/accounts", root, map[string]any{
		"handle": "se1", "password": "Engineer_77!", "role": "service_engineer",
		"first_name": "Egon", "last_name": "Wrench",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	se := loginToken(t, ts, "se1", "Engineer_77!")

	resp, _ = doJSON(t, ts, http.MethodPut, "/v1/accounts/se1/profile", se, map[string]any{
		"first_name": "Egonia", "last_name": "Spanner",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPut, "/v1/accounts/"+testSeedHandle+"/profile", se, map[string]any{
		"first_name": "Hij", "last_name": "Acked",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLoginBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"handle": testSeedHandle, "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	root := loginToken(t, ts, testSeedHandle, testSeedPassword)

	resp, body := doJSON(t, ts, http.MethodPost, "/v1/accounts", root, map[string]any{
		"handle": "sa1", "password": "Sysadmin_99!", "role": "system_admin",
		"first_name": "Sana", "last_name": "Adminova",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "sa1", body["handle"])

	// Duplicate handle conflicts.
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/accounts", root, map[string]any{
		"handle": "sa1", "password": "Other_123!", "role": "system_admin",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	sa := loginToken(t, ts, "sa1", "Sysadmin_99!")

	// A system admin cannot create a peer.
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/accounts", sa, map[string]any{
		"handle": "sa2", "password": "Sysadmin_99!", "role": "system_admin",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = doJSON(t, ts, http.MethodGet, "/v1/accounts", root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	accounts := body["accounts"].([]any)
	assert.Len(t, accounts, 2)

	resp, _ = doJSON(t, ts, http.MethodDelete, "/v1/accounts/sa1", root, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The seed account is undeletable.
	resp, _ = doJSON(t, ts, http.MethodDelete, "/v1/accounts/"+testSeedHandle, root, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestScooterPermissionsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	root := loginToken(t, ts, testSeedHandle, testSeedPassword)

	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/accounts", root, map[string]any{
		"handle": "se1", "password": "Engineer_77!", "role": "service_engineer",
		"first_name": "Egon", "last_name": "Wrench",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	se := loginToken(t, ts, "se1", "Engineer_77!")

	// Engineers cannot add scooters.
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/scooters", se, map[string]any{
		"brand": "Segway", "model": "Ninebot E2", "serial_number": "SN0001AB90",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodPost, "/v1/scooters", root, map[string]any{
		"brand": "Segway", "model": "Ninebot E2", "serial_number": "SN0001AB90",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := int64(body["id"].(float64))

	// Duplicate serial conflicts.
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/scooters", root, map[string]any{
		"brand": "Segway", "model": "Ninebot E2", "serial_number": "SN0001AB90",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Engineers may update telemetry.
	resp, body = doJSON(t, ts, http.MethodPatch, fmt.Sprintf("/v1/scooters/%d/telemetry", id), se, map[string]any{
		"charge": 72,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(72), body["charge"])

	// But not delete.
	resp, _ = doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/v1/scooters/%d", id), se, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBackupAndRestoreCodeOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	root := loginToken(t, ts, testSeedHandle, testSeedPassword)

	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/accounts", root, map[string]any{
		"handle": "sa1", "password": "Sysadmin_99!", "role": "system_admin",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sa := loginToken(t, ts, "sa1", "Sysadmin_99!")

	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/scooters", root, map[string]any{
		"brand": "NIU", "model": "KQi3", "serial_number": "SN0002CD34",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodPost, "/v1/backups", root, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	backupID := body["id"].(string)

	// System admins cannot issue restore codes.
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/restore-codes", sa, map[string]any{
		"backup_id": backupID, "target_handle": "sa1",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = doJSON(t, ts, http.MethodPost, "/v1/restore-codes", root, map[string]any{
		"backup_id": backupID, "target_handle": "sa1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code := body["code"].(string)
	require.NotEmpty(t, code)

	// Drift, then restore through the code as the target admin.
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/scooters", root, map[string]any{
		"brand": "NIU", "model": "KQi3", "serial_number": "SN0003EF56",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/restore-codes/redeem", sa, map[string]any{"code": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, ts, http.MethodGet, "/v1/scooters", root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["scooters"].([]any), 1)

	// Second redemption of the same code is rejected.
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/restore-codes/redeem", sa, map[string]any{"code": code})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAuditLogOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	root := loginToken(t, ts, testSeedHandle, testSeedPassword)

	// Generate a failed login for the log.
	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"handle": testSeedHandle, "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodGet, "/v1/audit-log", root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := body["entries"].([]any)
	require.NotEmpty(t, entries)

	var sawFailure bool
	for _, e := range entries {
		entry := e.(map[string]any)
		if entry["description"] == "Failed login attempt" {
			sawFailure = true
		}
	}
	assert.True(t, sawFailure)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	ts := newTestServer(t)
	root := loginToken(t, ts, testSeedHandle, testSeedPassword)

	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/auth/logout", root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, "/v1/auth/whoami", root, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
