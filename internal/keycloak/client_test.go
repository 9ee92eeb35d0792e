package keycloak

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tamshai/platform/tools/totp-reset/internal/config"
)

const testRealm = "tamshai-corp"

// writeJSON sets the content type explicitly: resty only unmarshals bodies
// it recognizes as JSON.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func tokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostFormValue("password") != "admin-pw" {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid user credentials",
		})
		return
	}
	writeJSON(w, map[string]any{
		"access_token": "test-token",
		"expires_in":   60,
		"token_type":   "Bearer",
	})
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	mux.HandleFunc("POST /realms/master/protocol/openid-connect/token", tokenHandler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		BaseURL:       srv.URL,
		Realm:         testRealm,
		AdminPassword: "admin-pw",
	}

	c, err := NewClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClientBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /realms/master/protocol/openid-connect/token", tokenHandler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		BaseURL:       srv.URL,
		Realm:         testRealm,
		AdminPassword: "wrong",
	}

	_, err := NewClient(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin login")
}

func TestFindUserExactMatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/realms/"+testRealm+"/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice.tester", r.URL.Query().Get("username"))
		assert.Equal(t, "true", r.URL.Query().Get("exact"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		writeJSON(w, []map[string]any{{
			"id":            "u-123",
			"username":      "alice.tester",
			"email":         "alice-tester@tamshai.com",
			"enabled":       true,
			"emailVerified": true,
		}})
	})

	c := newTestClient(t, mux)

	user, err := c.FindUser(context.Background(), "alice.tester")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u-123", user.ID)
	assert.Equal(t, "alice.tester", user.Username)
	assert.True(t, user.Enabled)
	assert.True(t, user.EmailVerified)
}

func TestFindUserNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/realms/"+testRealm+"/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{})
	})

	c := newTestClient(t, mux)

	user, err := c.FindUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestDeleteUser(t *testing.T) {
	var deletedID string

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /admin/realms/"+testRealm+"/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		deletedID = r.PathValue("id")
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, mux)

	require.NoError(t, c.DeleteUser(context.Background(), "u-123"))
	assert.Equal(t, "u-123", deletedID)
}

func TestDeleteUserFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /admin/realms/"+testRealm+"/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	c := newTestClient(t, mux)

	err := c.DeleteUser(context.Background(), "u-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "u-123")
}

func TestGetCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/realms/"+testRealm+"/users/{id}/credentials", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"id": "c-1", "type": "password"},
			{"id": "c-2", "type": "otp", "userLabel": "E2E Test Authenticator"},
		})
	})

	c := newTestClient(t, mux)

	creds, err := c.GetCredentials(context.Background(), "u-123")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, Credential{ID: "c-1", Type: "password"}, creds[0])
	assert.Equal(t, Credential{ID: "c-2", Type: "otp", Label: "E2E Test Authenticator"}, creds[1])
}
