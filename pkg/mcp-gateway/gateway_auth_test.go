package mcpgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikashloomba/mcp-supervisor-go/pkg/mcpmgr"
)

const (
	testAuthServer  = "https://auth.example.com/"
	testMetadataURL = "https://gateway.example.com/.well-known/oauth-protected-resource"
)

// acceptToken verifies only the token "valid" and counts successes.
func acceptToken(calls *atomic.Int32) auth.TokenVerifier {
	return func(_ context.Context, token string, _ *http.Request) (*auth.TokenInfo, error) {
		if token != "valid" {
			return nil, auth.ErrInvalidToken
		}
		if calls != nil {
			calls.Add(1)
		}
		return &auth.TokenInfo{Expiration: time.Now().Add(time.Minute)}, nil
	}
}

func postInitialize(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGatewayBearerToken(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gateway, err := NewGateway(mcpmgr.NewManager(nil), &Options{
		TokenVerifier: acceptToken(&calls),
		TokenOptions:  &auth.RequireBearerTokenOptions{ResourceMetadataURL: testMetadataURL},
	})
	require.NoError(t, err)
	h := gateway.Handler()

	for _, tc := range []struct {
		name   string
		token  string
		denied bool
	}{
		{name: "missing", denied: true},
		{name: "invalid", token: "nope", denied: true},
		{name: "valid", token: "valid"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := postInitialize(t, h, tc.token)
			if !tc.denied {
				assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
				return
			}
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer resource_metadata="+testMetadataURL, rec.Header().Get("WWW-Authenticate"))
		})
	}
	assert.EqualValues(t, 1, calls.Load())

	health := httptest.NewRecorder()
	h.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, health.Code, "health stays reachable without a token")
}

func TestGatewayWithoutVerifierIsOpen(t *testing.T) {
	t.Parallel()

	gateway, err := NewGateway(mcpmgr.NewManager(nil), nil)
	require.NoError(t, err)
	assert.NotEqual(t, http.StatusUnauthorized, postInitialize(t, gateway.Handler(), "").Code)
}

func TestGatewayTokenOptionsRequireVerifier(t *testing.T) {
	t.Parallel()

	_, err := NewGateway(mcpmgr.NewManager(nil), &Options{
		TokenOptions: &auth.RequireBearerTokenOptions{Scopes: []string{"required"}},
	})
	assert.Error(t, err)
}

func TestProtectedResourceMetadata(t *testing.T) {
	t.Parallel()

	gateway, err := NewGateway(mcpmgr.NewManager(nil), &Options{
		TokenVerifier: acceptToken(nil),
		TokenOptions: &auth.RequireBearerTokenOptions{
			ResourceMetadataURL: testMetadataURL,
			Scopes:              []string{"tools"},
		},
		AuthorizationServer: testAuthServer,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://gateway.test/.well-known/oauth-protected-resource", nil)
	rec := httptest.NewRecorder()
	gateway.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var md struct {
		Resource             string   `json:"resource"`
		AuthorizationServers []string `json:"authorization_servers"`
		ScopesSupported      []string `json:"scopes_supported"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&md))
	assert.Equal(t, "http://gateway.test/mcp", md.Resource)
	assert.Equal(t, []string{testAuthServer}, md.AuthorizationServers)
	assert.Equal(t, []string{"tools"}, md.ScopesSupported)
}

func TestProtectedResourceMetadataNeedsAuthorizationServer(t *testing.T) {
	t.Parallel()

	gateway, err := NewGateway(mcpmgr.NewManager(nil), &Options{TokenVerifier: acceptToken(nil)})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	gateway.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGatewayAdminRoutesRequireToken(t *testing.T) {
	t.Parallel()

	manager := mcpmgr.NewManager(nil)
	manager.AddServer("alpha", mcpmgr.ServerConfig{Command: "alpha", Enabled: mcpmgr.Bool(false)})
	gateway, err := NewGateway(manager, &Options{
		AdminAPI:      true,
		TokenVerifier: acceptToken(nil),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/servers/alpha/disable", nil)
	rec := httptest.NewRecorder()
	gateway.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/servers/alpha/disable", nil)
	req.Header.Set("Authorization", "Bearer valid")
	rec = httptest.NewRecorder()
	gateway.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
