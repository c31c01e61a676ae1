package hashicorp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylchen07/chefkit/internal/provider"
)

func newVault(t *testing.T) *httptest.Server {
	return newVaultWithHealth(t, map[string]any{"initialized": true, "sealed": false})
}

func newVaultWithHealth(t *testing.T, health map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// sys/health is unauthenticated
		if r.URL.Path == "/v1/sys/health" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(health)
			return
		}
		assert.Equal(t, "s.test", r.Header.Get("X-Vault-Token"))

		var data map[string]any
		switch r.URL.Path {
		case "/v1/secret/data/chef/forbidden":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		case "/v1/secret/data/chef/ci":
			data = map[string]any{"private_key": "PEM", "password": "pw"}
		case "/v1/secret/data/chef/databag":
			data = map[string]any{"b": "second", "a": "first"}
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"data": data, "metadata": map[string]any{"version": 1}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T) provider.Provider {
	t.Helper()
	return providerFor(t, newVault(t))
}

func providerFor(t *testing.T, srv *httptest.Server) provider.Provider {
	t.Helper()
	p, err := NewProvider(&provider.Config{
		Name:     "hashicorp",
		Settings: map[string]any{"address": srv.URL, "token": "s.test"},
	})
	require.NoError(t, err)
	return p
}

func TestGetSecret(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	v, err := p.GetSecret(ctx, provider.ParseReference("vault://secret/chef/ci#private_key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("PEM"), v)

	v, err = p.GetSecret(ctx, provider.ParseReference("vault://secret/chef/ci"))
	require.NoError(t, err)
	assert.Equal(t, []byte("pw"), v, "password wins without a key")

	v, err = p.GetSecret(ctx, provider.ParseReference("vault://secret/chef/databag"))
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), v)

	_, err = p.GetSecret(ctx, provider.ParseReference("vault://secret/chef/ci#missing"))
	assert.Error(t, err)

	_, err = p.GetSecret(ctx, provider.ParseReference("vault://secret/chef/nothing"))
	assert.Error(t, err)

	_, err = p.GetSecret(ctx, provider.ParseReference("vault://secret"))
	assert.Error(t, err)
}

func TestPick(t *testing.T) {
	v, err := pick(map[string]any{"value": "v", "password": "p"}, "")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = pick(map[string]any{}, "")
	assert.Error(t, err)
}

func TestNewProviderRequiresToken(t *testing.T) {
	t.Setenv("VAULT_TOKEN", "")
	_, err := NewProvider(&provider.Config{Settings: map[string]any{"address": "http://127.0.0.1:8200"}})
	assert.Error(t, err)
}

func TestGetSecretReportsSealedVault(t *testing.T) {
	p := providerFor(t, newVaultWithHealth(t, map[string]any{"initialized": true, "sealed": true}))

	_, err := p.GetSecret(context.Background(), provider.ParseReference("vault://secret/chef/forbidden"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault is sealed")
}

func TestGetSecretKeepsReadErrorWhenHealthy(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.GetSecret(context.Background(), provider.ParseReference("vault://secret/chef/forbidden"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
