package hashicorp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ylchen07/chefkit/internal/provider"
)

// Scheme is the reference scheme served by this provider: vault://mount/path#key
const Scheme = "vault"

// Provider resolves vault:// references against a KV v2 mount
type Provider struct {
	client *Client
}

// NewProvider creates a new HashiCorp Vault provider
// Configuration options:
//   - "address" (string): Vault server address
//   - "token" (string): Vault authentication token
//   - "namespace" (string): Vault namespace (optional, for Enterprise)
func NewProvider(cfg *provider.Config) (provider.Provider, error) {
	client, err := NewClient(cfg.String("address"), cfg.String("token"), cfg.String("namespace"))
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	return &Provider{
		client: client,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "hashicorp"
}

// GetSecret reads mount/path and returns one of its keys.
// Without an explicit key the priority is "value" > "password" > first key.
func (p *Provider) GetSecret(ctx context.Context, ref provider.Reference) ([]byte, error) {
	mount, path, ok := strings.Cut(strings.Trim(ref.Path, "/"), "/")
	if !ok || path == "" {
		return nil, fmt.Errorf("vault reference %q needs a mount and a path", ref.Raw)
	}

	data, err := p.client.GetSecret(ctx, mount, path)
	if err != nil {
		// A sealed or uninitialized vault explains the failure better than the read
		if herr := p.client.Health(ctx); herr != nil {
			return nil, fmt.Errorf("failed to get secret: %w", herr)
		}
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	value, err := pick(data, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("secret %s/%s: %w", mount, path, err)
	}
	return []byte(value), nil
}

func pick(data map[string]any, key string) (string, error) {
	if key != "" {
		v, ok := data[key]
		if !ok {
			return "", fmt.Errorf("no key %q", key)
		}
		return fmt.Sprintf("%v", v), nil
	}

	if v, ok := data["value"]; ok {
		return fmt.Sprintf("%v", v), nil
	}
	if v, ok := data["password"]; ok {
		return fmt.Sprintf("%v", v), nil
	}

	// Map order is random, take the first key alphabetically
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("secret is empty")
	}
	sort.Strings(keys)
	return fmt.Sprintf("%v", data[keys[0]]), nil
}
