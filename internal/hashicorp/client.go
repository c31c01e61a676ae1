package hashicorp

import (
	"context"
	"fmt"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// Client wraps the HashiCorp Vault API client
type Client struct {
	client *vault.Client
}

// NewClient creates a new HashiCorp Vault client
// Empty arguments fall back to the standard Vault environment variables:
// - VAULT_ADDR: Vault server address (required)
// - VAULT_TOKEN: Authentication token (required)
// - VAULT_NAMESPACE: Vault namespace (optional, required for Vault Enterprise)
func NewClient(address, token, namespace string) (*Client, error) {
	// Create default config (reads from VAULT_ADDR, VAULT_CACERT, etc.)
	config := vault.DefaultConfig()
	if config.Error != nil {
		return nil, fmt.Errorf("failed to read Vault configuration: %w", config.Error)
	}
	if address != "" {
		config.Address = address
	}
	if config.Address == "" {
		return nil, fmt.Errorf("vault address not configured and VAULT_ADDR not set")
	}

	client, err := vault.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("vault token not configured and VAULT_TOKEN not set")
	}
	client.SetToken(token)

	if namespace == "" {
		namespace = os.Getenv("VAULT_NAMESPACE")
	}
	if namespace != "" {
		client.SetNamespace(namespace)
	}

	return &Client{
		client: client,
	}, nil
}

// GetSecret retrieves a secret from a KV v2 mount
func (c *Client) GetSecret(ctx context.Context, mountPath, secretPath string) (map[string]any, error) {
	// For KV v2, we need to use the data path
	path := fmt.Sprintf("%s/data/%s", strings.Trim(mountPath, "/"), strings.Trim(secretPath, "/"))

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret %s not found", path)
	}

	// KV v2 stores the actual secret data under the "data" key
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid secret data format at %s", path)
	}

	return data, nil
}

// Health checks the health of the Vault server
func (c *Client) Health(ctx context.Context) error {
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if !health.Initialized {
		return fmt.Errorf("vault is not initialized")
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}
