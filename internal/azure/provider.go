package azure

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ylchen07/chefkit/internal/provider"
)

// Scheme is the reference scheme served by this provider:
// azkv://vault-name/secret-name[/version]
const Scheme = "azkv"

// secretGetter is the part of Client the provider needs
type secretGetter interface {
	GetSecret(ctx context.Context, vaultName, secretName, version string) (string, error)
}

// Provider resolves azkv:// references against Azure Key Vault
type Provider struct {
	client secretGetter
}

// NewProvider creates a new Azure Key Vault provider
// Configuration options:
//   - "subscription_id" (string): Azure subscription ID
//   - "resource_group" (string): resource group holding the vaults
//
// If subscription_id is not provided in config, it is read from the
// AZURE_SUBSCRIPTION_ID environment variable. Without a resource group the
// vault URL is derived from its name.
func NewProvider(cfg *provider.Config) (provider.Provider, error) {
	subscriptionID := cfg.String("subscription_id")
	if subscriptionID == "" {
		subscriptionID = os.Getenv("AZURE_SUBSCRIPTION_ID")
	}

	client, err := NewClient(subscriptionID, cfg.String("resource_group"))
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &Provider{
		client: client,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "azure"
}

// GetSecret retrieves the secret a reference names
func (p *Provider) GetSecret(ctx context.Context, ref provider.Reference) ([]byte, error) {
	vaultName, secretName, version, err := splitPath(ref.Path)
	if err != nil {
		return nil, err
	}

	value, err := p.client.GetSecret(ctx, vaultName, secretName, version)
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func splitPath(path string) (vaultName, secretName, version string, err error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("azkv reference %q must be vault/secret[/version]", path)
	}
	if len(parts) == 3 {
		version = parts[2]
	}
	return parts[0], parts[1], version, nil
}
