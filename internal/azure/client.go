package azure

import (
	"context"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// Client reads secrets from Azure Key Vault
type Client struct {
	cred           azcore.TokenCredential
	subscriptionID string
	resourceGroup  string

	mu      sync.Mutex
	vaults  map[string]string
	secrets map[string]*azsecrets.Client
}

// NewClient creates a client using the default Azure credential chain
// (environment, managed identity, Azure CLI)
func NewClient(subscriptionID, resourceGroup string) (*Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return NewClientWithCredential(cred, subscriptionID, resourceGroup), nil
}

// NewClientWithCredential creates a client with an explicit credential
func NewClientWithCredential(cred azcore.TokenCredential, subscriptionID, resourceGroup string) *Client {
	return &Client{
		cred:           cred,
		subscriptionID: subscriptionID,
		resourceGroup:  resourceGroup,
		vaults:         make(map[string]string),
		secrets:        make(map[string]*azsecrets.Client),
	}
}

// VaultURL returns the data plane URL of a vault. With a subscription and
// resource group it asks the management API; otherwise it uses the public
// cloud naming scheme.
func (c *Client) VaultURL(ctx context.Context, vaultName string) (string, error) {
	c.mu.Lock()
	cached, ok := c.vaults[vaultName]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", vaultName)
	if c.subscriptionID != "" && c.resourceGroup != "" {
		vaults, err := armkeyvault.NewVaultsClient(c.subscriptionID, c.cred, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create vaults client: %w", err)
		}
		resp, err := vaults.Get(ctx, c.resourceGroup, vaultName, nil)
		if err != nil {
			return "", fmt.Errorf("failed to look up vault %s: %w", vaultName, err)
		}
		if resp.Properties == nil || resp.Properties.VaultURI == nil {
			return "", fmt.Errorf("vault %s has no URI", vaultName)
		}
		vaultURL = *resp.Properties.VaultURI
	}

	c.mu.Lock()
	c.vaults[vaultName] = vaultURL
	c.mu.Unlock()
	return vaultURL, nil
}

// GetSecret retrieves a secret value. An empty version means the latest.
func (c *Client) GetSecret(ctx context.Context, vaultName, secretName, version string) (string, error) {
	client, err := c.secretsClient(ctx, vaultName)
	if err != nil {
		return "", err
	}

	resp, err := client.GetSecret(ctx, secretName, version, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s from %s: %w", secretName, vaultName, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret %s in %s has no value", secretName, vaultName)
	}
	return *resp.Value, nil
}

func (c *Client) secretsClient(ctx context.Context, vaultName string) (*azsecrets.Client, error) {
	vaultURL, err := c.VaultURL(ctx, vaultName)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.secrets[vaultURL]; ok {
		return client, nil
	}
	client, err := azsecrets.NewClient(vaultURL, c.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets client for %s: %w", vaultURL, err)
	}
	c.secrets[vaultURL] = client
	return client, nil
}
