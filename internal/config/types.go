package config

import "time"

// Config represents the complete application configuration
type Config struct {
	Instances []Instance `mapstructure:"instances"`
	Paging    Paging     `mapstructure:"paging"`
	HTTP      HTTP       `mapstructure:"http"`
	Output    Output     `mapstructure:"output"`
	Providers Providers  `mapstructure:"providers"`
}

// Instance is one Chef server organization and the identity used to reach it.
// ClientKey and DataBagSecret are secret references (file://, env://,
// vault://, azkv://) or literal values.
type Instance struct {
	Name          string `mapstructure:"name"`
	ServerURL     string `mapstructure:"server_url"`
	Organization  string `mapstructure:"organization"`
	ClientName    string `mapstructure:"client_name"`
	ClientKey     string `mapstructure:"client_key"`
	SignVersion   string `mapstructure:"sign_version"`
	ChefVersion   string `mapstructure:"chef_version"`
	APIVersion    int    `mapstructure:"api_version"`
	DataBagSecret string `mapstructure:"data_bag_secret"`
	Default       bool   `mapstructure:"default"`
}

// Paging holds search pagination settings
type Paging struct {
	PageSize       int `mapstructure:"page_size"`
	FilterPageSize int `mapstructure:"filter_page_size"`
	Workers        int `mapstructure:"workers"`
}

// HTTP holds transport settings
type HTTP struct {
	RetryMax int           `mapstructure:"retry_max"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Output holds display settings
type Output struct {
	Format string `mapstructure:"format"`
}

// Providers configures the secret resolvers
type Providers struct {
	Azure     *AzureConfig     `mapstructure:"azure"`
	Hashicorp *HashicorpConfig `mapstructure:"hashicorp"`
}

// AzureConfig holds Azure Key Vault settings. With a resource group the
// vault URI is looked up through the management API.
type AzureConfig struct {
	SubscriptionID string `mapstructure:"subscription_id"`
	ResourceGroup  string `mapstructure:"resource_group"`
}

// HashicorpConfig holds Hashicorp Vault settings
type HashicorpConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	Namespace string `mapstructure:"namespace"`
}
