package config

import (
	"fmt"

	"github.com/ylchen07/chefkit/pkg/models"
)

// GetInstance returns a Chef instance by name
func (c *Config) GetInstance(name string) (*Instance, error) {
	for i := range c.Instances {
		if c.Instances[i].Name == name {
			return &c.Instances[i], nil
		}
	}

	return nil, fmt.Errorf("instance '%s' not found", name)
}

// GetDefaultInstance returns the default Chef instance
func (c *Config) GetDefaultInstance() (*Instance, error) {
	// Look for instance marked as default
	for i := range c.Instances {
		if c.Instances[i].Default {
			return &c.Instances[i], nil
		}
	}

	// If no default, return first instance
	if len(c.Instances) > 0 {
		return &c.Instances[0], nil
	}

	return nil, fmt.Errorf("no instances configured")
}

// ResolveInstance returns the named instance, or the default one when name is empty
func (c *Config) ResolveInstance(name string) (*Instance, error) {
	if name == "" {
		return c.GetDefaultInstance()
	}
	return c.GetInstance(name)
}

// ListInstances returns a summary of every instance, without credentials
func (c *Config) ListInstances() []*models.InstanceInfo {
	infos := make([]*models.InstanceInfo, 0, len(c.Instances))
	for _, inst := range c.Instances {
		infos = append(infos, &models.InstanceInfo{
			Name:         inst.Name,
			ServerURL:    inst.ServerURL,
			Organization: inst.Organization,
			ClientName:   inst.ClientName,
			Default:      inst.Default,
		})
	}
	return infos
}

// IsProviderConfigured checks if a secret provider has settings
func (c *Config) IsProviderConfigured(providerName string) bool {
	switch providerName {
	case "azure":
		return c.Providers.Azure != nil
	case "hashicorp":
		return c.Providers.Hashicorp != nil
	default:
		return false
	}
}
