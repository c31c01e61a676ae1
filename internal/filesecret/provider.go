// Package filesecret resolves file:// and env:// secret references
package filesecret

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ylchen07/chefkit/internal/provider"
)

const (
	// FileScheme reads a secret from disk: file:///etc/chef/client.pem
	FileScheme = "file"
	// EnvScheme reads a secret from the environment: env://CHEF_CLIENT_KEY
	EnvScheme = "env"
)

// FileProvider reads secrets from files
type FileProvider struct{}

// NewFileProvider creates a FileProvider; it takes no settings
func NewFileProvider(*provider.Config) (provider.Provider, error) {
	return FileProvider{}, nil
}

// Name returns the provider name
func (FileProvider) Name() string { return "file" }

// GetSecret returns the file contents. Data bag secret files conventionally
// end with a newline that is not part of the secret, so trailing whitespace
// is removed.
func (FileProvider) GetSecret(_ context.Context, ref provider.Reference) ([]byte, error) {
	if ref.Path == "" {
		return nil, fmt.Errorf("file reference %q has no path", ref.Raw)
	}
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret file: %w", err)
	}
	return []byte(strings.TrimRight(string(data), " \t\r\n")), nil
}

// EnvProvider reads secrets from environment variables
type EnvProvider struct{}

// NewEnvProvider creates an EnvProvider; it takes no settings
func NewEnvProvider(*provider.Config) (provider.Provider, error) {
	return EnvProvider{}, nil
}

// Name returns the provider name
func (EnvProvider) Name() string { return "env" }

// GetSecret returns the variable's value; unset or empty variables are errors
func (EnvProvider) GetSecret(_ context.Context, ref provider.Reference) ([]byte, error) {
	value, ok := os.LookupEnv(ref.Path)
	if !ok || value == "" {
		return nil, fmt.Errorf("environment variable %s is not set", ref.Path)
	}
	return []byte(value), nil
}
