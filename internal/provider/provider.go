package provider

import (
	"context"
	"strings"
)

// Provider resolves secret references of one scheme (e.g. "vault", "azkv")
type Provider interface {
	// Name returns the provider name (e.g., "hashicorp", "azure")
	Name() string

	// GetSecret retrieves the value a reference points to
	GetSecret(ctx context.Context, ref Reference) ([]byte, error)
}

// Reference points at a secret: scheme://path#key. A value without a
// scheme is a literal and has an empty Scheme.
type Reference struct {
	Scheme string
	Path   string
	Key    string
	Raw    string
}

// IsLiteral reports whether the reference is a plain value
func (r Reference) IsLiteral() bool { return r.Scheme == "" }

// ParseReference splits s into scheme, path and key
func ParseReference(s string) Reference {
	ref := Reference{Raw: s}

	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || !validScheme(scheme) {
		return ref
	}
	ref.Scheme = strings.ToLower(scheme)

	if i := strings.LastIndex(rest, "#"); i >= 0 {
		ref.Key = rest[i+1:]
		rest = rest[:i]
	}
	ref.Path = rest
	return ref
}

func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// Config holds provider-specific configuration
type Config struct {
	Name     string         // Provider name
	Settings map[string]any // Provider-specific settings
}

// String returns a setting, or "" when it is absent
func (c *Config) String(key string) string {
	if c == nil || c.Settings == nil {
		return ""
	}
	v, _ := c.Settings[key].(string)
	return v
}
