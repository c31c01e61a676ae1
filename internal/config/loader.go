package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/ylchen07/chefkit/pkg/session"
)

const (
	// DefaultConfigDir is the default directory for config files
	DefaultConfigDir = ".config/chefkit"
	// DefaultConfigName is the default config file name (without extension)
	DefaultConfigName = "config"
	// EnvPrefix prefixes every environment override
	EnvPrefix = "CHEFKIT"
)

var (
	// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
	envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)

	validFormats      = []string{"plain", "json", "yaml"}
	validSignVersions = []string{"", "1.0", "1.3"}
)

// Load loads configuration from file, environment variables, and defaults
// Configuration precedence (highest to lowest):
// 1. Environment variables (prefixed with CHEFKIT_)
// 2. Config file (~/.config/chefkit/config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := newViper()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir, DefaultConfigDir))

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("paging.page_size", 1000)
	v.SetDefault("paging.filter_page_size", 100)
	v.SetDefault("paging.workers", 4)

	v.SetDefault("http.retry_max", session.DefaultRetryMax)
	v.SetDefault("http.timeout", "30s")

	v.SetDefault("output.format", "plain")
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		floatToVersionHook,
	)
}

// floatToVersionHook keeps an unquoted "sign_version: 1.0" from decoding as "1"
func floatToVersionHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Float32, reflect.Float64:
		s := strconv.FormatFloat(reflect.ValueOf(data).Float(), 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	}
	return data, nil
}

// substituteEnvVars replaces ${VAR} or $VAR patterns with environment variable values
func substituteEnvVars(cfg *Config) {
	for i := range cfg.Instances {
		inst := &cfg.Instances[i]
		inst.ServerURL = expandEnvVars(inst.ServerURL)
		inst.Organization = expandEnvVars(inst.Organization)
		inst.ClientName = expandEnvVars(inst.ClientName)
		inst.ClientKey = expandEnvVars(inst.ClientKey)
		inst.DataBagSecret = expandEnvVars(inst.DataBagSecret)
	}

	if cfg.Providers.Azure != nil {
		cfg.Providers.Azure.SubscriptionID = expandEnvVars(cfg.Providers.Azure.SubscriptionID)
		cfg.Providers.Azure.ResourceGroup = expandEnvVars(cfg.Providers.Azure.ResourceGroup)
	}

	if cfg.Providers.Hashicorp != nil {
		hc := cfg.Providers.Hashicorp
		hc.Address = expandEnvVars(hc.Address)
		hc.Token = expandEnvVars(hc.Token)
		hc.Namespace = expandEnvVars(hc.Namespace)
	}
}

// expandEnvVars expands environment variables in a string
// Supports both ${VAR_NAME} and $VAR_NAME formats
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		// Return original if not found
		return match
	})
}

// validate validates the configuration
func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Instances))
	defaults := 0

	for i, inst := range cfg.Instances {
		if inst.Name == "" {
			return fmt.Errorf("instance at index %d has no name", i)
		}
		if seen[inst.Name] {
			return fmt.Errorf("instance '%s' is defined more than once", inst.Name)
		}
		seen[inst.Name] = true

		if inst.ServerURL == "" {
			return fmt.Errorf("instance '%s' has no server_url", inst.Name)
		}
		if inst.Organization == "" {
			return fmt.Errorf("instance '%s' has no organization", inst.Name)
		}
		if inst.ClientName == "" {
			return fmt.Errorf("instance '%s' has no client_name", inst.Name)
		}
		if inst.ClientKey == "" {
			return fmt.Errorf("instance '%s' has no client_key", inst.Name)
		}
		if !contains(validSignVersions, inst.SignVersion) {
			return fmt.Errorf("instance '%s' has unsupported sign_version '%s'", inst.Name, inst.SignVersion)
		}
		if inst.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("%d instances are marked as default", defaults)
	}

	if cfg.Paging.PageSize <= 0 || cfg.Paging.FilterPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if cfg.Paging.Workers <= 0 {
		return fmt.Errorf("paging.workers must be positive")
	}
	if cfg.HTTP.RetryMax < 0 {
		return fmt.Errorf("http.retry_max must not be negative")
	}
	if !contains(validFormats, cfg.Output.Format) {
		return fmt.Errorf("unknown output format '%s'", cfg.Output.Format)
	}

	if hc := cfg.Providers.Hashicorp; hc != nil && hc.Address == "" {
		return fmt.Errorf("hashicorp provider has no address")
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
