// Package config provides configuration management functionality for modelctl.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/connorhough/modelctl/internal/options"
)

// GetValue retrieves a configuration value by key
func GetValue(key string) (string, error) {
	if !viper.IsSet(key) {
		return "", fmt.Errorf("key '%s' not found in configuration", key)
	}
	return viper.GetString(key), nil
}

// SetValue sets a configuration value by key and persists it to the config file
func SetValue(key string, value string) error {
	viper.Set(key, value)
	return viper.WriteConfig()
}

// ProviderConfig holds provider and model configuration
type ProviderConfig struct {
	Provider string
	Model    string
}

// ResolveProviderConfig resolves provider configuration for a command
// Precedence: command-specific config -> global config
// Flags are handled separately in command layer
func ResolveProviderConfig(commandName string) *ProviderConfig {
	cfg := &ProviderConfig{}

	commandProviderKey := fmt.Sprintf("commands.%s.provider", commandName)
	if viper.IsSet(commandProviderKey) {
		cfg.Provider = viper.GetString(commandProviderKey)
	} else {
		cfg.Provider = viper.GetString("provider")
	}

	commandModelKey := fmt.Sprintf("commands.%s.model", commandName)
	if viper.IsSet(commandModelKey) {
		cfg.Model = viper.GetString(commandModelKey)
	} else {
		cfg.Model = viper.GetString("model")
	}

	return cfg
}

// ApplyFlags applies flag overrides to config (called from command layer)
func (c *ProviderConfig) ApplyFlags(providerFlag, modelFlag string) {
	if providerFlag != "" {
		c.Provider = providerFlag
	}
	if modelFlag != "" {
		c.Model = modelFlag
	}
}

// ProviderSettings is the connection and provisioning block of a provider.
type ProviderSettings struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	PullStrategy string        `mapstructure:"pull_strategy"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	MaxDuration  time.Duration `mapstructure:"max_duration"`
}

// LoadProviderSettings reads providers.<provider>. When no API key is
// configured it falls back to the apiKeyEnv environment variable.
func LoadProviderSettings(provider, apiKeyEnv string) (*ProviderSettings, error) {
	s := &ProviderSettings{}
	if err := viper.UnmarshalKey("providers."+provider, s); err != nil {
		return nil, fmt.Errorf("invalid settings for provider '%s': %w", provider, err)
	}
	if s.APIKey == "" && apiKeyEnv != "" {
		s.APIKey = os.Getenv(apiKeyEnv)
	}
	return s, nil
}

// LoadDefaults reads the default Option Set of a provider from
// providers.<provider>.options. Portable fields sit directly under that key;
// provider-specific fields go under provider_options and are decoded into ext.
// The returned set carries ext as its extension; ext may be nil for a
// portable-only set.
func LoadDefaults(provider string, ext options.Extension) (*options.Options, error) {
	opts, err := decodeOptions(viper.GetViper(), "providers."+provider+".options", ext)
	if err != nil {
		return nil, fmt.Errorf("invalid options for provider '%s': %w", provider, err)
	}
	return opts, nil
}

// LoadOptionsFile reads an Option Set from a standalone YAML or JSON file laid
// out like a providers.<provider>.options block.
func LoadOptionsFile(path string, ext options.Extension) (*options.Options, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}
	opts, err := decodeOptions(v, "", ext)
	if err != nil {
		return nil, fmt.Errorf("invalid options file %s: %w", path, err)
	}
	return opts, nil
}

func decodeOptions(v *viper.Viper, key string, ext options.Extension) (*options.Options, error) {
	extKey := "provider_options"
	if key != "" {
		extKey = key + "." + extKey
	}

	opts := &options.Options{}
	if key == "" {
		if err := v.Unmarshal(opts); err != nil {
			return nil, err
		}
	} else if err := v.UnmarshalKey(key, opts); err != nil {
		return nil, err
	}

	if ext != nil {
		if err := v.UnmarshalKey(extKey, ext); err != nil {
			return nil, fmt.Errorf("provider_options: %w", err)
		}
		opts.Extension = ext
	}
	return opts, nil
}
