// Package providers implements the provider factory.
package providers

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/connorhough/modelctl/internal/config"
	"github.com/connorhough/modelctl/internal/llm"
	"github.com/connorhough/modelctl/internal/llm/gemini"
	"github.com/connorhough/modelctl/internal/llm/ollama"
	"github.com/connorhough/modelctl/internal/llm/openai"
	"github.com/connorhough/modelctl/internal/llm/stability"
	"github.com/connorhough/modelctl/internal/options"
	"github.com/connorhough/modelctl/internal/provision"
)

// Names lists the supported providers
var Names = []string{ollama.ProviderOllama, openai.ProviderOpenAI, gemini.ProviderGemini, stability.ProviderStability}

// NewExtension returns an empty extension for the named provider
func NewExtension(name string) (options.Extension, error) {
	switch name {
	case ollama.ProviderOllama:
		return &ollama.Options{}, nil
	case openai.ProviderOpenAI:
		return &openai.Options{}, nil
	case gemini.ProviderGemini:
		return &gemini.Options{}, nil
	case stability.ProviderStability:
		return &stability.Options{}, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// DefaultOptions loads the configured default Option Set of a provider
func DefaultOptions(name string) (*options.Options, error) {
	ext, err := NewExtension(name)
	if err != nil {
		return nil, err
	}
	return config.LoadDefaults(name, ext)
}

// ResolveDefaults loads the default Option Set of cfg.Provider. cfg.Model
// (the global or per-command model key) fills the model only when the
// provider's own options leave it unset.
func ResolveDefaults(cfg *config.ProviderConfig) (*options.Options, error) {
	defaults, err := DefaultOptions(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.Model != "" && defaults.Model == nil {
		defaults.Model = options.Ptr(cfg.Model)
	}
	return defaults, nil
}

// Factory creates and caches provider instances
type Factory struct {
	logger *zap.Logger
	chat   map[string]llm.ChatModel
	image  *stability.ImageModel
	mu     sync.RWMutex
}

// NewFactory creates a new provider factory
func NewFactory(logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		logger: logger,
		chat:   make(map[string]llm.ChatModel),
	}
}

// ChatModel returns the chat model of cfg.Provider, built from its configured
// settings and the defaults of ResolveDefaults
func (f *Factory) ChatModel(ctx context.Context, cfg *config.ProviderConfig) (llm.ChatModel, error) {
	name := cfg.Provider
	key := name + "/" + cfg.Model

	f.mu.RLock()
	if model, ok := f.chat[key]; ok {
		f.mu.RUnlock()
		return model, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if model, ok := f.chat[key]; ok {
		return model, nil
	}

	defaults, err := ResolveDefaults(cfg)
	if err != nil {
		return nil, err
	}
	logger := f.logger.Named(name)

	var model llm.ChatModel
	switch name {
	case ollama.ProviderOllama:
		model, err = newOllamaChat(defaults, logger)
	case openai.ProviderOpenAI:
		model, err = newOpenAIChat(defaults, logger)
	case gemini.ProviderGemini:
		model, err = newGeminiChat(ctx, defaults, logger)
	default:
		return nil, fmt.Errorf("provider '%s' does not support chat", name)
	}
	if err != nil {
		return nil, err
	}

	f.chat[key] = model
	return model, nil
}

// ImageModel returns the Stability image model
func (f *Factory) ImageModel() (*stability.ImageModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.image != nil {
		return f.image, nil
	}

	settings, err := config.LoadProviderSettings(stability.ProviderStability, stability.APIKeyEnvVar)
	if err != nil {
		return nil, err
	}
	defaults, err := DefaultOptions(stability.ProviderStability)
	if err != nil {
		return nil, err
	}
	client, err := stability.NewClient(settings.APIKey, settings.BaseURL, nil)
	if err != nil {
		return nil, err
	}

	f.image = stability.NewImageModel(client, defaults, f.logger.Named(stability.ProviderStability))
	return f.image, nil
}

// Poller returns a provisioning poller for the configured Ollama server.
// overrides are applied after the configured settings.
func (f *Factory) Poller(overrides ...provision.Option) (*provision.Poller, error) {
	settings, err := config.LoadProviderSettings(ollama.ProviderOllama, "")
	if err != nil {
		return nil, err
	}
	client, err := ollama.NewClient(settings.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	return newPoller(client, settings, f.logger.Named("provision"), overrides...), nil
}

func newPoller(client provision.Client, s *config.ProviderSettings, logger *zap.Logger, overrides ...provision.Option) *provision.Poller {
	opts := []provision.Option{
		provision.WithLogger(logger),
		provision.WithMaxAttempts(s.MaxAttempts),
		provision.WithMaxDuration(s.MaxDuration),
	}
	if s.PollInterval > 0 {
		opts = append(opts, provision.WithPollInterval(s.PollInterval))
	}
	return provision.New(client, append(opts, overrides...)...)
}

func newOllamaChat(defaults *options.Options, logger *zap.Logger) (llm.ChatModel, error) {
	settings, err := config.LoadProviderSettings(ollama.ProviderOllama, "")
	if err != nil {
		return nil, err
	}
	strategy, err := ollama.ParsePullStrategy(settings.PullStrategy)
	if err != nil {
		return nil, err
	}
	client, err := ollama.NewClient(settings.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	return ollama.NewChatModel(client, defaults,
		ollama.WithPullStrategy(strategy),
		ollama.WithPoller(newPoller(client, settings, logger)),
		ollama.WithLogger(logger),
	), nil
}

func newOpenAIChat(defaults *options.Options, logger *zap.Logger) (llm.ChatModel, error) {
	settings, err := config.LoadProviderSettings(openai.ProviderOpenAI, openai.APIKeyEnvVar)
	if err != nil {
		return nil, err
	}
	client, err := openai.NewClient(settings.APIKey, settings.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	return openai.NewChatModel(client, defaults, logger), nil
}

func newGeminiChat(ctx context.Context, defaults *options.Options, logger *zap.Logger) (llm.ChatModel, error) {
	settings, err := config.LoadProviderSettings(gemini.ProviderGemini, gemini.APIKeyEnvVar)
	if err != nil {
		return nil, err
	}
	client, err := gemini.NewClient(ctx, settings.APIKey)
	if err != nil {
		return nil, err
	}
	return gemini.NewChatModel(client, defaults, logger), nil
}
