// Package ollama talks to an Ollama server: model management for the
// provisioning poller and chat completions.
package ollama

import (
	"fmt"

	"github.com/connorhough/modelctl/internal/options"
)

// ProviderOllama is the capability tag of Ollama options.
const ProviderOllama = "ollama"

// PullStrategy decides when a chat model pulls its model before use.
type PullStrategy string

const (
	PullAlways      PullStrategy = "always"
	PullWhenMissing PullStrategy = "when_missing"
	PullNever       PullStrategy = "never"
)

// ParsePullStrategy validates s. An empty string selects PullNever.
func ParsePullStrategy(s string) (PullStrategy, error) {
	switch PullStrategy(s) {
	case "", PullNever:
		return PullNever, nil
	case PullAlways, PullWhenMissing:
		return PullStrategy(s), nil
	default:
		return "", fmt.Errorf("invalid pull strategy %q (want always, when_missing or never)", s)
	}
}

// Options holds runtime parameters of the Ollama model runner.
type Options struct {
	NumCtx        *int     `mapstructure:"num_ctx" yaml:"num_ctx,omitempty"`
	NumGPU        *int     `mapstructure:"num_gpu" yaml:"num_gpu,omitempty"`
	TopK          *int     `mapstructure:"top_k" yaml:"top_k,omitempty"`
	MinP          *float64 `mapstructure:"min_p" yaml:"min_p,omitempty"`
	RepeatPenalty *float64 `mapstructure:"repeat_penalty" yaml:"repeat_penalty,omitempty"`
	// KeepAlive is a Go duration string, e.g. "5m".
	KeepAlive *string `mapstructure:"keep_alive" yaml:"keep_alive,omitempty"`
	// Format is "json" or a JSON schema document.
	Format *string `mapstructure:"format" yaml:"format,omitempty"`
}

var _ options.Extension = (*Options)(nil)

// Provider implements options.Extension.
func (o *Options) Provider() string { return ProviderOllama }

// Clone implements options.Extension.
func (o *Options) Clone() options.Extension {
	return &Options{
		NumCtx:        options.ClonePtr(o.NumCtx),
		NumGPU:        options.ClonePtr(o.NumGPU),
		TopK:          options.ClonePtr(o.TopK),
		MinP:          options.ClonePtr(o.MinP),
		RepeatPenalty: options.ClonePtr(o.RepeatPenalty),
		KeepAlive:     options.ClonePtr(o.KeepAlive),
		Format:        options.ClonePtr(o.Format),
	}
}

// MergeFrom implements options.Extension; every field follows runtime precedence.
func (o *Options) MergeFrom(runtime options.Extension) options.Extension {
	r, ok := runtime.(*Options)
	if !ok {
		return o.Clone()
	}
	return &Options{
		NumCtx:        options.Pick(r.NumCtx, o.NumCtx),
		NumGPU:        options.Pick(r.NumGPU, o.NumGPU),
		TopK:          options.Pick(r.TopK, o.TopK),
		MinP:          options.Pick(r.MinP, o.MinP),
		RepeatPenalty: options.Pick(r.RepeatPenalty, o.RepeatPenalty),
		KeepAlive:     options.Pick(r.KeepAlive, o.KeepAlive),
		Format:        options.Pick(r.Format, o.Format),
	}
}

// LockedFields implements options.Extension; nothing is locked.
func (o *Options) LockedFields() []options.Field { return nil }

// Extension returns the Ollama extension of opts, or an empty one.
func Extension(opts *options.Options) *Options {
	if opts != nil {
		if ext, ok := opts.Extension.(*Options); ok {
			return ext
		}
	}
	return &Options{}
}

// runnerOptions flattens the effective options into the runner's option map.
func runnerOptions(eff *options.Options) map[string]any {
	ext := Extension(eff)
	m := map[string]any{}
	set := func(key string, v any, ok bool) {
		if ok {
			m[key] = v
		}
	}
	set("temperature", options.Value(eff.Temperature), eff.Temperature != nil)
	set("top_p", options.Value(eff.TopP), eff.TopP != nil)
	set("num_predict", options.Value(eff.MaxTokens), eff.MaxTokens != nil)
	set("seed", options.Value(eff.Seed), eff.Seed != nil)
	set("frequency_penalty", options.Value(eff.FrequencyPenalty), eff.FrequencyPenalty != nil)
	set("presence_penalty", options.Value(eff.PresencePenalty), eff.PresencePenalty != nil)
	set("stop", eff.Stop, eff.Stop != nil)
	set("num_ctx", options.Value(ext.NumCtx), ext.NumCtx != nil)
	set("num_gpu", options.Value(ext.NumGPU), ext.NumGPU != nil)
	set("top_k", options.Value(ext.TopK), ext.TopK != nil)
	set("min_p", options.Value(ext.MinP), ext.MinP != nil)
	set("repeat_penalty", options.Value(ext.RepeatPenalty), ext.RepeatPenalty != nil)
	if len(m) == 0 {
		return nil
	}
	return m
}
