// Package openai implements the OpenAI chat provider and its option extension.
package openai

import (
	"maps"

	"github.com/connorhough/modelctl/internal/options"
)

// ProviderOpenAI is the capability tag of OpenAI options.
const ProviderOpenAI = "openai"

// ResponseFormat selects the shape of the completion.
type ResponseFormat struct {
	Type string `mapstructure:"type" yaml:"type"`
}

// Options holds knobs only the OpenAI chat API understands.
type Options struct {
	N                   *int            `mapstructure:"n" yaml:"n,omitempty"`
	LogitBias           map[string]int  `mapstructure:"logit_bias" yaml:"logit_bias,omitempty"`
	Logprobs            *bool           `mapstructure:"logprobs" yaml:"logprobs,omitempty"`
	TopLogprobs         *int            `mapstructure:"top_logprobs" yaml:"top_logprobs,omitempty"`
	MaxCompletionTokens *int            `mapstructure:"max_completion_tokens" yaml:"max_completion_tokens,omitempty"`
	ResponseFormat      *ResponseFormat `mapstructure:"response_format" yaml:"response_format,omitempty"`
	User                *string         `mapstructure:"user" yaml:"user,omitempty"`
	ParallelToolCalls   *bool           `mapstructure:"parallel_tool_calls" yaml:"parallel_tool_calls,omitempty"`
}

var _ options.Extension = (*Options)(nil)

// Provider implements options.Extension.
func (o *Options) Provider() string { return ProviderOpenAI }

// Clone implements options.Extension.
func (o *Options) Clone() options.Extension {
	return &Options{
		N:                   options.ClonePtr(o.N),
		LogitBias:           maps.Clone(o.LogitBias),
		Logprobs:            options.ClonePtr(o.Logprobs),
		TopLogprobs:         options.ClonePtr(o.TopLogprobs),
		MaxCompletionTokens: options.ClonePtr(o.MaxCompletionTokens),
		ResponseFormat:      options.ClonePtr(o.ResponseFormat),
		User:                options.ClonePtr(o.User),
		ParallelToolCalls:   options.ClonePtr(o.ParallelToolCalls),
	}
}

// MergeFrom implements options.Extension; every field follows runtime precedence.
func (o *Options) MergeFrom(runtime options.Extension) options.Extension {
	r, ok := runtime.(*Options)
	if !ok {
		return o.Clone()
	}
	return &Options{
		N:                   options.Pick(r.N, o.N),
		LogitBias:           options.PickMap(r.LogitBias, o.LogitBias),
		Logprobs:            options.Pick(r.Logprobs, o.Logprobs),
		TopLogprobs:         options.Pick(r.TopLogprobs, o.TopLogprobs),
		MaxCompletionTokens: options.Pick(r.MaxCompletionTokens, o.MaxCompletionTokens),
		ResponseFormat:      options.Pick(r.ResponseFormat, o.ResponseFormat),
		User:                options.Pick(r.User, o.User),
		ParallelToolCalls:   options.Pick(r.ParallelToolCalls, o.ParallelToolCalls),
	}
}

// LockedFields implements options.Extension. OpenAI lets callers override everything.
func (o *Options) LockedFields() []options.Field { return nil }

// Extension returns the OpenAI extension of opts, or an empty one.
func Extension(opts *options.Options) *Options {
	if opts != nil {
		if ext, ok := opts.Extension.(*Options); ok {
			return ext
		}
	}
	return &Options{}
}
