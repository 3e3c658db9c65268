// Package options holds the Option Set model shared by every provider and the
// engine that merges per-call options over a provider's defaults.
package options

import (
	"maps"
	"slices"
)

// Field names a portable option. Providers use it to declare fields that are
// pinned to their defaults.
type Field string

// Portable fields.
const (
	FieldModel            Field = "model"
	FieldTemperature      Field = "temperature"
	FieldTopP             Field = "top_p"
	FieldMaxTokens        Field = "max_tokens"
	FieldStop             Field = "stop"
	FieldSeed             Field = "seed"
	FieldFrequencyPenalty Field = "frequency_penalty"
	FieldPresencePenalty  Field = "presence_penalty"
	FieldTools            Field = "tools"
	FieldToolChoice       Field = "tool_choice"
	FieldToolContext      Field = "tool_context"
	FieldHTTPHeaders      Field = "http_headers"
)

// Tool describes a function the model may call.
type Tool struct {
	Name        string         `mapstructure:"name" yaml:"name"`
	Description string         `mapstructure:"description" yaml:"description,omitempty"`
	Parameters  map[string]any `mapstructure:"parameters" yaml:"parameters,omitempty"`
}

// Extension is the provider-specific tier of an Option Set.
//
// The receiver of MergeFrom is always the defaults side; runtime is
// guaranteed to report the same Provider. Implementations must not mutate
// either value.
type Extension interface {
	Provider() string
	Clone() Extension
	MergeFrom(runtime Extension) Extension
	LockedFields() []Field
}

// Options is the portable tier of an Option Set. A nil pointer or nil
// collection means the field is absent.
type Options struct {
	Model            *string           `mapstructure:"model" yaml:"model,omitempty"`
	Temperature      *float64          `mapstructure:"temperature" yaml:"temperature,omitempty"`
	TopP             *float64          `mapstructure:"top_p" yaml:"top_p,omitempty"`
	MaxTokens        *int              `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	Stop             []string          `mapstructure:"stop" yaml:"stop,omitempty"`
	Seed             *int              `mapstructure:"seed" yaml:"seed,omitempty"`
	FrequencyPenalty *float64          `mapstructure:"frequency_penalty" yaml:"frequency_penalty,omitempty"`
	PresencePenalty  *float64          `mapstructure:"presence_penalty" yaml:"presence_penalty,omitempty"`
	Tools            []Tool            `mapstructure:"tools" yaml:"tools,omitempty"`
	ToolChoice       *string           `mapstructure:"tool_choice" yaml:"tool_choice,omitempty"`
	ToolContext      map[string]any    `mapstructure:"tool_context" yaml:"tool_context,omitempty"`
	HTTPHeaders      map[string]string `mapstructure:"http_headers" yaml:"http_headers,omitempty"`

	// Extension is nil for vendor-neutral call sites.
	Extension Extension `mapstructure:"-" yaml:"provider_options,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Value dereferences p, returning the zero value when p is nil.
func Value[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// Provider returns the capability tag of the extension, or "" when o carries
// only portable fields.
func (o *Options) Provider() string {
	if o == nil || o.Extension == nil {
		return ""
	}
	return o.Extension.Provider()
}

// Clone returns a deep copy of o. Clone of nil is an empty set.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	c := &Options{
		Model:            ClonePtr(o.Model),
		Temperature:      ClonePtr(o.Temperature),
		TopP:             ClonePtr(o.TopP),
		MaxTokens:        ClonePtr(o.MaxTokens),
		Stop:             slices.Clone(o.Stop),
		Seed:             ClonePtr(o.Seed),
		FrequencyPenalty: ClonePtr(o.FrequencyPenalty),
		PresencePenalty:  ClonePtr(o.PresencePenalty),
		Tools:            cloneTools(o.Tools),
		ToolChoice:       ClonePtr(o.ToolChoice),
		ToolContext:      CloneMap(o.ToolContext),
		HTTPHeaders:      maps.Clone(o.HTTPHeaders),
	}
	if o.Extension != nil {
		c.Extension = o.Extension.Clone()
	}
	return c
}

// ClonePtr returns a fresh pointer holding *p, or nil.
func ClonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CloneMap deep-copies m, descending into nested maps and slices of any.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneTools(tools []Tool) []Tool {
	if tools == nil {
		return nil
	}
	out := make([]Tool, len(tools))
	for i, t := range tools {
		out[i] = Tool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  CloneMap(t.Parameters),
		}
	}
	return out
}
