// Package gemini implements the Gemini chat provider over the genai SDK.
package gemini

import "github.com/connorhough/modelctl/internal/options"

// ProviderGemini is the capability tag of Gemini options.
const ProviderGemini = "gemini"

// Options holds knobs only Gemini understands.
type Options struct {
	TopK              *float64 `mapstructure:"top_k" yaml:"top_k,omitempty"`
	CandidateCount    *int     `mapstructure:"candidate_count" yaml:"candidate_count,omitempty"`
	ResponseMIMEType  *string  `mapstructure:"response_mime_type" yaml:"response_mime_type,omitempty"`
	SystemInstruction *string  `mapstructure:"system_instruction" yaml:"system_instruction,omitempty"`
}

var _ options.Extension = (*Options)(nil)

// Provider implements options.Extension.
func (o *Options) Provider() string { return ProviderGemini }

// Clone implements options.Extension.
func (o *Options) Clone() options.Extension {
	return &Options{
		TopK:              options.ClonePtr(o.TopK),
		CandidateCount:    options.ClonePtr(o.CandidateCount),
		ResponseMIMEType:  options.ClonePtr(o.ResponseMIMEType),
		SystemInstruction: options.ClonePtr(o.SystemInstruction),
	}
}

// MergeFrom implements options.Extension; every field follows runtime precedence.
func (o *Options) MergeFrom(runtime options.Extension) options.Extension {
	r, ok := runtime.(*Options)
	if !ok {
		return o.Clone()
	}
	return &Options{
		TopK:              options.Pick(r.TopK, o.TopK),
		CandidateCount:    options.Pick(r.CandidateCount, o.CandidateCount),
		ResponseMIMEType:  options.Pick(r.ResponseMIMEType, o.ResponseMIMEType),
		SystemInstruction: options.Pick(r.SystemInstruction, o.SystemInstruction),
	}
}

// LockedFields implements options.Extension; nothing is locked.
func (o *Options) LockedFields() []options.Field { return nil }

// Extension returns the Gemini extension of opts, or an empty one.
func Extension(opts *options.Options) *Options {
	if opts != nil {
		if ext, ok := opts.Extension.(*Options); ok {
			return ext
		}
	}
	return &Options{}
}
