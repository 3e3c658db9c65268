// Package stability implements text-to-image generation against the
// Stability AI REST API.
package stability

import "github.com/connorhough/modelctl/internal/options"

// ProviderStability is the capability tag of Stability options.
const ProviderStability = "stability"

// Options holds the image generation knobs.
//
// The sampler tuning fields (CfgScale, ClipGuidancePreset, Sampler, Steps,
// StylePreset) and the portable Seed are provider policy: a merge always
// keeps the defaults' values for them, whatever the caller asks for.
type Options struct {
	N              *int    `mapstructure:"n" yaml:"n,omitempty"`
	Width          *int    `mapstructure:"width" yaml:"width,omitempty"`
	Height         *int    `mapstructure:"height" yaml:"height,omitempty"`
	ResponseFormat *string `mapstructure:"response_format" yaml:"response_format,omitempty"`

	CfgScale           *float64 `mapstructure:"cfg_scale" yaml:"cfg_scale,omitempty"`
	ClipGuidancePreset *string  `mapstructure:"clip_guidance_preset" yaml:"clip_guidance_preset,omitempty"`
	Sampler            *string  `mapstructure:"sampler" yaml:"sampler,omitempty"`
	Steps              *int     `mapstructure:"steps" yaml:"steps,omitempty"`
	StylePreset        *string  `mapstructure:"style_preset" yaml:"style_preset,omitempty"`
}

var _ options.Extension = (*Options)(nil)

// Provider implements options.Extension.
func (o *Options) Provider() string { return ProviderStability }

// Clone implements options.Extension.
func (o *Options) Clone() options.Extension {
	return &Options{
		N:                  options.ClonePtr(o.N),
		Width:              options.ClonePtr(o.Width),
		Height:             options.ClonePtr(o.Height),
		ResponseFormat:     options.ClonePtr(o.ResponseFormat),
		CfgScale:           options.ClonePtr(o.CfgScale),
		ClipGuidancePreset: options.ClonePtr(o.ClipGuidancePreset),
		Sampler:            options.ClonePtr(o.Sampler),
		Steps:              options.ClonePtr(o.Steps),
		StylePreset:        options.ClonePtr(o.StylePreset),
	}
}

// MergeFrom implements options.Extension. Runtime overrides the output
// shape only; sampler tuning is copied from the receiver.
func (o *Options) MergeFrom(runtime options.Extension) options.Extension {
	merged := o.Clone().(*Options)
	r, ok := runtime.(*Options)
	if !ok {
		return merged
	}
	merged.N = options.Pick(r.N, o.N)
	merged.Width = options.Pick(r.Width, o.Width)
	merged.Height = options.Pick(r.Height, o.Height)
	merged.ResponseFormat = options.Pick(r.ResponseFormat, o.ResponseFormat)
	return merged
}

// LockedFields implements options.Extension and pins the seed to the defaults.
func (o *Options) LockedFields() []options.Field {
	return []options.Field{options.FieldSeed}
}

// Extension returns the Stability extension of opts, or an empty one.
func Extension(opts *options.Options) *Options {
	if opts != nil {
		if ext, ok := opts.Extension.(*Options); ok {
			return ext
		}
	}
	return &Options{}
}
