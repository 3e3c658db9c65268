package options

import (
	"maps"
	"slices"
)

// Merge resolves the effective options for one call.
//
// Each portable field comes from runtime when present and from defaults
// otherwise. Stop, Tools and HTTPHeaders are replaced as a whole; ToolContext
// is merged key by key with runtime winning. The provider extension is merged
// only when runtime carries an extension for the same provider, otherwise the
// defaults' extension is used unchanged. Fields the defaults' extension lists
// in LockedFields always keep their default value.
//
// The result never aliases runtime or defaults.
func Merge(runtime, defaults *Options) *Options {
	if runtime == nil {
		return defaults.Clone()
	}
	if defaults == nil {
		defaults = &Options{}
	}

	eff := &Options{
		Model:            Pick(runtime.Model, defaults.Model),
		Temperature:      Pick(runtime.Temperature, defaults.Temperature),
		TopP:             Pick(runtime.TopP, defaults.TopP),
		MaxTokens:        Pick(runtime.MaxTokens, defaults.MaxTokens),
		Stop:             PickSlice(runtime.Stop, defaults.Stop),
		Seed:             Pick(runtime.Seed, defaults.Seed),
		FrequencyPenalty: Pick(runtime.FrequencyPenalty, defaults.FrequencyPenalty),
		PresencePenalty:  Pick(runtime.PresencePenalty, defaults.PresencePenalty),
		Tools:            cloneTools(pickTools(runtime.Tools, defaults.Tools)),
		ToolChoice:       Pick(runtime.ToolChoice, defaults.ToolChoice),
		ToolContext:      MergeContext(runtime.ToolContext, defaults.ToolContext),
		HTTPHeaders:      PickMap(runtime.HTTPHeaders, defaults.HTTPHeaders),
	}

	if defaults.Extension == nil {
		return eff
	}

	if runtime.Extension != nil && runtime.Extension.Provider() == defaults.Extension.Provider() {
		eff.Extension = defaults.Extension.MergeFrom(runtime.Extension)
	} else {
		eff.Extension = defaults.Extension.Clone()
	}

	for _, f := range defaults.Extension.LockedFields() {
		restore(eff, defaults, f)
	}

	return eff
}

// Pick returns a copy of runtime when it is set, else a copy of defaults.
func Pick[T any](runtime, defaults *T) *T {
	if runtime != nil {
		return ClonePtr(runtime)
	}
	return ClonePtr(defaults)
}

// PickSlice replaces defaults with runtime as a whole when runtime is set.
func PickSlice[T any](runtime, defaults []T) []T {
	if runtime != nil {
		return slices.Clone(runtime)
	}
	return slices.Clone(defaults)
}

// PickMap replaces defaults with runtime as a whole when runtime is set.
func PickMap[K comparable, V any](runtime, defaults map[K]V) map[K]V {
	if runtime != nil {
		return maps.Clone(runtime)
	}
	return maps.Clone(defaults)
}

func pickTools(runtime, defaults []Tool) []Tool {
	if runtime != nil {
		return runtime
	}
	return defaults
}

// MergeContext deep-merges two context maps. Keys in runtime overwrite keys in
// defaults; when both sides hold a nested map[string]any the nested maps are
// merged the same way.
func MergeContext(runtime, defaults map[string]any) map[string]any {
	if runtime == nil {
		return CloneMap(defaults)
	}
	if defaults == nil {
		return CloneMap(runtime)
	}

	out := CloneMap(defaults)
	for k, rv := range runtime {
		rm, rok := rv.(map[string]any)
		dm, dok := out[k].(map[string]any)
		if rok && dok {
			out[k] = MergeContext(rm, dm)
			continue
		}
		out[k] = cloneValue(rv)
	}
	return out
}

func restore(eff, defaults *Options, f Field) {
	switch f {
	case FieldModel:
		eff.Model = ClonePtr(defaults.Model)
	case FieldTemperature:
		eff.Temperature = ClonePtr(defaults.Temperature)
	case FieldTopP:
		eff.TopP = ClonePtr(defaults.TopP)
	case FieldMaxTokens:
		eff.MaxTokens = ClonePtr(defaults.MaxTokens)
	case FieldStop:
		eff.Stop = slices.Clone(defaults.Stop)
	case FieldSeed:
		eff.Seed = ClonePtr(defaults.Seed)
	case FieldFrequencyPenalty:
		eff.FrequencyPenalty = ClonePtr(defaults.FrequencyPenalty)
	case FieldPresencePenalty:
		eff.PresencePenalty = ClonePtr(defaults.PresencePenalty)
	case FieldTools:
		eff.Tools = cloneTools(defaults.Tools)
	case FieldToolChoice:
		eff.ToolChoice = ClonePtr(defaults.ToolChoice)
	case FieldToolContext:
		eff.ToolContext = CloneMap(defaults.ToolContext)
	case FieldHTTPHeaders:
		eff.HTTPHeaders = maps.Clone(defaults.HTTPHeaders)
	}
}
