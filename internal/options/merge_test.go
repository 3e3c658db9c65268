package options

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeExt is a minimal provider extension used to exercise the extension step.
type fakeExt struct {
	Name   string
	Steps  *int
	Style  *string
	Locked []Field
}

func (f *fakeExt) Provider() string { return f.Name }

func (f *fakeExt) Clone() Extension {
	return &fakeExt{Name: f.Name, Steps: ClonePtr(f.Steps), Style: ClonePtr(f.Style), Locked: f.Locked}
}

func (f *fakeExt) MergeFrom(runtime Extension) Extension {
	r := runtime.(*fakeExt)
	return &fakeExt{Name: f.Name, Steps: Pick(r.Steps, f.Steps), Style: Pick(r.Style, f.Style), Locked: f.Locked}
}

func (f *fakeExt) LockedFields() []Field { return f.Locked }

func TestMerge_NilRuntimeReturnsDefaults(t *testing.T) {
	defaults := &Options{
		Model:       Ptr("m1"),
		Temperature: Ptr(0.2),
		MaxTokens:   Ptr(256),
		Stop:        []string{"END"},
		ToolContext: map[string]any{"a": "0"},
		Extension:   &fakeExt{Name: "fake", Steps: Ptr(30)},
	}

	got := Merge(nil, defaults)

	if diff := cmp.Diff(defaults, got); diff != "" {
		t.Errorf("Merge(nil, D) mismatch (-want +got):\n%s", diff)
	}
	if got == defaults {
		t.Error("Merge(nil, D) returned the stored defaults pointer")
	}
	if got.Temperature == defaults.Temperature {
		t.Error("Merge(nil, D) shares scalar pointers with defaults")
	}
}

func TestMerge_FieldPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		runtime  *Options
		defaults *Options
		want     *Options
	}{
		{
			name:     "runtime temperature keeps default max tokens",
			runtime:  &Options{Temperature: Ptr(0.9)},
			defaults: &Options{Temperature: Ptr(0.2), MaxTokens: Ptr(256)},
			want:     &Options{Temperature: Ptr(0.9), MaxTokens: Ptr(256)},
		},
		{
			name:     "empty runtime inherits everything",
			runtime:  &Options{},
			defaults: &Options{Model: Ptr("llama3"), TopP: Ptr(0.8), Seed: Ptr(7)},
			want:     &Options{Model: Ptr("llama3"), TopP: Ptr(0.8), Seed: Ptr(7)},
		},
		{
			name:     "zero values are present values",
			runtime:  &Options{Temperature: Ptr(0.0), MaxTokens: Ptr(0)},
			defaults: &Options{Temperature: Ptr(0.7), MaxTokens: Ptr(512)},
			want:     &Options{Temperature: Ptr(0.0), MaxTokens: Ptr(0)},
		},
		{
			name:     "nil defaults",
			runtime:  &Options{Model: Ptr("gpt-4o")},
			defaults: nil,
			want:     &Options{Model: Ptr("gpt-4o")},
		},
		{
			name:     "penalties and tool choice",
			runtime:  &Options{PresencePenalty: Ptr(1.0), ToolChoice: Ptr("none")},
			defaults: &Options{FrequencyPenalty: Ptr(0.5), PresencePenalty: Ptr(0.1), ToolChoice: Ptr("auto")},
			want:     &Options{FrequencyPenalty: Ptr(0.5), PresencePenalty: Ptr(1.0), ToolChoice: Ptr("none")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.runtime, tt.defaults)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_CollectionsReplacedWhole(t *testing.T) {
	runtime := &Options{
		Stop:        []string{"STOP"},
		Tools:       []Tool{{Name: "search"}},
		HTTPHeaders: map[string]string{"X-Trace": "1"},
	}
	defaults := &Options{
		Stop:        []string{"END", "DONE"},
		Tools:       []Tool{{Name: "weather"}, {Name: "clock"}},
		HTTPHeaders: map[string]string{"X-Org": "acme", "X-Trace": "0"},
	}

	got := Merge(runtime, defaults)

	want := &Options{
		Stop:        []string{"STOP"},
		Tools:       []Tool{{Name: "search"}},
		HTTPHeaders: map[string]string{"X-Trace": "1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}

	t.Run("empty runtime slice still replaces", func(t *testing.T) {
		got := Merge(&Options{Stop: []string{}}, defaults)
		if len(got.Stop) != 0 || got.Stop == nil {
			t.Errorf("got Stop %v, want empty non-nil", got.Stop)
		}
	})
}

func TestMerge_ToolContextDeepMerge(t *testing.T) {
	tests := []struct {
		name     string
		runtime  map[string]any
		defaults map[string]any
		want     map[string]any
	}{
		{
			name:     "runtime key overwrites",
			runtime:  map[string]any{"a": "1"},
			defaults: map[string]any{"a": "0", "b": "2"},
			want:     map[string]any{"a": "1", "b": "2"},
		},
		{
			name:     "nested maps merge",
			runtime:  map[string]any{"user": map[string]any{"id": "u2"}},
			defaults: map[string]any{"user": map[string]any{"id": "u1", "tier": "pro"}},
			want:     map[string]any{"user": map[string]any{"id": "u2", "tier": "pro"}},
		},
		{
			name:     "runtime scalar replaces nested map",
			runtime:  map[string]any{"user": "anonymous"},
			defaults: map[string]any{"user": map[string]any{"id": "u1"}},
			want:     map[string]any{"user": "anonymous"},
		},
		{
			name:     "absent runtime context",
			runtime:  nil,
			defaults: map[string]any{"b": "2"},
			want:     map[string]any{"b": "2"},
		},
		{
			name:     "absent defaults context",
			runtime:  map[string]any{"a": "1"},
			defaults: nil,
			want:     map[string]any{"a": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(&Options{ToolContext: tt.runtime}, &Options{ToolContext: tt.defaults})
			if diff := cmp.Diff(tt.want, got.ToolContext); diff != "" {
				t.Errorf("ToolContext mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	runtime := &Options{
		Temperature: Ptr(0.9),
		ToolContext: map[string]any{"a": "1"},
		Extension:   &fakeExt{Name: "fake", Steps: Ptr(50)},
	}
	defaults := &Options{
		Temperature: Ptr(0.2),
		Stop:        []string{"END"},
		ToolContext: map[string]any{"a": "0", "nested": map[string]any{"k": "v"}},
		HTTPHeaders: map[string]string{"X-Org": "acme"},
		Extension:   &fakeExt{Name: "fake", Steps: Ptr(30), Style: Ptr("photographic")},
	}
	runtimeBefore := runtime.Clone()
	defaultsBefore := defaults.Clone()

	got := Merge(runtime, defaults)
	*got.Temperature = 2
	got.Stop[0] = "changed"
	got.ToolContext["a"] = "changed"
	got.ToolContext["nested"].(map[string]any)["k"] = "changed"
	got.HTTPHeaders["X-Org"] = "changed"
	*got.Extension.(*fakeExt).Style = "changed"

	if diff := cmp.Diff(runtimeBefore, runtime); diff != "" {
		t.Errorf("runtime mutated (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(defaultsBefore, defaults); diff != "" {
		t.Errorf("defaults mutated (-before +after):\n%s", diff)
	}
}

func TestMerge_ExtensionCapabilityGating(t *testing.T) {
	defaults := &Options{
		Model:     Ptr("sd-xl"),
		Extension: &fakeExt{Name: "fake", Steps: Ptr(30), Style: Ptr("anime")},
	}

	t.Run("portable runtime keeps default extension", func(t *testing.T) {
		got := Merge(&Options{Model: Ptr("sd-3")}, defaults)
		want := &Options{
			Model:     Ptr("sd-3"),
			Extension: &fakeExt{Name: "fake", Steps: Ptr(30), Style: Ptr("anime")},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("matching runtime extension merges per field", func(t *testing.T) {
		got := Merge(&Options{Extension: &fakeExt{Name: "fake", Steps: Ptr(50)}}, defaults)
		want := &fakeExt{Name: "fake", Steps: Ptr(50), Style: Ptr("anime")}
		if diff := cmp.Diff(Extension(want), got.Extension); diff != "" {
			t.Errorf("extension mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("foreign runtime extension is skipped", func(t *testing.T) {
		got := Merge(&Options{Extension: &fakeExt{Name: "other", Steps: Ptr(99)}}, defaults)
		want := &fakeExt{Name: "fake", Steps: Ptr(30), Style: Ptr("anime")}
		if diff := cmp.Diff(Extension(want), got.Extension); diff != "" {
			t.Errorf("extension mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("portable defaults drop runtime extension", func(t *testing.T) {
		got := Merge(&Options{Extension: &fakeExt{Name: "fake", Steps: Ptr(99)}}, &Options{})
		if got.Extension != nil {
			t.Errorf("got extension %#v, want nil", got.Extension)
		}
	})
}

func TestMerge_LockedFieldsIgnoreRuntime(t *testing.T) {
	defaults := &Options{
		Seed:        Ptr(7),
		Temperature: Ptr(0.2),
		Extension:   &fakeExt{Name: "fake", Locked: []Field{FieldSeed}},
	}

	for _, runtime := range []*Options{
		{Seed: Ptr(42), Temperature: Ptr(0.9)},
		{Seed: Ptr(42), Temperature: Ptr(0.9), Extension: &fakeExt{Name: "fake"}},
	} {
		got := Merge(runtime, defaults)
		if Value(got.Seed) != 7 {
			t.Errorf("seed: got %d, want 7 (locked)", Value(got.Seed))
		}
		if Value(got.Temperature) != 0.9 {
			t.Errorf("temperature: got %v, want 0.9", Value(got.Temperature))
		}
	}
}

func TestOptions_Provider(t *testing.T) {
	var nilOpts *Options
	if got := nilOpts.Provider(); got != "" {
		t.Errorf("nil options provider: got %q", got)
	}
	if got := (&Options{}).Provider(); got != "" {
		t.Errorf("portable options provider: got %q", got)
	}
	if got := (&Options{Extension: &fakeExt{Name: "fake"}}).Provider(); got != "fake" {
		t.Errorf("extension provider: got %q, want %q", got, "fake")
	}
}
