package stability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/connorhough/modelctl/internal/llm"
	"github.com/connorhough/modelctl/internal/options"
)

type fakeAPI struct {
	reqs []GenerateImageRequest
	resp *GenerateImageResponse
	err  error
}

func (f *fakeAPI) GenerateImage(ctx context.Context, req GenerateImageRequest) (*GenerateImageResponse, error) {
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

func policyDefaults() *options.Options {
	return &options.Options{
		Model: options.Ptr("sdxl"),
		Seed:  options.Ptr(7),
		Extension: &Options{
			N:           options.Ptr(1),
			Width:       options.Ptr(512),
			Height:      options.Ptr(512),
			CfgScale:    options.Ptr(7.0),
			Sampler:     options.Ptr("K_EULER"),
			Steps:       options.Ptr(30),
			StylePreset: options.Ptr("photographic"),
		},
	}
}

// Sampler tuning and seed are provider policy: caller values are ignored.
func TestMerge_LockedFieldsKeepDefaults(t *testing.T) {
	runtime := &options.Options{
		Seed:        options.Ptr(42),
		Temperature: options.Ptr(0.3),
		Extension: &Options{
			Width:       options.Ptr(1024),
			CfgScale:    options.Ptr(12.0),
			Sampler:     options.Ptr("DDIM"),
			Steps:       options.Ptr(50),
			StylePreset: options.Ptr("anime"),
		},
	}

	got := options.Merge(runtime, policyDefaults())

	if v := options.Value(got.Seed); v != 7 {
		t.Errorf("got seed %d, want 7", v)
	}
	if v := options.Value(got.Temperature); v != 0.3 {
		t.Errorf("got temperature %v, want 0.3", v)
	}
	want := &Options{
		N:           options.Ptr(1),
		Width:       options.Ptr(1024),
		Height:      options.Ptr(512),
		CfgScale:    options.Ptr(7.0),
		Sampler:     options.Ptr("K_EULER"),
		Steps:       options.Ptr(30),
		StylePreset: options.Ptr("photographic"),
	}
	if diff := cmp.Diff(want, got.Extension); diff != "" {
		t.Errorf("extension mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_LockedSeedWithPortableRuntime(t *testing.T) {
	got := options.Merge(&options.Options{Seed: options.Ptr(42)}, policyDefaults())
	if v := options.Value(got.Seed); v != 7 {
		t.Errorf("got seed %d, want 7", v)
	}
	if got.Provider() != ProviderStability {
		t.Errorf("got provider %q, want %q", got.Provider(), ProviderStability)
	}
}

func TestMerge_LockedSeedAbsentInDefaults(t *testing.T) {
	defaults := &options.Options{Extension: &Options{}}
	got := options.Merge(&options.Options{Seed: options.Ptr(42)}, defaults)
	if got.Seed != nil {
		t.Errorf("got seed %d, want absent", *got.Seed)
	}
}

func TestImageModel_Call(t *testing.T) {
	api := &fakeAPI{resp: &GenerateImageResponse{Artifacts: []Artifact{
		{Base64: "aGVsbG8=", FinishReason: "SUCCESS", Seed: 7},
	}}}
	m := NewImageModel(api, policyDefaults(), nil)

	prompt := llm.NewPrompt("a lighthouse at dusk", llm.WithMessages(llm.Message{
		Role:   llm.RoleUser,
		Text:   "blurry",
		Weight: options.Ptr(-1.0),
	}), llm.WithOptions(&options.Options{Seed: options.Ptr(99)}))

	resp, err := m.Call(context.Background(), prompt)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	wantResp := &ImageResponse{Images: []Image{{Base64: "aGVsbG8=", FinishReason: "SUCCESS", Seed: 7}}}
	if diff := cmp.Diff(wantResp, resp); diff != "" {
		t.Errorf("Call() mismatch (-want +got):\n%s", diff)
	}

	req := api.reqs[0]
	if req.Engine != "sdxl" {
		t.Errorf("got engine %q, want sdxl", req.Engine)
	}
	if options.Value(req.Seed) != 7 {
		t.Errorf("got seed %v, want 7", options.Value(req.Seed))
	}
	wantPrompts := []TextPrompt{
		{Text: "a lighthouse at dusk"},
		{Text: "blurry", Weight: options.Ptr(-1.0)},
	}
	if diff := cmp.Diff(wantPrompts, req.TextPrompts); diff != "" {
		t.Errorf("text prompts mismatch (-want +got):\n%s", diff)
	}
}

func TestImageModel_DefaultEngine(t *testing.T) {
	api := &fakeAPI{resp: &GenerateImageResponse{}}
	m := NewImageModel(api, nil, nil)
	if _, err := m.Call(context.Background(), llm.NewPrompt("cat")); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if api.reqs[0].Engine != DefaultEngine {
		t.Errorf("got engine %q, want %q", api.reqs[0].Engine, DefaultEngine)
	}
}

func TestClient_GenerateImage(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/generation/sdxl/text-to-image" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("got authorization %q", got)
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		_, _ = io.WriteString(w, `{"artifacts":[{"base64":"AA==","finishReason":"SUCCESS","seed":7}]}`)
	}))
	defer srv.Close()

	c, err := NewClient("key", srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	resp, err := c.GenerateImage(context.Background(), GenerateImageRequest{
		Engine:      "sdxl",
		TextPrompts: []TextPrompt{{Text: "cat"}},
		Steps:       options.Ptr(30),
	})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if len(resp.Artifacts) != 1 || resp.Artifacts[0].Seed != 7 {
		t.Errorf("got %+v", resp)
	}
	if gotBody["steps"] != 30.0 {
		t.Errorf("got steps %v, want 30", gotBody["steps"])
	}
	if _, ok := gotBody["seed"]; ok {
		t.Errorf("absent seed was sent: %v", gotBody["seed"])
	}
}

func TestClient_GenerateImageUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"missing key"}`)
	}))
	defer srv.Close()

	c, _ := NewClient("key", srv.URL, srv.Client())
	_, err := c.GenerateImage(context.Background(), GenerateImageRequest{Engine: "sdxl"})

	var perr *llm.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if perr.Provider != ProviderStability {
		t.Errorf("got provider %q", perr.Provider)
	}
}

func TestBuildRequest_ResponseFormat(t *testing.T) {
	tests := []struct {
		name       string
		ext        *Options
		wantAccept string
		wantErr    bool
	}{
		{name: "default is json", ext: &Options{}, wantAccept: FormatJSON},
		{name: "json", ext: &Options{ResponseFormat: options.Ptr(FormatJSON), N: options.Ptr(3)}, wantAccept: FormatJSON},
		{name: "png single image", ext: &Options{ResponseFormat: options.Ptr(FormatPNG), N: options.Ptr(1)}, wantAccept: FormatPNG},
		{name: "png with several images", ext: &Options{ResponseFormat: options.Ptr(FormatPNG), N: options.Ptr(2)}, wantErr: true},
		{name: "unknown format", ext: &Options{ResponseFormat: options.Ptr("b64_json")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := buildRequest(&options.Options{Extension: tt.ext}, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildRequest() error = %v", err)
			}
			if req.Accept != tt.wantAccept {
				t.Errorf("got accept %q, want %q", req.Accept, tt.wantAccept)
			}
		})
	}
}

func TestImageModel_CallRejectsFormatBeforeRequest(t *testing.T) {
	api := &fakeAPI{resp: &GenerateImageResponse{}}
	m := NewImageModel(api, nil, nil)

	prompt := llm.NewPrompt("cat", llm.WithOptions(&options.Options{
		Extension: &Options{ResponseFormat: options.Ptr("url")},
	}))
	if _, err := m.Call(context.Background(), prompt); err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(api.reqs) != 0 {
		t.Errorf("got %d requests, want 0", len(api.reqs))
	}
}

func TestClient_GenerateImagePNG(t *testing.T) {
	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", FormatPNG)
		w.Header().Set("Finish-Reason", "SUCCESS")
		w.Header().Set("Seed", "1234")
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	c, _ := NewClient("key", srv.URL, srv.Client())
	resp, err := c.GenerateImage(context.Background(), GenerateImageRequest{Engine: "sdxl", Accept: FormatPNG})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if gotAccept != FormatPNG {
		t.Errorf("got accept %q, want %q", gotAccept, FormatPNG)
	}
	want := &GenerateImageResponse{Artifacts: []Artifact{{Base64: "cG5n", FinishReason: "SUCCESS", Seed: 1234}}}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("GenerateImage() mismatch (-want +got):\n%s", diff)
	}
}
