package stability

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/connorhough/modelctl/internal/llm"
	"github.com/connorhough/modelctl/internal/options"
)

// Image is one generated image with its generation metadata.
type Image struct {
	Base64       string
	FinishReason string
	Seed         int64
}

// ImageResponse is the result of an image call.
type ImageResponse struct {
	Images []Image
}

// ImageModel generates images from weighted text prompts.
type ImageModel struct {
	api      API
	defaults *options.Options
	logger   *zap.Logger
}

// NewImageModel creates an image model. A nil defaults means an empty
// Stability option set.
func NewImageModel(api API, defaults *options.Options, logger *zap.Logger) *ImageModel {
	if defaults == nil {
		defaults = &options.Options{}
	}
	if defaults.Extension == nil {
		defaults = defaults.Clone()
		defaults.Extension = &Options{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageModel{api: api, defaults: defaults, logger: logger}
}

// Name returns the provider name
func (m *ImageModel) Name() string { return ProviderStability }

// DefaultOptions returns a copy of the model defaults
func (m *ImageModel) DefaultOptions() *options.Options { return m.defaults.Clone() }

// Call merges the prompt options over the defaults and generates images.
// Every message of the prompt becomes a text prompt with its weight.
func (m *ImageModel) Call(ctx context.Context, prompt llm.Prompt) (*ImageResponse, error) {
	eff := options.Merge(prompt.Options, m.defaults)
	req, err := buildRequest(eff, prompt.Messages)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("generate image", zap.String("engine", req.Engine), zap.Int("prompts", len(req.TextPrompts)))

	resp, err := llm.RetryWithBackoff(ctx, func(ctx context.Context) (*GenerateImageResponse, error) {
		return m.api.GenerateImage(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	out := &ImageResponse{Images: make([]Image, 0, len(resp.Artifacts))}
	for _, a := range resp.Artifacts {
		out.Images = append(out.Images, Image{Base64: a.Base64, FinishReason: a.FinishReason, Seed: a.Seed})
	}
	return out, nil
}

func buildRequest(eff *options.Options, messages []llm.Message) (GenerateImageRequest, error) {
	ext := Extension(eff)
	accept := options.Value(ext.ResponseFormat)
	switch accept {
	case "":
		accept = FormatJSON
	case FormatJSON:
	case FormatPNG:
		if options.Value(ext.N) > 1 {
			return GenerateImageRequest{}, fmt.Errorf("response format %s returns a single image, got n=%d", FormatPNG, *ext.N)
		}
	default:
		return GenerateImageRequest{}, fmt.Errorf("unsupported response format %q (want %s or %s)", accept, FormatJSON, FormatPNG)
	}

	req := GenerateImageRequest{
		Engine:             options.Value(eff.Model),
		Accept:             accept,
		Height:             ext.Height,
		Width:              ext.Width,
		CfgScale:           ext.CfgScale,
		ClipGuidancePreset: ext.ClipGuidancePreset,
		Sampler:            ext.Sampler,
		Samples:            ext.N,
		Seed:               eff.Seed,
		Steps:              ext.Steps,
		StylePreset:        ext.StylePreset,
	}
	if req.Engine == "" {
		req.Engine = DefaultEngine
	}
	for _, msg := range messages {
		req.TextPrompts = append(req.TextPrompts, TextPrompt{Text: msg.Text, Weight: msg.Weight})
	}
	return req, nil
}
