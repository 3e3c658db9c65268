package stability

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/connorhough/modelctl/internal/llm"
	"github.com/connorhough/modelctl/internal/version"
)

const (
	// DefaultBaseURL is the public Stability AI endpoint.
	DefaultBaseURL = "https://api.stability.ai"

	// DefaultEngine is used when neither defaults nor the call name a model.
	DefaultEngine = "stable-diffusion-v1-6"

	APIKeyEnvVar = "STABILITY_API_KEY"
)

// Response formats, sent as the Accept header. FormatPNG returns the raw
// image and only supports a single sample.
const (
	FormatJSON = "application/json"
	FormatPNG  = "image/png"
)

// TextPrompt is one weighted prompt of a generation request.
type TextPrompt struct {
	Text   string   `json:"text"`
	Weight *float64 `json:"weight,omitempty"`
}

// GenerateImageRequest is the text-to-image request body.
type GenerateImageRequest struct {
	Engine             string       `json:"-"`
	Accept             string       `json:"-"`
	TextPrompts        []TextPrompt `json:"text_prompts"`
	Height             *int         `json:"height,omitempty"`
	Width              *int         `json:"width,omitempty"`
	CfgScale           *float64     `json:"cfg_scale,omitempty"`
	ClipGuidancePreset *string      `json:"clip_guidance_preset,omitempty"`
	Sampler            *string      `json:"sampler,omitempty"`
	Samples            *int         `json:"samples,omitempty"`
	Seed               *int         `json:"seed,omitempty"`
	Steps              *int         `json:"steps,omitempty"`
	StylePreset        *string      `json:"style_preset,omitempty"`
}

// Artifact is one generated image.
type Artifact struct {
	Base64       string `json:"base64"`
	FinishReason string `json:"finishReason"`
	Seed         int64  `json:"seed"`
}

// GenerateImageResponse is the text-to-image response body.
type GenerateImageResponse struct {
	Artifacts []Artifact `json:"artifacts"`
}

// API generates images. *Client implements it; tests supply fakes.
type API interface {
	GenerateImage(ctx context.Context, req GenerateImageRequest) (*GenerateImageResponse, error)
}

// Client calls the Stability AI v1 REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an API client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, llm.ErrAuthenticationFailed(ProviderStability,
			fmt.Errorf("API key is required (set %s environment variable)", APIKeyEnvVar))
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{apiKey: apiKey, baseURL: baseURL, http: httpClient}, nil
}

// GenerateImage posts req to the text-to-image endpoint of req.Engine.
func (c *Client) GenerateImage(ctx context.Context, req GenerateImageRequest) (*GenerateImageResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/generation/%s/text-to-image", c.baseURL, url.PathEscape(req.Engine))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	accept := req.Accept
	if accept == "" {
		accept = FormatJSON
	}
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, llm.ErrProviderNotAvailable(ProviderStability, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.ErrRequestFailed(ProviderStability, "generate", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(req.Engine, resp.StatusCode, data)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), FormatPNG) {
		return pngResponse(resp.Header, data), nil
	}

	var out GenerateImageResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, llm.ErrRequestFailed(ProviderStability, "generate", fmt.Errorf("failed to decode response: %w", err))
	}
	return &out, nil
}

// pngResponse wraps a raw image body as a single artifact. Generation
// metadata travels in the Finish-Reason and Seed headers.
func pngResponse(h http.Header, data []byte) *GenerateImageResponse {
	seed, _ := strconv.ParseInt(h.Get("Seed"), 10, 64)
	return &GenerateImageResponse{Artifacts: []Artifact{{
		Base64:       base64.StdEncoding.EncodeToString(data),
		FinishReason: h.Get("Finish-Reason"),
		Seed:         seed,
	}}}
}

func statusError(engine string, code int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	err := fmt.Errorf("status %d: %s", code, payload.Message)

	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llm.Permanent(llm.ErrAuthenticationFailed(ProviderStability, err))
	case http.StatusNotFound:
		return llm.Permanent(llm.ErrModelNotFound(engine, ProviderStability, err))
	case http.StatusTooManyRequests:
		return llm.ErrRateLimitExceeded(ProviderStability, err)
	case http.StatusBadRequest:
		return llm.Permanent(llm.ErrRequestFailed(ProviderStability, "generate", err))
	}
	return llm.ErrRequestFailed(ProviderStability, "generate", err)
}
