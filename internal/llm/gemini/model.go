package gemini

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/connorhough/modelctl/internal/llm"
	"github.com/connorhough/modelctl/internal/options"
)

// Model name constants for Gemini API
// Gemini requires full model names
const (
	ModelFlash = "gemini-2.5-flash"
	ModelPro   = "gemini-2.5-pro"

	DefaultModel = ModelFlash

	APIKeyEnvVar = "GEMINI_API_KEY"
)

// ChatModel implements llm.ChatModel for the Gemini API
type ChatModel struct {
	client   *genai.Client
	defaults *options.Options
	logger   *zap.Logger
}

// NewClient creates a genai client for the Gemini API backend
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, llm.ErrAuthenticationFailed(ProviderGemini,
			fmt.Errorf("API key is required (set %s environment variable)", APIKeyEnvVar))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, llm.ErrProviderNotAvailable(ProviderGemini, err)
	}
	return client, nil
}

// NewChatModel creates a Gemini chat model. A nil defaults means an empty Gemini option set.
func NewChatModel(client *genai.Client, defaults *options.Options, logger *zap.Logger) *ChatModel {
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
	return &ChatModel{client: client, defaults: defaults, logger: logger}
}

// Name returns the provider name
func (m *ChatModel) Name() string { return ProviderGemini }

// DefaultOptions returns a copy of the model defaults
func (m *ChatModel) DefaultOptions() *options.Options { return m.defaults.Clone() }

// Call sends the prompt to Gemini and returns the response
func (m *ChatModel) Call(ctx context.Context, prompt llm.Prompt) (*llm.ChatResponse, error) {
	eff := options.Merge(prompt.Options, m.defaults)

	modelName := options.Value(eff.Model)
	if modelName == "" {
		modelName = DefaultModel
	}
	config, err := buildConfig(eff, prompt.Messages)
	if err != nil {
		return nil, err
	}
	contents := buildContents(prompt.Messages)
	m.logger.Debug("generate content", zap.String("model", modelName), zap.Int("contents", len(contents)))

	return llm.RetryWithBackoff(ctx, func(ctx context.Context) (*llm.ChatResponse, error) {
		resp, err := m.client.Models.GenerateContent(ctx, modelName, contents, config)
		if err != nil {
			return nil, wrapError(modelName, err)
		}

		if len(resp.Candidates) == 0 {
			return nil, llm.ErrRequestFailed(ProviderGemini, "generate", fmt.Errorf("no candidates returned"))
		}
		candidate := resp.Candidates[0]
		if candidate.Content == nil {
			return nil, llm.ErrRequestFailed(ProviderGemini, "generate", fmt.Errorf("nil content returned"))
		}

		var result strings.Builder
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				result.WriteString(part.Text)
			}
		}

		out := &llm.ChatResponse{
			Text:         strings.TrimSpace(result.String()),
			Model:        modelName,
			FinishReason: string(candidate.FinishReason),
		}
		if resp.UsageMetadata != nil {
			out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
			out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		return out, nil
	})
}

// buildConfig maps the effective options onto a generation config. System
// messages of the prompt are appended to the configured system instruction.
func buildConfig(eff *options.Options, messages []llm.Message) (*genai.GenerateContentConfig, error) {
	ext := Extension(eff)
	config := &genai.GenerateContentConfig{
		Temperature:      toFloat32(eff.Temperature),
		TopP:             toFloat32(eff.TopP),
		TopK:             toFloat32(ext.TopK),
		MaxOutputTokens:  int32(options.Value(eff.MaxTokens)),
		StopSequences:    eff.Stop,
		PresencePenalty:  toFloat32(eff.PresencePenalty),
		FrequencyPenalty: toFloat32(eff.FrequencyPenalty),
		CandidateCount:   int32(options.Value(ext.CandidateCount)),
		ResponseMIMEType: options.Value(ext.ResponseMIMEType),
	}
	if eff.Seed != nil {
		if *eff.Seed < math.MinInt32 || *eff.Seed > math.MaxInt32 {
			return nil, fmt.Errorf("seed %d does not fit in 32 bits", *eff.Seed)
		}
		seed := int32(*eff.Seed)
		config.Seed = &seed
	}

	var system []string
	if ext.SystemInstruction != nil {
		system = append(system, *ext.SystemInstruction)
	}
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg.Text)
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	if len(eff.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(eff.Tools))
		for _, tool := range eff.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 tool.Name,
				Description:          tool.Description,
				ParametersJsonSchema: tool.Parameters,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		if eff.ToolChoice != nil {
			config.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: functionCalling(*eff.ToolChoice)}
		}
	}

	if len(eff.HTTPHeaders) > 0 {
		headers := make(http.Header, len(eff.HTTPHeaders))
		for k, v := range eff.HTTPHeaders {
			headers.Set(k, v)
		}
		config.HTTPOptions = &genai.HTTPOptions{Headers: headers}
	}

	return config, nil
}

// buildContents converts the non-system messages of a prompt.
func buildContents(messages []llm.Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			continue
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleUser))
		}
	}
	return contents
}

func functionCalling(choice string) *genai.FunctionCallingConfig {
	switch choice {
	case "auto":
		return &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto}
	case "none":
		return &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeNone}
	case "required":
		return &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAny}
	default:
		return &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingConfigModeAny,
			AllowedFunctionNames: []string{choice},
		}
	}
}

func toFloat32(v *float64) *float32 {
	if v == nil {
		return nil
	}
	f := float32(*v)
	return &f
}

// wrapError wraps Gemini API errors with appropriate typed errors
func wrapError(model string, err error) error {
	if apiErr, ok := err.(genai.APIError); ok {
		// Check status first (most reliable)
		switch apiErr.Status {
		case "INVALID_ARGUMENT":
			if strings.Contains(apiErr.Message, "API key") {
				return llm.Permanent(llm.ErrAuthenticationFailed(ProviderGemini, err))
			}
			return llm.Permanent(llm.ErrRequestFailed(ProviderGemini, "generate", err))
		case "UNAUTHENTICATED", "PERMISSION_DENIED":
			return llm.Permanent(llm.ErrAuthenticationFailed(ProviderGemini, err))
		case "RESOURCE_EXHAUSTED":
			return llm.ErrRateLimitExceeded(ProviderGemini, err)
		case "NOT_FOUND":
			return llm.Permanent(llm.ErrModelNotFound(model, ProviderGemini, err))
		}

		// Fallback to HTTP status code
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return llm.Permanent(llm.ErrAuthenticationFailed(ProviderGemini, err))
		case http.StatusTooManyRequests:
			return llm.ErrRateLimitExceeded(ProviderGemini, err)
		case http.StatusNotFound:
			return llm.Permanent(llm.ErrModelNotFound(model, ProviderGemini, err))
		}
	}

	return llm.ErrRequestFailed(ProviderGemini, "generate", err)
}
