package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/connorhough/modelctl/internal/llm"
	"github.com/connorhough/modelctl/internal/options"
)

var errMissingKey = errors.New("API key is required (set " + APIKeyEnvVar + " environment variable)")

// ChatModel implements llm.ChatModel on top of the OpenAI chat completions API.
type ChatModel struct {
	client   *goopenai.Client
	defaults *options.Options
	logger   *zap.Logger
}

// NewChatModel creates a chat model. defaults is held for the model's lifetime
// and never modified; a nil defaults means an empty OpenAI option set.
func NewChatModel(client *goopenai.Client, defaults *options.Options, logger *zap.Logger) *ChatModel {
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
func (m *ChatModel) Name() string { return ProviderOpenAI }

// DefaultOptions returns a copy of the model defaults
func (m *ChatModel) DefaultOptions() *options.Options { return m.defaults.Clone() }

// Call merges the prompt options over the defaults and requests a completion
func (m *ChatModel) Call(ctx context.Context, prompt llm.Prompt) (*llm.ChatResponse, error) {
	eff := options.Merge(prompt.Options, m.defaults)
	req := buildRequest(eff, prompt.Messages)
	m.logger.Debug("chat completion", zap.String("model", req.Model), zap.Int("messages", len(req.Messages)))

	ctx = withHeaders(ctx, eff.HTTPHeaders)
	resp, err := llm.RetryWithBackoff(ctx, func(ctx context.Context) (goopenai.ChatCompletionResponse, error) {
		resp, err := m.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return resp, wrapError(req.Model, err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, llm.ErrRequestFailed(ProviderOpenAI, "chat", fmt.Errorf("no choices returned"))
	}
	choice := resp.Choices[0]
	return &llm.ChatResponse{
		Text:         strings.TrimSpace(choice.Message.Content),
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// buildRequest copies the effective options into the wire request.
func buildRequest(eff *options.Options, messages []llm.Message) goopenai.ChatCompletionRequest {
	ext := Extension(eff)
	req := goopenai.ChatCompletionRequest{
		Model:               options.Value(eff.Model),
		Temperature:         wireFloat(eff.Temperature),
		TopP:                wireFloat(eff.TopP),
		MaxTokens:           options.Value(eff.MaxTokens),
		Stop:                eff.Stop,
		Seed:                eff.Seed,
		FrequencyPenalty:    wireFloat(eff.FrequencyPenalty),
		PresencePenalty:     wireFloat(eff.PresencePenalty),
		N:                   options.Value(ext.N),
		LogitBias:           ext.LogitBias,
		LogProbs:            options.Value(ext.Logprobs),
		TopLogProbs:         options.Value(ext.TopLogprobs),
		MaxCompletionTokens: options.Value(ext.MaxCompletionTokens),
		User:                options.Value(ext.User),
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if ext.ResponseFormat != nil {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatType(ext.ResponseFormat.Type),
		}
	}

	for _, msg := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Text,
		})
	}

	for _, tool := range eff.Tools {
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	if len(req.Tools) > 0 {
		if eff.ToolChoice != nil {
			req.ToolChoice = toolChoice(*eff.ToolChoice)
		}
		if ext.ParallelToolCalls != nil {
			req.ParallelToolCalls = *ext.ParallelToolCalls
		}
	}

	return req
}

// wireFloat converts a sampling option for go-openai, whose float fields are
// omitempty. A present zero is sent as the smallest non-zero float32 so the
// server does not substitute its own default.
func wireFloat(v *float64) float32 {
	if v == nil {
		return 0
	}
	if *v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(*v)
}

// toolChoice maps a policy keyword or a tool name to the wire form.
func toolChoice(choice string) any {
	switch choice {
	case "auto", "none", "required":
		return choice
	default:
		return goopenai.ToolChoice{
			Type:     goopenai.ToolTypeFunction,
			Function: goopenai.ToolFunction{Name: choice},
		}
	}
}

// wrapError maps go-openai errors onto ProviderError
func wrapError(model string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return llm.Permanent(llm.ErrAuthenticationFailed(ProviderOpenAI, err))
		case http.StatusTooManyRequests:
			return llm.ErrRateLimitExceeded(ProviderOpenAI, err)
		case http.StatusNotFound:
			return llm.Permanent(llm.ErrModelNotFound(model, ProviderOpenAI, err))
		case http.StatusBadRequest:
			return llm.Permanent(llm.ErrRequestFailed(ProviderOpenAI, "chat", err))
		}
	}
	return llm.ErrRequestFailed(ProviderOpenAI, "chat", err)
}
