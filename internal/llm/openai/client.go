package openai

import (
	"context"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/connorhough/modelctl/internal/llm"
)

const (
	// APIKeyEnvVar is read when no key is configured.
	APIKeyEnvVar = "OPENAI_API_KEY"

	// DefaultModel is used when neither defaults nor the call name a model.
	DefaultModel = "gpt-4o-mini"
)

// NewClient creates an authenticated go-openai client. baseURL may be empty to
// use the public endpoint; any OpenAI-compatible server works.
func NewClient(apiKey, baseURL string, doer goopenai.HTTPDoer) (*goopenai.Client, error) {
	if apiKey == "" {
		return nil, llm.ErrAuthenticationFailed(ProviderOpenAI,
			errMissingKey)
	}

	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	config.HTTPClient = &headerDoer{next: doer}

	return goopenai.NewClientWithConfig(config), nil
}

type headersKey struct{}

// withHeaders attaches per-call header overrides to ctx.
func withHeaders(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return context.WithValue(ctx, headersKey{}, headers)
}

// headerDoer applies the per-call headers carried by the request context.
type headerDoer struct {
	next goopenai.HTTPDoer
}

func (d *headerDoer) Do(req *http.Request) (*http.Response, error) {
	if headers, ok := req.Context().Value(headersKey{}).(map[string]string); ok {
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	return d.next.Do(req)
}
