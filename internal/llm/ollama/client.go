package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/connorhough/modelctl/internal/llm"
	"github.com/connorhough/modelctl/internal/provision"
)

// DefaultBaseURL is the address of a local Ollama server.
const DefaultBaseURL = "http://localhost:11434"

// Client adapts the Ollama API client to provision.Client.
type Client struct {
	api *api.Client
}

var _ provision.Client = (*Client)(nil)

// NewClient creates a client for the server at baseURL. An empty baseURL
// selects DefaultBaseURL; a nil httpClient selects http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, llm.ErrProviderNotAvailable(ProviderOllama, fmt.Errorf("invalid base URL %q: %w", baseURL, err))
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{api: api.NewClient(u, httpClient)}, nil
}

// ListModels returns the locally available models.
func (c *Client) ListModels(ctx context.Context) ([]provision.Model, error) {
	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, wrapError("", "list", err)
	}

	models := make([]provision.Model, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, provision.Model{
			Name:       m.Name,
			Digest:     m.Digest,
			Size:       m.Size,
			ModifiedAt: m.ModifiedAt,
		})
	}
	return models, nil
}

// DeleteModel removes name. A model the server does not know is reported as
// not deleted rather than as an error.
func (c *Client) DeleteModel(ctx context.Context, name string) (bool, error) {
	err := c.api.Delete(ctx, &api.DeleteRequest{Model: name})
	if err == nil {
		return true, nil
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, wrapError(name, "delete", err)
}

// PullModel requests a non-streaming pull and returns the final status token.
func (c *Client) PullModel(ctx context.Context, name string) (string, error) {
	stream := false
	status := ""
	err := c.api.Pull(ctx, &api.PullRequest{Model: name, Stream: &stream}, func(p api.ProgressResponse) error {
		status = p.Status
		return nil
	})
	if err != nil {
		return status, wrapError(name, "pull", err)
	}
	return status, nil
}

// wrapError maps Ollama API errors onto ProviderError
func wrapError(model, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusNotFound:
			if model != "" {
				return llm.Permanent(llm.ErrModelNotFound(model, ProviderOllama, err))
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			return llm.Permanent(llm.ErrAuthenticationFailed(ProviderOllama, err))
		case http.StatusTooManyRequests:
			return llm.ErrRateLimitExceeded(ProviderOllama, err)
		}
		return llm.ErrRequestFailed(ProviderOllama, op, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return llm.ErrProviderNotAvailable(ProviderOllama, err)
	}
	return llm.ErrRequestFailed(ProviderOllama, op, err)
}
