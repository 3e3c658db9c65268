package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/connorhough/modelctl/internal/llm"
	"github.com/connorhough/modelctl/internal/options"
	"github.com/connorhough/modelctl/internal/provision"
)

// DefaultModel is used when neither defaults nor the call name a model.
const DefaultModel = "llama3.2"

// ChatModel implements llm.ChatModel against an Ollama server. Before the
// first call with a given model it provisions that model according to its
// PullStrategy.
type ChatModel struct {
	client   *Client
	poller   *provision.Poller
	strategy PullStrategy
	defaults *options.Options
	logger   *zap.Logger

	mu       sync.Mutex
	prepared map[string]bool
	flights  singleflight.Group
}

// ChatOption configures a ChatModel.
type ChatOption func(*ChatModel)

// WithPullStrategy sets when models are pulled. The default is PullNever.
func WithPullStrategy(s PullStrategy) ChatOption {
	return func(m *ChatModel) {
		m.strategy = s
	}
}

// WithPoller sets the poller used for provisioning. The default polls the
// chat model's own client.
func WithPoller(p *provision.Poller) ChatOption {
	return func(m *ChatModel) {
		m.poller = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ChatOption {
	return func(m *ChatModel) {
		m.logger = l
	}
}

// NewChatModel creates an Ollama chat model. A nil defaults means an empty
// Ollama option set.
func NewChatModel(client *Client, defaults *options.Options, opts ...ChatOption) *ChatModel {
	if defaults == nil {
		defaults = &options.Options{}
	}
	if defaults.Extension == nil {
		defaults = defaults.Clone()
		defaults.Extension = &Options{}
	}
	m := &ChatModel{
		client:   client,
		strategy: PullNever,
		defaults: defaults,
		logger:   zap.NewNop(),
		prepared: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.poller == nil {
		m.poller = provision.New(client, provision.WithLogger(m.logger))
	}
	return m
}

// Name returns the provider name
func (m *ChatModel) Name() string { return ProviderOllama }

// DefaultOptions returns a copy of the model defaults
func (m *ChatModel) DefaultOptions() *options.Options { return m.defaults.Clone() }

// Call merges the prompt options over the defaults, provisions the model if
// the pull strategy asks for it, and requests a chat completion.
func (m *ChatModel) Call(ctx context.Context, prompt llm.Prompt) (*llm.ChatResponse, error) {
	eff := options.Merge(prompt.Options, m.defaults)
	req, err := buildRequest(eff, prompt.Messages)
	if err != nil {
		return nil, err
	}

	if err := m.prepare(ctx, req.Model); err != nil {
		return nil, err
	}

	m.logger.Debug("chat", zap.String("model", req.Model), zap.Int("messages", len(req.Messages)))
	return llm.RetryWithBackoff(ctx, func(ctx context.Context) (*llm.ChatResponse, error) {
		var resp api.ChatResponse
		err := m.client.api.Chat(ctx, req, func(r api.ChatResponse) error {
			resp = r
			return nil
		})
		if err != nil {
			return nil, wrapError(req.Model, "chat", err)
		}
		return &llm.ChatResponse{
			Text:         strings.TrimSpace(resp.Message.Content),
			Model:        resp.Model,
			FinishReason: resp.DoneReason,
			PromptTokens: resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
		}, nil
	})
}

// prepare applies the pull strategy once per model name. Concurrent calls
// for the same model share one provisioning run; each caller stops waiting
// when its own ctx is done. The run itself uses the ctx of the call that
// started it.
func (m *ChatModel) prepare(ctx context.Context, model string) error {
	if m.strategy == PullNever || m.isPrepared(model) {
		return nil
	}

	ch := m.flights.DoChan(model, func() (any, error) {
		return nil, m.provision(ctx, model)
	})
	select {
	case <-ctx.Done():
		return fmt.Errorf("provision model '%s': %w", model, ctx.Err())
	case res := <-ch:
		return res.Err
	}
}

func (m *ChatModel) provision(ctx context.Context, model string) error {
	if m.isPrepared(model) {
		return nil
	}

	if m.strategy == PullWhenMissing {
		available, err := m.poller.IsAvailable(ctx, model)
		if err != nil {
			return err
		}
		if available {
			m.markPrepared(model)
			return nil
		}
	}

	m.logger.Info("provisioning model", zap.String("model", model), zap.String("strategy", string(m.strategy)))
	if _, err := m.poller.EnsurePresent(ctx, model, true); err != nil {
		return fmt.Errorf("provision model '%s': %w", model, err)
	}
	m.markPrepared(model)
	return nil
}

func (m *ChatModel) isPrepared(model string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prepared[model]
}

func (m *ChatModel) markPrepared(model string) {
	m.mu.Lock()
	m.prepared[model] = true
	m.mu.Unlock()
}

// buildRequest maps the effective options onto a non-streaming chat request.
func buildRequest(eff *options.Options, messages []llm.Message) (*api.ChatRequest, error) {
	ext := Extension(eff)
	stream := false
	req := &api.ChatRequest{
		Model:   options.Value(eff.Model),
		Stream:  &stream,
		Options: runnerOptions(eff),
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}

	for _, msg := range messages {
		req.Messages = append(req.Messages, api.Message{Role: msg.Role, Content: msg.Text})
	}

	if ext.KeepAlive != nil {
		d, err := time.ParseDuration(*ext.KeepAlive)
		if err != nil {
			return nil, fmt.Errorf("invalid keep_alive %q: %w", *ext.KeepAlive, err)
		}
		req.KeepAlive = &api.Duration{Duration: d}
	}

	if ext.Format != nil {
		format := strings.TrimSpace(*ext.Format)
		if strings.HasPrefix(format, "{") {
			if !json.Valid([]byte(format)) {
				return nil, fmt.Errorf("format is not a valid JSON schema")
			}
			req.Format = json.RawMessage(format)
		} else {
			encoded, _ := json.Marshal(format)
			req.Format = encoded
		}
	}

	return req, nil
}
