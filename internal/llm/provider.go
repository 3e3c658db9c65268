// Package llm specifies the chat model interface and the request and error
// types shared by all provider implementations
package llm

import (
	"context"

	"github.com/connorhough/modelctl/internal/options"
)

// Roles used in prompt messages
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one instruction of a prompt
type Message struct {
	Role string
	Text string
	// Weight is used by image providers to balance several text prompts
	Weight *float64
}

// Prompt is a single model invocation: the payload plus optional per-call options.
// A nil Options means the caller specified nothing and provider defaults apply.
type Prompt struct {
	Messages []Message
	Options  *options.Options
}

// ChatResponse is the result of a chat call
type ChatResponse struct {
	Text         string
	Model        string
	FinishReason string
	PromptTokens int
	OutputTokens int
}

// ChatModel defines the interface for chat providers
type ChatModel interface {
	// Call merges the prompt options over the model defaults and invokes the provider
	Call(ctx context.Context, prompt Prompt) (*ChatResponse, error)

	// DefaultOptions returns a copy of the options used when a call specifies none
	DefaultOptions() *options.Options

	// Name returns the provider name (e.g., "openai", "ollama")
	Name() string
}
