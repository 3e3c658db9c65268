package llm

import "github.com/connorhough/modelctl/internal/options"

// PromptOption configures a Prompt
type PromptOption func(*Prompt)

// WithSystem prepends a system message
func WithSystem(text string) PromptOption {
	return func(p *Prompt) {
		p.Messages = append([]Message{{Role: RoleSystem, Text: text}}, p.Messages...)
	}
}

// WithOptions sets the runtime options for this call
func WithOptions(opts *options.Options) PromptOption {
	return func(p *Prompt) {
		p.Options = opts
	}
}

// WithModel overrides the model for this call
func WithModel(model string) PromptOption {
	return func(p *Prompt) {
		if model == "" {
			return
		}
		if p.Options == nil {
			p.Options = &options.Options{}
		}
		p.Options.Model = options.Ptr(model)
	}
}

// NewPrompt builds a user prompt from PromptOption functions
func NewPrompt(text string, opts ...PromptOption) Prompt {
	p := Prompt{Messages: []Message{{Role: RoleUser, Text: text}}}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithMessages appends messages after the prompt text
func WithMessages(msgs ...Message) PromptOption {
	return func(p *Prompt) {
		p.Messages = append(p.Messages, msgs...)
	}
}
