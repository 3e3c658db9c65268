package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/connorhough/modelctl/internal/llm"
	"github.com/connorhough/modelctl/internal/options"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "model": "gpt-4o",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "  hello  "}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 5, "completion_tokens": 1, "total_tokens": 6}
}`

func newTestModel(t *testing.T, handler http.HandlerFunc, defaults *options.Options) *ChatModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key", srv.URL+"/v1", srv.Client())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return NewChatModel(client, defaults, nil)
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient("", "", nil)
	var perr *llm.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Provider != ProviderOpenAI {
		t.Errorf("got provider %q, want %q", perr.Provider, ProviderOpenAI)
	}
}

func TestOptions_MergeFrom(t *testing.T) {
	defaults := &options.Options{
		Model:       options.Ptr("gpt-4o"),
		Temperature: options.Ptr(0.7),
		Extension: &Options{
			N:         options.Ptr(2),
			User:      options.Ptr("svc"),
			LogitBias: map[string]int{"50256": -100},
		},
	}
	runtime := &options.Options{
		Temperature: options.Ptr(0.1),
		Extension: &Options{
			User:      options.Ptr("alice"),
			LogitBias: map[string]int{"1": 5},
		},
	}

	got := options.Merge(runtime, defaults)

	want := &options.Options{
		Model:       options.Ptr("gpt-4o"),
		Temperature: options.Ptr(0.1),
		Extension: &Options{
			N:         options.Ptr(2),
			User:      options.Ptr("alice"),
			LogitBias: map[string]int{"1": 5},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRequest(t *testing.T) {
	eff := &options.Options{
		Temperature: options.Ptr(0.5),
		MaxTokens:   options.Ptr(64),
		Stop:        []string{"END"},
		Seed:        options.Ptr(9),
		Tools: []options.Tool{{
			Name:        "lookup",
			Description: "find a thing",
			Parameters:  map[string]any{"type": "object"},
		}},
		ToolChoice: options.Ptr("lookup"),
		Extension: &Options{
			N:                 options.Ptr(1),
			ResponseFormat:    &ResponseFormat{Type: "json_object"},
			ParallelToolCalls: options.Ptr(false),
		},
	}

	req := buildRequest(eff, []llm.Message{{Role: llm.RoleUser, Text: "hi"}})

	if req.Model != DefaultModel {
		t.Errorf("got model %q, want %q", req.Model, DefaultModel)
	}
	if req.Temperature != 0.5 {
		t.Errorf("got temperature %v, want 0.5", req.Temperature)
	}
	if req.MaxTokens != 64 || req.N != 1 {
		t.Errorf("got max tokens %d n %d, want 64 and 1", req.MaxTokens, req.N)
	}
	if diff := cmp.Diff([]string{"END"}, req.Stop); diff != "" {
		t.Errorf("stop mismatch (-want +got):\n%s", diff)
	}
	if req.Seed == nil || *req.Seed != 9 {
		t.Errorf("got seed %v, want 9", req.Seed)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != goopenai.ChatCompletionResponseFormatTypeJSONObject {
		t.Errorf("got response format %+v, want json_object", req.ResponseFormat)
	}
	if len(req.Tools) != 1 || req.Tools[0].Function.Name != "lookup" {
		t.Fatalf("got tools %+v, want one lookup tool", req.Tools)
	}
	choice, ok := req.ToolChoice.(goopenai.ToolChoice)
	if !ok || choice.Function.Name != "lookup" {
		t.Errorf("got tool choice %#v, want function lookup", req.ToolChoice)
	}
	if req.ParallelToolCalls != false {
		t.Errorf("got parallel tool calls %v, want false", req.ParallelToolCalls)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "hi" {
		t.Errorf("got messages %+v", req.Messages)
	}
}

func TestBuildRequest_ToolChoiceKeyword(t *testing.T) {
	eff := &options.Options{
		Tools:      []options.Tool{{Name: "lookup"}},
		ToolChoice: options.Ptr("auto"),
	}
	req := buildRequest(eff, nil)
	if req.ToolChoice != "auto" {
		t.Errorf("got tool choice %#v, want auto", req.ToolChoice)
	}
}

func TestChatModel_Call(t *testing.T) {
	var gotBody map[string]any
	var gotHeader string
	model := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotHeader = r.Header.Get("X-Team")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	}, &options.Options{
		Model:       options.Ptr("gpt-4o"),
		HTTPHeaders: map[string]string{"X-Team": "defaults"},
	})

	prompt := llm.NewPrompt("say hello", llm.WithOptions(&options.Options{
		HTTPHeaders: map[string]string{"X-Team": "runtime"},
	}))
	resp, err := model.Call(context.Background(), prompt)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	want := &llm.ChatResponse{Text: "hello", Model: "gpt-4o", FinishReason: "stop", PromptTokens: 5, OutputTokens: 1}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("Call() mismatch (-want +got):\n%s", diff)
	}
	if gotHeader != "runtime" {
		t.Errorf("got header %q, want %q", gotHeader, "runtime")
	}
	if gotBody["model"] != "gpt-4o" {
		t.Errorf("got model %v, want gpt-4o", gotBody["model"])
	}
}

func TestChatModel_CallSendsExplicitZeros(t *testing.T) {
	var gotBody map[string]any
	model := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	}, &options.Options{
		Temperature:      options.Ptr(0.7),
		PresencePenalty:  options.Ptr(0.5),
		FrequencyPenalty: options.Ptr(0.0),
	})

	prompt := llm.NewPrompt("hi", llm.WithOptions(&options.Options{
		Temperature:     options.Ptr(0.0),
		PresencePenalty: options.Ptr(0.0),
	}))
	if _, err := model.Call(context.Background(), prompt); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	for _, key := range []string{"temperature", "presence_penalty", "frequency_penalty"} {
		v, ok := gotBody[key].(float64)
		if !ok {
			t.Errorf("%s missing from request: %v", key, gotBody[key])
			continue
		}
		if v <= 0 || v > 1e-30 {
			t.Errorf("%s = %v, want a value that rounds to zero", key, v)
		}
	}
	if _, ok := gotBody["top_p"]; ok {
		t.Errorf("absent top_p was sent: %v", gotBody["top_p"])
	}
}

func TestWireFloat(t *testing.T) {
	tests := []struct {
		name string
		in   *float64
		want float32
	}{
		{name: "absent", in: nil, want: 0},
		{name: "zero", in: options.Ptr(0.0), want: math.SmallestNonzeroFloat32},
		{name: "value", in: options.Ptr(0.25), want: 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wireFloat(tt.in); got != tt.want {
				t.Errorf("wireFloat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChatModel_CallAuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	model := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
	}, nil)

	_, err := model.Call(context.Background(), llm.NewPrompt("hi"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var perr *llm.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("got %d requests, want 1", got)
	}
}

func TestChatModel_DefaultOptions(t *testing.T) {
	model := NewChatModel(nil, &options.Options{Model: options.Ptr("gpt-4o")}, nil)

	got := model.DefaultOptions()
	if got.Provider() != ProviderOpenAI {
		t.Errorf("got provider %q, want %q", got.Provider(), ProviderOpenAI)
	}
	got.Model = options.Ptr("changed")
	if v := options.Value(model.DefaultOptions().Model); v != "gpt-4o" {
		t.Errorf("defaults were mutated through the copy: %q", v)
	}
	if model.Name() != ProviderOpenAI {
		t.Errorf("got name %q", model.Name())
	}
}
