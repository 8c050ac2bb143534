// Package provider defines the completion provider contract the
// executor and memory subsystem depend on, with Anthropic and OpenAI
// implementations. Implementations are swappable; callers never reach
// past this interface to an SDK.
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/praxishq/praxis/pkg/models"
)

// Normalized finish reasons across backends.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

// Options tune one completion call.
type Options struct {
	Model       string
	System      string
	Temperature float32
	MaxTokens   int
}

// ToolSpec is the provider-facing view of a registered tool.
type ToolSpec struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Completion is the uniform result of a completion call.
type Completion struct {
	Content      string
	ToolCalls    []models.ToolCall
	TokensIn     int
	TokensOut    int
	FinishReason string
}

// StreamChunk is one element of a streamed completion. The sequence is
// terminated by a chunk with Done set; Err is non-nil when the stream
// failed mid-flight.
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}

// Provider is a pluggable language-model backend.
type Provider interface {
	// Name returns the stable lowercase provider identifier.
	Name() string

	// Complete returns the model's next message for the conversation.
	Complete(ctx context.Context, messages []models.Message, opts Options) (*Completion, error)

	// CompleteWithTools is Complete with a tool catalog the model may
	// call; requested calls come back in Completion.ToolCalls.
	CompleteWithTools(ctx context.Context, messages []models.Message, tools []ToolSpec, opts Options) (*Completion, error)

	// Stream returns content deltas as they arrive, terminated by a
	// done marker.
	Stream(ctx context.Context, messages []models.Message, opts Options) (<-chan StreamChunk, error)

	// Embed returns an embedding vector for the text. Backends without
	// an embedding surface fail explicitly rather than degrading.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures a backend.
type Config struct {
	Name           string `yaml:"name"` // anthropic or openai
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// New builds a provider from config.
func New(cfg Config) (Provider, error) {
	switch cfg.Name {
	case "anthropic":
		return NewAnthropic(cfg)
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}
