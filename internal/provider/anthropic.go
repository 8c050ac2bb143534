package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/praxishq/praxis/pkg/models"
)

const anthropicDefaultMaxTokens = 4096

// Anthropic implements Provider on the Claude Messages API. All calls
// go through the streaming endpoint; Complete consumes the stream to
// completion internally.
//
// Format specifics handled here:
//   - The system prompt is a separate request field, not a message
//   - Tool role messages become user messages carrying tool_result blocks
//   - Tool input JSON arrives as incremental fragments and is
//     reassembled per content block
//
// Anthropic has no embedding surface; Embed fails explicitly.
type Anthropic struct {
	client       anthropic.Client
	defaultModel string
}

var _ Provider = (*Anthropic)(nil)

// NewAnthropic creates a Claude-backed provider.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &Anthropic{
		client:       anthropic.NewClient(options...),
		defaultModel: model,
	}, nil
}

// Name returns "anthropic".
func (p *Anthropic) Name() string { return "anthropic" }

// Complete returns the model's next message.
func (p *Anthropic) Complete(ctx context.Context, messages []models.Message, opts Options) (*Completion, error) {
	return p.complete(ctx, messages, nil, opts)
}

// CompleteWithTools returns the model's next message given a tool catalog.
func (p *Anthropic) CompleteWithTools(ctx context.Context, messages []models.Message, tools []ToolSpec, opts Options) (*Completion, error) {
	return p.complete(ctx, messages, tools, opts)
}

func (p *Anthropic) complete(ctx context.Context, messages []models.Message, tools []ToolSpec, opts Options) (*Completion, error) {
	stream, err := p.createStream(ctx, messages, tools, opts)
	if err != nil {
		return nil, err
	}

	var (
		content        strings.Builder
		toolCalls      []models.ToolCall
		currentCall    *models.ToolCall
		currentInput   strings.Builder
		tokensIn       int
		tokensOut      int
		sawMessageStop bool
	)

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			messageStart := event.AsMessageStart()
			if messageStart.Message.Usage.InputTokens > 0 {
				tokensIn = int(messageStart.Message.Usage.InputTokens)
			}

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				currentCall = &models.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				currentInput.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				content.WriteString(delta.Text)
			case "input_json_delta":
				currentInput.WriteString(delta.PartialJSON)
			}

		case "content_block_stop":
			if currentCall != nil {
				input := currentInput.String()
				if input == "" {
					input = "{}"
				}
				currentCall.Input = json.RawMessage(input)
				toolCalls = append(toolCalls, *currentCall)
				currentCall = nil
			}

		case "message_delta":
			messageDelta := event.AsMessageDelta()
			if messageDelta.Usage.OutputTokens > 0 {
				tokensOut = int(messageDelta.Usage.OutputTokens)
			}

		case "message_stop":
			sawMessageStop = true

		case "error":
			return nil, errors.New("anthropic: stream error")
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic: completion failed: %w", err)
	}
	if !sawMessageStop && content.Len() == 0 && len(toolCalls) == 0 {
		return nil, errors.New("anthropic: empty completion response")
	}

	finish := FinishStop
	if len(toolCalls) > 0 {
		finish = FinishToolCalls
	}
	return &Completion{
		Content:      content.String(),
		ToolCalls:    toolCalls,
		TokensIn:     tokensIn,
		TokensOut:    tokensOut,
		FinishReason: finish,
	}, nil
}

// Stream returns content deltas as the model produces them.
func (p *Anthropic) Stream(ctx context.Context, messages []models.Message, opts Options) (<-chan StreamChunk, error) {
	stream, err := p.createStream(ctx, messages, nil, opts)
	if err != nil {
		return nil, err
	}

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)
		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "content_block_delta":
				delta := event.AsContentBlockDelta().Delta
				if delta.Type == "text_delta" && delta.Text != "" {
					select {
					case chunks <- StreamChunk{Content: delta.Text}:
					case <-ctx.Done():
						chunks <- StreamChunk{Err: ctx.Err(), Done: true}
						return
					}
				}
			case "message_stop":
				chunks <- StreamChunk{Done: true}
				return
			case "error":
				chunks <- StreamChunk{Err: errors.New("anthropic: stream error"), Done: true}
				return
			}
		}
		if err := stream.Err(); err != nil {
			chunks <- StreamChunk{Err: err, Done: true}
			return
		}
		chunks <- StreamChunk{Done: true}
	}()
	return chunks, nil
}

// Embed always fails: Anthropic exposes no embedding API. Callers that
// need embeddings must be wired with a provider that has them.
func (p *Anthropic) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("anthropic: embeddings are not supported; configure an embedding provider")
}

func (p *Anthropic) createStream(ctx context.Context, messages []models.Message, tools []ToolSpec, opts Options) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
	converted, err := convertAnthropicMessages(messages)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  converted,
		MaxTokens: int64(maxTokens),
	}
	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: opts.System},
		}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(opts.Temperature))
	}
	if len(tools) > 0 {
		converted, err := convertAnthropicTools(tools)
		if err != nil {
			return nil, err
		}
		params.Tools = converted
	}

	return p.client.Messages.NewStreaming(ctx, params), nil
}

func convertAnthropicMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		// System prompts ride in params.System, never in the array.
		if msg.Role == models.RoleSystem {
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Role == models.RoleTool {
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		} else if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			var input map[string]any
			if err := json.Unmarshal(tc.Input, &input); err != nil {
				return nil, fmt.Errorf("anthropic: invalid tool call input: %w", err)
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertAnthropicTools(tools []ToolSpec) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(tool.Schema) > 0 {
			if err := json.Unmarshal(tool.Schema, &schema); err != nil {
				return nil, fmt.Errorf("anthropic: invalid tool schema for %s: %w", tool.Name, err)
			}
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("anthropic: invalid tool definition for %s", tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, toolParam)
	}
	return result, nil
}
