package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/praxishq/praxis/pkg/models"
)

// OpenAI implements Provider on OpenAI's chat and embedding APIs.
//
// Format specifics handled here:
//   - The system prompt is injected as the first message in the array
//   - Tool results are separate messages with role "tool", one per call
//   - Embeddings come from a dedicated model, not the chat model
type OpenAI struct {
	client         *openai.Client
	defaultModel   string
	embeddingModel string
}

var _ Provider = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI-backed provider.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}
	return &OpenAI{
		client:         openai.NewClientWithConfig(clientCfg),
		defaultModel:   model,
		embeddingModel: embeddingModel,
	}, nil
}

// Name returns "openai".
func (p *OpenAI) Name() string { return "openai" }

// Complete returns the model's next message.
func (p *OpenAI) Complete(ctx context.Context, messages []models.Message, opts Options) (*Completion, error) {
	return p.complete(ctx, messages, nil, opts)
}

// CompleteWithTools returns the model's next message given a tool catalog.
func (p *OpenAI) CompleteWithTools(ctx context.Context, messages []models.Message, tools []ToolSpec, opts Options) (*Completion, error) {
	return p.complete(ctx, messages, tools, opts)
}

func (p *OpenAI) complete(ctx context.Context, messages []models.Message, tools []ToolSpec, opts Options) (*Completion, error) {
	req := p.buildRequest(messages, tools, opts)

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty completion response")
	}

	choice := resp.Choices[0]
	out := &Completion{
		Content:      choice.Message.Content,
		TokensIn:     resp.Usage.PromptTokens,
		TokensOut:    resp.Usage.CompletionTokens,
		FinishReason: normalizeFinishReason(string(choice.FinishReason)),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(tc.Function.Arguments),
		})
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = FinishToolCalls
	}
	return out, nil
}

// Stream returns content deltas as the model produces them.
func (p *OpenAI) Stream(ctx context.Context, messages []models.Message, opts Options) (<-chan StreamChunk, error) {
	req := p.buildRequest(messages, nil, opts)
	req.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: stream failed: %w", err)
	}

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					chunks <- StreamChunk{Done: true}
				} else {
					chunks <- StreamChunk{Err: err, Done: true}
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				select {
				case chunks <- StreamChunk{Content: delta}:
				case <-ctx.Done():
					chunks <- StreamChunk{Err: ctx.Err(), Done: true}
					return
				}
			}
		}
	}()
	return chunks, nil
}

// Embed returns an embedding vector for the text.
func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

func (p *OpenAI) buildRequest(messages []models.Message, tools []ToolSpec, opts Options) openai.ChatCompletionRequest {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertOpenAIMessages(messages, opts.System),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}
	if len(tools) > 0 {
		req.Tools = convertOpenAITools(tools)
	}
	return req
}

func convertOpenAIMessages(messages []models.Message, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				})
			}
			result = append(result, oaiMsg)
		default:
			result = append(result, openai.ChatCompletionMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		}
	}
	return result
}

func convertOpenAITools(tools []ToolSpec) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Schema, &schemaMap); err != nil || schemaMap == nil {
			// One bad schema must not break the whole catalog.
			schemaMap = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaMap,
			},
		}
	}
	return result
}

func normalizeFinishReason(reason string) string {
	switch reason {
	case "tool_calls", "function_call":
		return FinishToolCalls
	case "length", "max_tokens":
		return FinishLength
	default:
		return FinishStop
	}
}
