package provider

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/praxishq/praxis/pkg/models"
)

func TestNewRejectsUnknownBackend(t *testing.T) {
	if _, err := New(Config{Name: "mystery", APIKey: "k"}); err == nil {
		t.Error("expected error for unknown provider name")
	}
	if _, err := New(Config{Name: "openai"}); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := New(Config{Name: "anthropic"}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAnthropicEmbedFailsExplicitly(t *testing.T) {
	p, err := NewAnthropic(Config{Name: "anthropic", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	if _, err := p.Embed(context.Background(), "text"); err == nil {
		t.Fatal("Embed must fail rather than silently degrade")
	}
}

func TestConvertOpenAIMessages(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: "find open deals"},
		{Role: models.RoleAssistant, Content: "searching", ToolCalls: []models.ToolCall{
			{ID: "call-1", Name: "crm_search", Input: json.RawMessage(`{"query":"open"}`)},
		}},
		{Role: models.RoleTool, ToolCallID: "call-1", Content: "3 deals found"},
	}

	out := convertOpenAIMessages(messages, "you are a sales agent")
	if len(out) != 4 {
		t.Fatalf("got %d messages, want 4", len(out))
	}
	if out[0].Role != "system" || out[0].Content != "you are a sales agent" {
		t.Errorf("system injection wrong: %+v", out[0])
	}
	if len(out[2].ToolCalls) != 1 || out[2].ToolCalls[0].Function.Name != "crm_search" {
		t.Errorf("assistant tool call wrong: %+v", out[2])
	}
	if out[3].Role != "tool" || out[3].ToolCallID != "call-1" {
		t.Errorf("tool result wrong: %+v", out[3])
	}
}

func TestConvertOpenAIToolsBadSchemaDegrades(t *testing.T) {
	out := convertOpenAITools([]ToolSpec{
		{Name: "good", Schema: json.RawMessage(`{"type":"object"}`)},
		{Name: "bad", Schema: json.RawMessage(`{broken`)},
	})
	if len(out) != 2 {
		t.Fatalf("got %d tools, want 2", len(out))
	}
	params, ok := out[1].Function.Parameters.(map[string]any)
	if !ok || params["type"] != "object" {
		t.Errorf("bad schema should fall back to empty object, got %+v", out[1].Function.Parameters)
	}
}

func TestConvertAnthropicMessages(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleSystem, Content: "dropped"},
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "using a tool", ToolCalls: []models.ToolCall{
			{ID: "call-1", Name: "echo", Input: json.RawMessage(`{"text":"hi"}`)},
		}},
		{Role: models.RoleTool, ToolCallID: "call-1", Content: "hi"},
	}

	out, err := convertAnthropicMessages(messages)
	if err != nil {
		t.Fatalf("convertAnthropicMessages: %v", err)
	}
	// System skipped; tool result becomes a user message.
	if len(out) != 3 {
		t.Fatalf("got %d messages, want 3", len(out))
	}
	if out[0].Role != "user" || out[1].Role != "assistant" || out[2].Role != "user" {
		t.Errorf("roles = %s %s %s", out[0].Role, out[1].Role, out[2].Role)
	}
}

func TestConvertAnthropicMessagesBadToolInput(t *testing.T) {
	_, err := convertAnthropicMessages([]models.Message{
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{
			{ID: "c", Name: "echo", Input: json.RawMessage(`nope`)},
		}},
	})
	if err == nil || !strings.Contains(err.Error(), "invalid tool call input") {
		t.Errorf("err = %v, want invalid tool call input", err)
	}
}

func TestConvertAnthropicTools(t *testing.T) {
	out, err := convertAnthropicTools([]ToolSpec{
		{
			Name:        "crm_search",
			Description: "search the CRM",
			Schema:      json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`),
		},
	})
	if err != nil {
		t.Fatalf("convertAnthropicTools: %v", err)
	}
	if len(out) != 1 || out[0].OfTool == nil {
		t.Fatalf("unexpected conversion: %+v", out)
	}
	if out[0].OfTool.Name != "crm_search" {
		t.Errorf("name = %s", out[0].OfTool.Name)
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	cases := map[string]string{
		"stop":          FinishStop,
		"tool_calls":    FinishToolCalls,
		"function_call": FinishToolCalls,
		"length":        FinishLength,
		"max_tokens":    FinishLength,
		"":              FinishStop,
	}
	for in, want := range cases {
		if got := normalizeFinishReason(in); got != want {
			t.Errorf("normalizeFinishReason(%q) = %s, want %s", in, got, want)
		}
	}
}
