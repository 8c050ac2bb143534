package engine

import (
	"testing"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantAction DecisionAction
		wantTool   string
	}{
		{
			name:       "use tool",
			content:    `{"reasoning": "need the time", "action": "use_tool", "tool": "current_time", "input": {}, "confidence": 0.9}`,
			wantAction: ActionUseTool,
			wantTool:   "current_time",
		},
		{
			name:       "finish",
			content:    `{"reasoning": "all done", "action": "finish"}`,
			wantAction: ActionFinish,
		},
		{
			name:       "json wrapped in prose",
			content:    "Here is my decision:\n```json\n{\"reasoning\": \"go\", \"action\": \"use_tool\", \"tool\": \"echo\", \"input\": {\"text\": \"hi\"}}\n```",
			wantAction: ActionUseTool,
			wantTool:   "echo",
		},
		{
			name:       "plain prose degrades to finish",
			content:    "I believe the task is complete.",
			wantAction: ActionFinish,
		},
		{
			name:       "unknown action degrades to finish",
			content:    `{"reasoning": "hmm", "action": "retry"}`,
			wantAction: ActionFinish,
		},
		{
			name:       "use_tool without tool degrades to finish",
			content:    `{"reasoning": "hmm", "action": "use_tool"}`,
			wantAction: ActionFinish,
		},
		{
			name:       "unbalanced json degrades to finish",
			content:    `{"reasoning": "broken`,
			wantAction: ActionFinish,
		},
		{
			name:       "empty content",
			content:    "",
			wantAction: ActionFinish,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ParseDecision(tt.content)
			if d.Action != tt.wantAction {
				t.Errorf("action = %s, want %s", d.Action, tt.wantAction)
			}
			if d.Tool != tt.wantTool {
				t.Errorf("tool = %q, want %q", d.Tool, tt.wantTool)
			}
			if d.Reasoning == "" && tt.content != "" {
				t.Error("reasoning should never be empty for non-empty content")
			}
		})
	}
}

func TestParseDecisionKeepsRawTextAsReasoning(t *testing.T) {
	content := "The weather looks fine, nothing to do."
	d := ParseDecision(content)
	if d.Action != ActionFinish {
		t.Fatalf("action = %s, want finish", d.Action)
	}
	if d.Reasoning != content {
		t.Errorf("reasoning = %q, want raw content", d.Reasoning)
	}
}

func TestExtractJSONObjectHandlesNestedBracesInStrings(t *testing.T) {
	content := `{"reasoning": "use {curly} braces", "action": "finish"}`
	if got := extractJSONObject(content); got != content {
		t.Errorf("extracted %q, want full object", got)
	}
}
