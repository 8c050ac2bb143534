package engine

import (
	"encoding/json"
	"strings"
)

// DecisionAction is what the model chose to do next.
type DecisionAction string

const (
	ActionUseTool DecisionAction = "use_tool"
	ActionFinish  DecisionAction = "finish"
)

// Decision is the structured think-step output the loop expects from
// the model when it does not emit a native tool call.
type Decision struct {
	Reasoning  string          `json:"reasoning"`
	Action     DecisionAction  `json:"action"`
	Tool       string          `json:"tool,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
}

// ParseDecision extracts a Decision from raw model text. Parsing is
// fail-soft: anything that does not decode as a valid decision becomes
// a finish with the raw text as reasoning, because a malformed think
// step must end the run gracefully rather than abort it.
func ParseDecision(content string) *Decision {
	finish := &Decision{Action: ActionFinish, Reasoning: content}

	raw := extractJSONObject(content)
	if raw == "" {
		return finish
	}

	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return finish
	}
	switch d.Action {
	case ActionFinish:
	case ActionUseTool:
		if d.Tool == "" {
			return finish
		}
	default:
		return finish
	}
	if d.Reasoning == "" {
		d.Reasoning = content
	}
	return &d
}

// extractJSONObject returns the outermost {...} span in s, tolerating
// prose or code fences around it. Empty when no balanced object exists.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
