package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RegisterBuiltins installs the tools every agent gets regardless of
// configuration. They are low risk and carry no permission tags.
func RegisterBuiltins(r *Registry) error {
	builtins := []*Definition{
		{
			Name:        "echo",
			Description: "Echo the provided text back to the agent. Useful for testing and for restating intermediate results.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"text": {"type": "string", "description": "Text to echo back"}
				},
				"required": ["text"]
			}`),
			Handler: func(_ context.Context, input map[string]any) (string, error) {
				text, _ := input["text"].(string)
				return text, nil
			},
		},
		{
			Name:        "current_time",
			Description: "Get the current date and time in UTC.",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"format": {"type": "string", "description": "Optional Go time layout, defaults to RFC3339"}
				}
			}`),
			Handler: func(_ context.Context, input map[string]any) (string, error) {
				layout := time.RFC3339
				if f, ok := input["format"].(string); ok && f != "" {
					layout = f
				}
				return time.Now().UTC().Format(layout), nil
			},
		},
	}

	for _, def := range builtins {
		if err := r.Register(def); err != nil {
			return fmt.Errorf("failed to register builtin %s: %w", def.Name, err)
		}
	}
	return nil
}
