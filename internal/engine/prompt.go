package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/praxishq/praxis/internal/provider"
	"github.com/praxishq/praxis/internal/tools"
	"github.com/praxishq/praxis/pkg/models"
)

// buildSystemPrompt composes the per-run system message from the
// agent's policy snapshot and the memories retrieved for this trigger.
func buildSystemPrompt(agent *models.AgentConfig, memories []*models.ScoredMemory) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, an autonomous agent.\n", agent.Name)
	if agent.Personality != "" {
		b.WriteString("\n" + agent.Personality + "\n")
	}
	if agent.Instructions != "" {
		b.WriteString("\n## Instructions\n" + agent.Instructions + "\n")
	}

	if len(agent.Goals) > 0 {
		goals := make([]models.Goal, len(agent.Goals))
		copy(goals, agent.Goals)
		sort.SliceStable(goals, func(i, j int) bool { return goals[i].Priority > goals[j].Priority })
		b.WriteString("\n## Goals (highest priority first)\n")
		for i, g := range goals {
			fmt.Fprintf(&b, "%d. %s", i+1, g.Description)
			if g.Target != nil {
				fmt.Fprintf(&b, " (target: %s %g)", comparatorLabel(g.Comparator), *g.Target)
			}
			b.WriteString("\n")
		}
	}

	if len(memories) > 0 {
		b.WriteString("\n## What you remember\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- [%s] %s\n", m.Memory.Kind, m.Memory.Content)
		}
	}

	if len(agent.Constraints) > 0 {
		b.WriteString("\n## Constraints\n")
		for _, c := range agent.Constraints {
			b.WriteString("- " + c + "\n")
		}
	}

	b.WriteString("\n## How to respond\n")
	b.WriteString("Each turn, either call a tool or reply with a single JSON object:\n")
	b.WriteString(`{"reasoning": "...", "action": "use_tool"|"finish", "tool": "...", "input": {...}, "confidence": 0.0-1.0}` + "\n")
	b.WriteString(`Use "finish" when the task is done or cannot proceed.` + "\n")

	return b.String()
}

func comparatorLabel(c string) string {
	switch c {
	case "gte":
		return ">="
	case "lte":
		return "<="
	case "eq":
		return "="
	default:
		return c
	}
}

// describeTrigger renders the trigger as the run's opening observation.
func describeTrigger(trigger models.Trigger) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Triggered by: %s", trigger.Type)
	if trigger.Event != "" {
		fmt.Fprintf(&b, " (%s)", trigger.Event)
	}
	if len(trigger.Payload) > 0 {
		payload, err := json.Marshal(trigger.Payload)
		if err == nil {
			b.WriteString("\nPayload: " + string(payload))
		}
	}
	return b.String()
}

// summarizeTrigger is the short form used as the memory-retrieval query
// and the execution summary.
func summarizeTrigger(trigger models.Trigger) string {
	if trigger.Event != "" {
		return fmt.Sprintf("%s trigger: %s", trigger.Type, trigger.Event)
	}
	if task, ok := trigger.Payload["task"].(string); ok && task != "" {
		return task
	}
	return fmt.Sprintf("%s trigger", trigger.Type)
}

// toolSpecs converts the agent-visible catalog into the provider's view.
func toolSpecs(catalog []*tools.Definition) []provider.ToolSpec {
	specs := make([]provider.ToolSpec, 0, len(catalog))
	for _, def := range catalog {
		specs = append(specs, provider.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Schema:      def.Schema,
		})
	}
	return specs
}
