// commands.go contains all cobra command definitions and their flag
// configurations. Each builder creates a command and wires it to its
// handler in handlers.go.
package main

import (
	"time"

	"github.com/spf13/cobra"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath  string
		task        string
		event       string
		payloadJSON string
		triggerType string
		maxSteps    int
		timeout     time.Duration
		debug       bool
	)

	cmd := &cobra.Command{
		Use:   "run <agent-id>",
		Short: "Execute one agent run",
		Long: `Execute one run of the given agent and print the result as JSON.

A run that suspends for approval exits successfully; resolve the
approval with "praxis approvals approve --resume" to continue it.`,
		Example: `  # Run with a free-form task
  praxis run support-bot --task "triage the overnight inbox"

  # Simulate an event trigger with a payload
  praxis run support-bot --trigger event --event ticket.created --payload '{"ticket_id": 42}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), runParams{
				configPath:  configPath,
				debug:       debug,
				agentID:     args[0],
				task:        task,
				event:       event,
				payloadJSON: payloadJSON,
				triggerType: triggerType,
				maxSteps:    maxSteps,
				timeout:     timeout,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringVar(&task, "task", "", "Free-form task for the agent")
	cmd.Flags().StringVar(&event, "event", "", "Event name for event/webhook triggers")
	cmd.Flags().StringVar(&payloadJSON, "payload", "", "Trigger payload as a JSON object")
	cmd.Flags().StringVar(&triggerType, "trigger", "manual", "Trigger type: manual, schedule, event, webhook")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Override the agent's step budget")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Override the agent's wall-clock budget")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func buildResumeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resume <approval-id>",
		Short: "Resume an execution whose approval was granted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd.Context(), configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	return cmd
}

func buildApprovalsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Review and resolve pending approval requests",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")

	var listAgent string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pending approval requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprovalsList(cmd.Context(), configPath, listAgent)
		},
	}
	listCmd.Flags().StringVar(&listAgent, "agent", "", "Filter by agent id")

	var (
		resolvedBy string
		note       string
		resume     bool
	)
	approveCmd := &cobra.Command{
		Use:   "approve <approval-id>",
		Short: "Approve a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprovalsApprove(cmd.Context(), configPath, args[0], resolvedBy, note, resume)
		},
	}
	approveCmd.Flags().StringVar(&resolvedBy, "by", "operator", "Identity of the resolver")
	approveCmd.Flags().StringVar(&note, "note", "", "Resolution note")
	approveCmd.Flags().BoolVar(&resume, "resume", false, "Resume the suspended execution after approving")

	denyCmd := &cobra.Command{
		Use:   "deny <approval-id>",
		Short: "Deny a pending request and cancel its execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprovalsDeny(cmd.Context(), configPath, args[0], resolvedBy, note)
		},
	}
	denyCmd.Flags().StringVar(&resolvedBy, "by", "operator", "Identity of the resolver")
	denyCmd.Flags().StringVar(&note, "note", "", "Resolution note")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire pending requests past their deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprovalsSweep(cmd.Context(), configPath)
		},
	}

	cmd.AddCommand(listCmd, approveCmd, denyCmd, sweepCmd)
	return cmd
}

func buildAgentsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage agent configurations",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")

	var file string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent from a JSON definition",
		Example: `  praxis agents create --file agent.json

  # agent.json:
  # {"id": "support-bot", "name": "Support Bot", "is_active": true,
  #  "instructions": "Triage tickets.", "allowed_tools": ["crm_*", "echo"],
  #  "budgets": {"max_steps_per_run": 8}, "provider": "anthropic"}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentsCreate(cmd.Context(), configPath, file)
		},
	}
	createCmd.Flags().StringVarP(&file, "file", "f", "", "Path to the agent definition JSON")
	_ = createCmd.MarkFlagRequired("file")

	showCmd := &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Print an agent configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentsShow(cmd.Context(), configPath, args[0])
		},
	}

	cmd.AddCommand(createCmd, showCmd)
	return cmd
}

func buildMemoryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and maintain agent memory",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")

	var (
		kind    string
		subject string
	)
	storeCmd := &cobra.Command{
		Use:   "store <agent-id> <content>",
		Short: "Store a memory, deduplicating near-identical content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryStore(cmd.Context(), configPath, args[0], args[1], kind, subject)
		},
	}
	storeCmd.Flags().StringVar(&kind, "kind", "fact", "Memory kind: fact, preference, pattern, relationship, outcome")
	storeCmd.Flags().StringVar(&subject, "subject", "", "Optional subject reference")

	var limit int
	recallCmd := &cobra.Command{
		Use:   "recall <agent-id> <query>",
		Short: "Retrieve memories by semantic similarity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryRecall(cmd.Context(), configPath, args[0], args[1], limit)
		},
	}
	recallCmd.Flags().IntVar(&limit, "limit", 10, "Maximum results")

	consolidateCmd := &cobra.Command{
		Use:   "consolidate <agent-id>",
		Short: "Prune stale and expired memories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryConsolidate(cmd.Context(), configPath, args[0])
		},
	}

	cmd.AddCommand(storeCmd, recallCmd, consolidateCmd)
	return cmd
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run resident mode: metrics endpoint and approval sweeper",
		Long: `Serve keeps the process alive to expose Prometheus metrics and to
periodically expire stale approval requests. Graceful shutdown is
handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}
