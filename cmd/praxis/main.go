// Package main provides the CLI entry point for the Praxis agent runtime.
//
// Praxis runs declarative agents through a reason-act-observe loop with
// schema-validated tool dispatch, rate limiting, human approval gating,
// and semantic memory.
//
// # Basic Usage
//
// Run an agent once:
//
//	praxis run my-agent --task "summarize yesterday's signups"
//
// Review and resolve pending approvals:
//
//	praxis approvals list
//	praxis approvals approve <id> --by alice --resume
//
// Start the resident mode (metrics endpoint + approval sweeper):
//
//	praxis serve --config praxis.yaml
//
// # Environment Variables
//
//   - PRAXIS_CONFIG: Path to configuration file (default: praxis.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models and embeddings
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "praxis",
		Short: "Praxis - autonomous agent runtime",
		Long: `Praxis runs declarative agents: each run iterates a reason-act-observe
loop against a language model, dispatching tools under permission,
rate-limit, and risk control, pausing for human approval of dangerous
actions, and recording memories and episodes for future runs.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildResumeCmd(),
		buildApprovalsCmd(),
		buildAgentsCmd(),
		buildMemoryCmd(),
		buildServeCmd(),
	)

	return rootCmd
}

func defaultConfigPath() string {
	if path := os.Getenv("PRAXIS_CONFIG"); path != "" {
		return path
	}
	return "praxis.yaml"
}
