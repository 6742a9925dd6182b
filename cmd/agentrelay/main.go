// Command agentrelay runs an agent graph described in a YAML file.
//
// # Basic Usage
//
// Run the "Triage" agent of agents.yaml:
//
//	agentrelay run --config agents.yaml --agent Triage "Cancel my last order"
//
// Stream the answer and keep the conversation in a SQLite file:
//
//	agentrelay run --agent Triage --stream --conversation c1 --db relay.db "Hi"
//
// List configured agents:
//
//	agentrelay agents --config agents.yaml
//
// # Environment Variables
//
// A .env file in the working directory is loaded before the configuration,
// and ${VAR} references in the configuration are expanded.
//
//   - OPENAI_API_KEY: API key for the openai provider
//   - ANTHROPIC_API_KEY: API key for the anthropic provider
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

// globalFlags are shared by all subcommands.
type globalFlags struct {
	configPath string
	envFiles   []string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "agentrelay",
		Short: "Run multi-agent graphs declared in YAML",
		Long: `agentrelay runs agents declared in a YAML file.

Agents hand off to each other and pause for human approval before
sensitive tool calls.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "agents.yaml", "Path to the agents file")
	rootCmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "Dotenv files loaded before the config")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")

	rootCmd.AddCommand(
		buildRunCmd(flags),
		buildAgentsCmd(flags),
		buildSessionsCmd(flags),
	)

	return rootCmd
}
