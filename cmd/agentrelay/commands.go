package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/config"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/metrics"
	"github.com/hupe1980/agentrelay/runner"
	"github.com/hupe1980/agentrelay/session"
)

// =============================================================================
// Run Command
// =============================================================================

type runFlags struct {
	agent          string
	stream         bool
	maxTurns       int
	conversationID string
	dbPath         string
	userID         string
	userName       string
	metricsAddr    string
}

func buildRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run an agent on a prompt",
		Long: `Run an agent of the agents file on a prompt.

Tool calls that require approval are shown on the terminal and resumed once
answered with y or n.`,
		Example: `  agentrelay run --agent Triage "Where is my order?"
  agentrelay run --agent Triage --stream --conversation c1 --db relay.db "Cancel it"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			return runPrompt(cmd.Context(), cfg, g, f, strings.Join(args, " "), newModel,
				bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&f.agent, "agent", "a", "", "Starting agent (defaults to the first declared agent)")
	cmd.Flags().BoolVarP(&f.stream, "stream", "s", false, "Stream the answer while it is generated")
	cmd.Flags().IntVar(&f.maxTurns, "max-turns", 0, "Turn limit; overrides the config")
	cmd.Flags().StringVar(&f.conversationID, "conversation", "", "Conversation id; requires --db or session.path")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "SQLite file storing conversations")
	cmd.Flags().StringVar(&f.userID, "user-id", "", "Id of the signed in user")
	cmd.Flags().StringVar(&f.userName, "user-name", "", "Name of the signed in user")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

func runPrompt(
	ctx context.Context,
	cfg *config.Config,
	g *globalFlags,
	f *runFlags,
	prompt string,
	newModel modelFactory,
	in *bufio.Reader,
	out, errOut io.Writer,
) error {
	level := cfg.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(level),
		Format:    "text",
		Output:    errOut,
		Component: "cli",
	})

	maxTurns := cfg.MaxTurns
	if f.maxTurns > 0 {
		maxTurns = f.maxTurns
	}

	var store session.Store
	dbPath := f.dbPath
	if dbPath == "" {
		dbPath = cfg.Session.Path
	}
	if dbPath != "" {
		sqlite, err := session.NewSQLiteStore(dbPath)
		if err != nil {
			return err
		}
		defer sqlite.Close()
		store = sqlite
	}
	if f.conversationID != "" && store == nil {
		return errors.New("--conversation requires --db or session.path")
	}

	var m *metrics.Metrics
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)

		srv := &http.Server{
			Addr:              f.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics.server.failed", "error", err.Error())
			}
		}()
		defer srv.Close()
	}

	r := runner.New(func(o *runner.Options) {
		o.MaxTurns = maxTurns
		o.Logger = logger
		o.SessionStore = store
		o.Metrics = m
		o.ManageProviders = true
	})

	agents, err := buildGraph(cfg, r, newModel, logger)
	if err != nil {
		return err
	}

	name := f.agent
	if name == "" {
		name = cfg.Agents[0].Name
	}
	start, ok := agents[name]
	if !ok {
		return fmt.Errorf("unknown agent %q", name)
	}

	runOpts := []func(o *runner.RunOptions){
		runner.WithContext(userInfo{ID: f.userID, Name: f.userName}),
	}
	if f.conversationID != "" {
		runOpts = append(runOpts, runner.WithConversationID(f.conversationID))
	}

	var res *runner.Result
	if f.stream {
		res, err = printStream(r.RunStreamed(ctx, start, prompt, runOpts...), out)
	} else {
		res, err = r.Run(ctx, start, prompt, runOpts...)
	}

	for err == nil && res.Interrupted() {
		decisions, perr := promptDecisions(in, out, res.Interruptions)
		if perr != nil {
			return perr
		}
		for _, d := range decisions {
			if derr := res.State.Decide(d); derr != nil {
				return derr
			}
		}

		if f.stream {
			res, err = printStream(r.ResumeStreamed(ctx, start, res.State), out)
		} else {
			res, err = r.Resume(ctx, start, res.State)
		}
	}
	if err != nil {
		return err
	}

	if !f.stream {
		fmt.Fprintln(out, res.FinalText())
	}
	if res.LastAgent != nil && res.LastAgent != start {
		logger.Info("run.last_agent", "agent", res.LastAgent.Name())
	}

	return nil
}

// printStream writes text deltas as they arrive and returns the outcome.
func printStream(s *runner.Stream, out io.Writer) (*runner.Result, error) {
	wrote := false
	for ev := range s.Events() {
		if ev.Type == runner.EventTextDelta {
			fmt.Fprint(out, ev.Delta)
			wrote = true
		}
	}
	if wrote {
		fmt.Fprintln(out)
	}
	return s.Result()
}

// =============================================================================
// Agents Command
// =============================================================================

func buildAgentsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agents of the agents file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			printAgents(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printAgents(out io.Writer, cfg *config.Config) {
	for _, a := range cfg.Agents {
		mc := cfg.Model
		if a.Model != nil {
			mc = *a.Model
		}

		fmt.Fprintf(out, "%s (%s", a.Name, mc.Provider)
		if mc.Name != "" {
			fmt.Fprintf(out, "/%s", mc.Name)
		}
		fmt.Fprintln(out, ")")

		if a.HandoffDescription != "" {
			fmt.Fprintf(out, "  %s\n", a.HandoffDescription)
		}
		printList(out, "handoffs", a.Handoffs)
		printList(out, "tools", slices.Concat(a.Tools, a.AgentTools, a.MCPServers))
	}
}

func printList(out io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	sorted := slices.Clone(items)
	slices.Sort(sorted)
	fmt.Fprintf(out, "  %s: %s\n", label, strings.Join(sorted, ", "))
}

// =============================================================================
// Sessions Command
// =============================================================================

func buildSessionsCmd(g *globalFlags) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored conversations",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite file storing conversations (defaults to session.path)")

	openStore := func() (*session.SQLiteStore, error) {
		path := dbPath
		if path == "" {
			cfg, err := loadConfig(g)
			if err != nil {
				return nil, err
			}
			path = cfg.Session.Path
		}
		if path == "" {
			return nil, errors.New("--db or session.path is required")
		}
		return session.NewSQLiteStore(path)
	}

	show := &cobra.Command{
		Use:   "show <conversation>",
		Short: "Print the items of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, it := range items {
				fmt.Fprintln(cmd.OutOrStdout(), describeItem(it))
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <conversation>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Clear(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(show, clearCmd)
	return cmd
}

func loadConfig(g *globalFlags) (*config.Config, error) {
	if err := config.LoadEnv(g.envFiles...); err != nil {
		return nil, err
	}
	return config.Load(g.configPath)
}

func describeItem(it core.Item) string {
	switch it.Kind {
	case core.ItemUserMessage:
		return "user: " + it.Text
	case core.ItemAssistantMessage:
		return it.Agent + ": " + it.Text
	case core.ItemToolCall:
		return fmt.Sprintf("%s -> %s(%s)", it.Agent, it.ToolCall.Name, it.ToolCall.Arguments)
	case core.ItemToolResult:
		if it.ToolResult.Error != "" {
			return fmt.Sprintf("%s <- %s error: %s", it.Agent, it.ToolResult.Name, it.ToolResult.Error)
		}
		return fmt.Sprintf("%s <- %s: %s", it.Agent, it.ToolResult.Name, it.ToolResult.OutputText())
	case core.ItemHandoff:
		return fmt.Sprintf("handoff %s -> %s", it.Handoff.From, it.Handoff.To)
	default:
		return string(it.Kind)
	}
}
