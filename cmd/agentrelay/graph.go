package main

import (
	"fmt"
	"slices"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/internal/config"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/model/anthropic"
	"github.com/hupe1980/agentrelay/model/openai"
	"github.com/hupe1980/agentrelay/runner"
	"github.com/hupe1980/agentrelay/tool"
	"github.com/hupe1980/agentrelay/tool/mcp"
)

// modelFactory creates the model for one agent.
type modelFactory func(mc config.ModelConfig) (model.Model, error)

func newModel(mc config.ModelConfig) (model.Model, error) {
	var m model.Model

	switch mc.Provider {
	case config.ProviderOpenAI:
		m = openai.NewModel(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			if mc.Temperature > 0 {
				o.Temperature = mc.Temperature
			}
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = mc.MaxTokens
			}
		})
	case config.ProviderAnthropic:
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = anthropicsdk.Model(mc.Name)
			}
			if mc.Temperature > 0 {
				o.Temperature = mc.Temperature
			}
			if mc.MaxTokens > 0 {
				o.MaxTokens = mc.MaxTokens
			}
		})
	default:
		return nil, fmt.Errorf("unsupported provider %q", mc.Provider)
	}

	return model.WithRetry(m), nil
}

// buildGraph turns the agent declarations into agents. Handoffs are resolved
// lazily so declarations may refer to each other in any order, cycles
// included.
func buildGraph(cfg *config.Config, r *runner.Runner, newModel modelFactory, logger logging.Logger) (map[string]*agent.Agent, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	builtins := builtinTools()

	servers := make(map[string]*mcp.Server, len(cfg.MCPServers))
	for _, s := range cfg.MCPServers {
		servers[s.Name] = mcp.NewServer(mcp.Config{
			Name:            s.Name,
			URL:             s.URL,
			Headers:         s.Headers,
			Command:         s.Command,
			Args:            s.Args,
			Env:             s.Env,
			RequireApproval: s.RequireApproval,
			ApprovalTools:   s.ApprovalTools,
			AllowedTools:    s.AllowedTools,
		}, func(o *mcp.Options) {
			o.Logger = logger
		})
	}

	agents := make(map[string]*agent.Agent, len(cfg.Agents))

	// Agent tools need their target built first; declarations are visited
	// until no further agent can be completed.
	pending := slices.Clone(cfg.Agents)
	for len(pending) > 0 {
		var next []config.Agent

		for _, decl := range pending {
			ready := true
			for _, name := range decl.AgentTools {
				if _, ok := agents[name]; !ok {
					ready = false
				}
			}
			if !ready {
				next = append(next, decl)
				continue
			}

			a, err := buildAgent(cfg, decl, agents, builtins, servers, r, newModel)
			if err != nil {
				return nil, err
			}
			agents[decl.Name] = a
		}

		if len(next) == len(pending) {
			return nil, fmt.Errorf("agent tools form a cycle among %d agents", len(next))
		}
		pending = next
	}

	return agents, nil
}

func buildAgent(
	cfg *config.Config,
	decl config.Agent,
	agents map[string]*agent.Agent,
	builtins map[string]tool.Tool,
	servers map[string]*mcp.Server,
	r *runner.Runner,
	newModel modelFactory,
) (*agent.Agent, error) {
	mc := cfg.Model
	if decl.Model != nil {
		mc = *decl.Model
	}

	m, err := newModel(mc)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", decl.Name, err)
	}

	var tools []tool.Tool
	for _, name := range decl.Tools {
		t, ok := builtins[name]
		if !ok {
			return nil, fmt.Errorf("agent %q: unknown tool %q", decl.Name, name)
		}
		tools = append(tools, t)
	}
	for _, name := range decl.AgentTools {
		target := agents[name]
		tools = append(tools, runner.AgentTool(r, target, "", ""))
	}

	var providers []tool.Provider
	for _, name := range decl.MCPServers {
		providers = append(providers, servers[name])
	}

	var handoffs []*agent.Handoff
	for _, name := range decl.Handoffs {
		handoffs = append(handoffs, agent.LazyHandoff(name, func() *agent.Agent { return agents[name] }))
	}

	return agent.New(decl.Name, func(o *agent.Options) {
		o.Instructions = agent.Template(decl.Instructions)
		o.HandoffDescription = decl.HandoffDescription
		o.Model = m
		o.Tools = tools
		o.Providers = providers
		o.Handoffs = handoffs
	}), nil
}
