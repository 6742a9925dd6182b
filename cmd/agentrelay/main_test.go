package main

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/internal/config"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/runner"
	"github.com/hupe1980/agentrelay/session"
)

const salesYAML = `
agents:
  - name: Triage
    instructions: Route the request.
    handoffs: [Sales]
  - name: Sales
    handoff_description: Handles orders.
    instructions: Help {{.Name}} with orders.
    tools: [fetch_user_orders, cancel_user_orders]
    handoffs: [Triage]
`

// scriptedModels hands out one scripted model per agent name.
func scriptedModels(t *testing.T, byAgent map[string]*model.ScriptedModel, order ...string) modelFactory {
	t.Helper()
	i := 0
	return func(config.ModelConfig) (model.Model, error) {
		m := byAgent[order[i]]
		i++
		return m, nil
	}
}

func TestNewModel(t *testing.T) {
	tests := []struct {
		name     string
		mc       config.ModelConfig
		provider string
		model    string
	}{
		{"openai", config.ModelConfig{Provider: config.ProviderOpenAI, Name: "gpt-4o-mini", Temperature: 0.2}, "openai", "gpt-4o-mini"},
		{"anthropic", config.ModelConfig{Provider: config.ProviderAnthropic, Name: "claude-3-5-haiku-latest", MaxTokens: 512}, "anthropic", "claude-3-5-haiku-latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := newModel(tt.mc)
			require.NoError(t, err)
			assert.Equal(t, tt.provider, m.Info().Provider)
			assert.Equal(t, tt.model, m.Info().Name)
		})
	}

	_, err := newModel(config.ModelConfig{Provider: "bedrock"})
	assert.ErrorContains(t, err, `unsupported provider "bedrock"`)
}

func TestBuildGraph(t *testing.T) {
	cfg, err := config.Parse([]byte(salesYAML))
	require.NoError(t, err)

	agents, err := buildGraph(cfg, runner.New(), func(config.ModelConfig) (model.Model, error) {
		return model.NewScriptedModel(), nil
	}, nil)
	require.NoError(t, err)
	require.Len(t, agents, 2)

	triage := agents["Triage"]
	require.Len(t, triage.Handoffs(), 1)
	assert.Same(t, agents["Sales"], triage.Handoffs()[0].Target())
	assert.Equal(t, "transfer_to_sales", triage.Handoffs()[0].ToolName())

	sales, ok := triage.FindAgent("Sales")
	require.True(t, ok)
	assert.Len(t, sales.Tools(), 2)
	assert.True(t, sales.Tools()[1].RequiresApproval())
}

func TestBuildGraph_AgentTools(t *testing.T) {
	cfg, err := config.Parse([]byte(`
agents:
  - name: Manager
    agent_tools: [Translator]
  - name: Translator
    handoff_description: Translates text.
`))
	require.NoError(t, err)

	agents, err := buildGraph(cfg, runner.New(), func(config.ModelConfig) (model.Model, error) {
		return model.NewScriptedModel(), nil
	}, nil)
	require.NoError(t, err)

	tools := agents["Manager"].Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "translator", tools[0].Name())
	assert.Equal(t, "Translates text.", tools[0].Description())
}

func TestBuildGraph_AgentToolCycle(t *testing.T) {
	cfg, err := config.Parse([]byte(`
agents:
  - name: A
    agent_tools: [B]
  - name: B
    agent_tools: [A]
`))
	require.NoError(t, err)

	_, err = buildGraph(cfg, runner.New(), func(config.ModelConfig) (model.Model, error) {
		return model.NewScriptedModel(), nil
	}, nil)
	assert.ErrorContains(t, err, "cycle")
}

func TestPromptDecisions(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("y\nno\n"))
	var out bytes.Buffer

	decisions, err := promptDecisions(in, &out, []runner.Interruption{
		{ID: "c1", Agent: "Sales", ToolName: "cancel_user_orders", Arguments: `{}`},
		{ID: "c2", Agent: "Sales", ToolName: "cancel_user_orders", Arguments: `{"user_id":"7"}`},
	})
	require.NoError(t, err)

	assert.Equal(t, []runner.Decision{
		{InterruptionID: "c1", Approved: true},
		{InterruptionID: "c2", Reason: "declined by operator"},
	}, decisions)
	assert.Contains(t, out.String(), "Sales is asking for calling tool cancel_user_orders with args {} (y/n): ")

	_, err = promptDecisions(bufio.NewReader(strings.NewReader("")), &out, []runner.Interruption{{ID: "c3"}})
	assert.Error(t, err)
}

func TestRunPrompt_ApprovalFlow(t *testing.T) {
	for _, stream := range []bool{false, true} {
		t.Run(map[bool]string{false: "blocking", true: "streaming"}[stream], func(t *testing.T) {
			cfg, err := config.Parse([]byte(salesYAML))
			require.NoError(t, err)

			sales := model.NewResponderModel(func(req model.Request) model.Turn {
				if tr, ok := req.History.FindToolResult("c1"); ok {
					if tr.Error != "" {
						return model.Reply("Nothing was cancelled.")
					}
					return model.Reply("All orders cancelled.")
				}
				return model.CallTools(model.Call("c1", "cancel_user_orders", ""))
			})
			triage := model.NewScriptedModel(model.CallTools(model.Call("h1", "transfer_to_sales", "")))

			models := scriptedModels(t, map[string]*model.ScriptedModel{"Triage": triage, "Sales": sales}, "Triage", "Sales")

			dbPath := filepath.Join(t.TempDir(), "relay.db")
			f := &runFlags{agent: "Triage", stream: stream, conversationID: "c", dbPath: dbPath, userID: "42", userName: "Ada"}

			var out, errOut bytes.Buffer
			err = runPrompt(context.Background(), cfg, &globalFlags{logLevel: "error"}, f, "cancel my orders", models,
				bufio.NewReader(strings.NewReader("y\n")), &out, &errOut)
			require.NoError(t, err)

			assert.Contains(t, out.String(), "Sales is asking for calling tool cancel_user_orders")
			assert.Contains(t, out.String(), "All orders cancelled.")

			req, ok := sales.LastRequest()
			require.True(t, ok)
			assert.Equal(t, "Help Ada with orders.", req.Instructions)

			store, err := session.NewSQLiteStore(dbPath)
			require.NoError(t, err)
			defer store.Close()

			items, err := store.Load(context.Background(), "c")
			require.NoError(t, err)
			assert.Len(t, items, 7)
		})
	}
}

func TestRunPrompt_ConversationNeedsStore(t *testing.T) {
	cfg, err := config.Parse([]byte(salesYAML))
	require.NoError(t, err)

	err = runPrompt(context.Background(), cfg, &globalFlags{}, &runFlags{conversationID: "c"}, "hi",
		func(config.ModelConfig) (model.Model, error) { return model.NewScriptedModel(), nil },
		bufio.NewReader(strings.NewReader("")), &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "--conversation requires")
}

func TestPrintAgents(t *testing.T) {
	cfg, err := config.Parse([]byte(salesYAML))
	require.NoError(t, err)

	var out bytes.Buffer
	printAgents(&out, cfg)

	assert.Equal(t, `Triage (openai)
  handoffs: Sales
Sales (openai)
  Handles orders.
  handoffs: Triage
  tools: cancel_user_orders, fetch_user_orders
`, out.String())
}
