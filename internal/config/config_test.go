package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentsYAML = `
model:
  provider: OpenAI
  name: gpt-4o-mini
mcp_servers:
  - name: docs
    url: https://example.com/mcp
    headers:
      Authorization: Bearer ${DOCS_TOKEN}
agents:
  - name: Triage
    instructions: Route the user to the right specialist.
    handoffs: [Billing]
  - name: Billing
    handoff_description: Handles invoices.
    tools: [fetch_user_orders]
    mcp_servers: [docs]
    model:
      provider: anthropic
      name: claude-3-5-haiku-latest
`

func TestParse(t *testing.T) {
	t.Setenv("DOCS_TOKEN", "secret")

	cfg, err := Parse([]byte(agentsYAML))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, 10, cfg.MaxTurns)
	assert.Equal(t, "warn", cfg.LogLevel)
	require.Len(t, cfg.Agents, 2)

	billing, ok := cfg.Agent("Billing")
	require.True(t, ok)
	assert.Equal(t, ProviderAnthropic, billing.Model.Provider)
	assert.Equal(t, []string{"fetch_user_orders"}, billing.Tools)

	docs, ok := cfg.MCPServer("docs")
	require.True(t, ok)
	assert.Equal(t, "Bearer secret", docs.Headers["Authorization"])

	_, ok = cfg.Agent("Nobody")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "", "config is empty"},
		{"no agents", "max_turns: 3\n", "at least one agent"},
		{"unknown field", "agents:\n  - name: A\n    colour: red\n", "colour"},
		{"unknown handoff", "agents:\n  - name: A\n    handoffs: [B]\n", `unknown handoff target "B"`},
		{"duplicate agent", "agents:\n  - name: A\n  - name: A\n", `duplicate name "A"`},
		{"bad provider", "model:\n  provider: llama\nagents:\n  - name: A\n", `unsupported provider "llama"`},
		{"unknown agent tool", "agents:\n  - name: A\n    agent_tools: [C]\n", `unknown agent tool "C"`},
		{"unknown server", "agents:\n  - name: A\n    mcp_servers: [x]\n", `unknown mcp server "x"`},
		{"server transport", "mcp_servers:\n  - name: x\nagents:\n  - name: A\n", "exactly one of url or command"},
		{"two documents", "agents:\n  - name: A\n---\nagents: []\n", "single document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadWithDotEnv(t *testing.T) {
	dir := t.TempDir()

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AGENTRELAY_TEST_MODEL=gpt-4.1\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("AGENTRELAY_TEST_MODEL") })

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))

	cfgFile := filepath.Join(dir, "agents.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("model:\n  name: ${AGENTRELAY_TEST_MODEL}\nagents:\n  - name: A\n"), 0o600))

	cfg, err := Load(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", cfg.Model.Name)

	_, err = Load("")
	assert.Error(t, err)
}
